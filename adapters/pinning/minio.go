package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	mh "github.com/multiformats/go-multihash"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/config"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
	"github.com/khoahotran/openforge/pkg/metrics"
)

// MinioPinner is the development pinner. It keeps content in an
// S3-compatible bucket under a locally computed CIDv1 (raw codec,
// sha2-256), and reads it back in place of the public gateways.
type MinioPinner struct {
	mc     *minio.Client
	bucket string
	logger logger.Logger
}

func NewMinioPinner(ctx context.Context, cfg config.Config, log logger.Logger) (*MinioPinner, error) {
	if cfg.Minio.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint has not config")
	}
	mc, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.AccessKeyID, cfg.Minio.SecretAccessKey, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	p := &MinioPinner{mc: mc, bucket: cfg.Minio.Bucket, logger: log}
	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}
	log.Info("Using MinIO development pinner", zap.String("bucket", p.bucket))
	return p, nil
}

func (p *MinioPinner) ensureBucket(ctx context.Context) error {
	exists, err := p.mc.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}
	if exists {
		return nil
	}
	return p.mc.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{})
}

// ComputeCID derives the CIDv1 this pinner stores data under.
func ComputeCID(data []byte) (string, error) {
	prefix := cid.Prefix{Version: 1, Codec: cid.Raw, MhType: mh.SHA2_256, MhLength: -1}
	c, err := prefix.Sum(data)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

func (p *MinioPinner) PinFile(ctx context.Context, name, contentType string, data []byte) (string, error) {
	return p.put(ctx, "pin_file", name, contentType, data)
}

func (p *MinioPinner) PinJSON(ctx context.Context, name string, doc any) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", &apperror.UploadError{Err: fmt.Errorf("encode document: %w", err)}
	}
	return p.put(ctx, "pin_json", name, "application/json", raw)
}

func (p *MinioPinner) put(ctx context.Context, op, name, contentType string, data []byte) (string, error) {
	key, err := ComputeCID(data)
	if err != nil {
		return "", &apperror.UploadError{Err: err}
	}
	_, err = p.mc.PutObject(ctx, p.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"name": name},
	})
	if err != nil {
		metrics.PinOperations.WithLabelValues(op, "error").Inc()
		return "", &apperror.UploadError{Err: err}
	}
	metrics.PinOperations.WithLabelValues(op, "ok").Inc()
	return key, nil
}

func (p *MinioPinner) Unpin(ctx context.Context, cid string) error {
	return p.mc.RemoveObject(ctx, p.bucket, cid, minio.RemoveObjectOptions{})
}

// Fetch reads a JSON document back from the bucket.
func (p *MinioPinner) Fetch(ctx context.Context, cid string) (json.RawMessage, error) {
	obj, err := p.mc.GetObject(ctx, p.bucket, cid, minio.GetObjectOptions{})
	if err != nil {
		return nil, p.fetchError(cid, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, p.fetchError(cid, err)
	}
	if !json.Valid(data) {
		return nil, p.fetchError(cid, errors.New("object is not valid JSON"))
	}
	return json.RawMessage(data), nil
}

func (p *MinioPinner) fetchError(cid string, err error) error {
	return &apperror.FetchError{CID: cid, AttemptedGateways: []string{"minio://" + p.bucket}, LastErr: err}
}

// URL is where a browser can load cid when the dev pinner is in use.
func (p *MinioPinner) URL(cid string) string {
	return p.mc.EndpointURL().String() + "/" + p.bucket + "/" + cid
}

// NewPinner picks the pinning backend named by cfg.Pinning.Driver.
func NewPinner(ctx context.Context, cfg config.Config, log logger.Logger) (service.Pinner, error) {
	switch cfg.Pinning.Driver {
	case "minio":
		mp, err := NewMinioPinner(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return mp, nil
	case "pinata", "":
		return NewPinataClient(cfg, log)
	default:
		return nil, fmt.Errorf("unknown pinning driver %q", cfg.Pinning.Driver)
	}
}
