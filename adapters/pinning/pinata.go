package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/config"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
	"github.com/khoahotran/openforge/pkg/metrics"
)

const maxErrorBody = 4 << 10

type pinataClient struct {
	baseURL   string
	apiKey    string
	apiSecret string
	timeout   time.Duration
	http      *http.Client
	logger    logger.Logger
}

// NewPinataClient talks to the Pinata pinning API. Uploads are not retried.
func NewPinataClient(cfg config.Config, log logger.Logger) (service.Pinner, error) {
	if cfg.Pinning.APIKey == "" || cfg.Pinning.APISecret == "" {
		return nil, fmt.Errorf("pinata api key/secret has not config")
	}
	return &pinataClient{
		baseURL:   strings.TrimSuffix(cfg.Pinning.APIURL, "/"),
		apiKey:    cfg.Pinning.APIKey,
		apiSecret: cfg.Pinning.APISecret,
		timeout:   cfg.Pinning.UploadTimeout,
		http:      &http.Client{},
		logger:    log,
	}, nil
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

func (c *pinataClient) PinFile(ctx context.Context, name, contentType string, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName(name)))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return "", &apperror.UploadError{Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return "", &apperror.UploadError{Err: err}
	}
	meta, _ := json.Marshal(map[string]string{"name": fileName(name)})
	if err := w.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", &apperror.UploadError{Err: err}
	}
	if err := w.Close(); err != nil {
		return "", &apperror.UploadError{Err: err}
	}

	return c.pin(ctx, "pin_file", "/pinning/pinFileToIPFS", w.FormDataContentType(), &body)
}

func (c *pinataClient) PinJSON(ctx context.Context, name string, doc any) (string, error) {
	payload := map[string]any{
		"pinataMetadata": map[string]string{"name": name},
		"pinataContent":  doc,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", &apperror.UploadError{Err: fmt.Errorf("encode document: %w", err)}
	}
	return c.pin(ctx, "pin_json", "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(raw))
}

func (c *pinataClient) pin(ctx context.Context, op, path, contentType string, body io.Reader) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return "", &apperror.UploadError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.PinOperations.WithLabelValues(op, "error").Inc()
		return "", &apperror.UploadError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.PinOperations.WithLabelValues(op, "error").Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("Pinning API rejected upload", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return "", &apperror.UploadError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.PinOperations.WithLabelValues(op, "error").Inc()
		return "", &apperror.UploadError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if _, err := cid.Decode(out.IpfsHash); err != nil {
		metrics.PinOperations.WithLabelValues(op, "error").Inc()
		return "", &apperror.UploadError{StatusCode: resp.StatusCode, Err: fmt.Errorf("response carries invalid CID %q: %w", out.IpfsHash, err)}
	}

	metrics.PinOperations.WithLabelValues(op, "ok").Inc()
	c.logger.Debug("Pinned content", zap.String("op", op), zap.String("cid", out.IpfsHash), zap.Int64("size", out.PinSize))
	return out.IpfsHash, nil
}

// Unpin removes a pin. A 404 means nothing is pinned under cid and is
// reported as apperror.ErrNotFound.
func (c *pinataClient) Unpin(ctx context.Context, cid string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/pinning/unpin/"+cid, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("unpin %s: %w", cid, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperror.NewNotFound("pin", cid)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("unpin %s: status %d: %s", cid, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (c *pinataClient) authorize(req *http.Request) {
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.apiSecret)
}

func fileName(name string) string {
	if name == "" {
		return "upload"
	}
	return name
}
