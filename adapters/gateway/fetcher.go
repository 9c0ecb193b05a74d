package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/domain/document"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
	"github.com/khoahotran/openforge/pkg/metrics"
)

const maxDocumentBytes = 1 << 20

// Fetcher reads documents from an ordered list of public IPFS gateways,
// returning the first good answer. The order never changes.
type Fetcher struct {
	gateways []string
	timeout  time.Duration
	client   *http.Client
	logger   logger.Logger
}

func NewFetcher(gateways []string, attemptTimeout time.Duration, log logger.Logger) (*Fetcher, error) {
	if len(gateways) == 0 {
		return nil, errors.New("at least one IPFS gateway is required")
	}
	clean := make([]string, 0, len(gateways))
	for _, g := range gateways {
		if _, err := url.Parse(g); err != nil {
			return nil, fmt.Errorf("invalid gateway url %q: %w", g, err)
		}
		if !strings.HasSuffix(g, "/") {
			g += "/"
		}
		clean = append(clean, g)
	}
	if attemptTimeout <= 0 {
		attemptTimeout = 5 * time.Second
	}
	return &Fetcher{gateways: clean, timeout: attemptTimeout, client: &http.Client{}, logger: log}, nil
}

// URL is the first gateway's address for cid.
func (f *Fetcher) URL(cid string) string {
	return f.gateways[0] + document.NormalizeCID(cid)
}

func (f *Fetcher) Fetch(ctx context.Context, cid string) (json.RawMessage, error) {
	cid = document.NormalizeCID(cid)

	attempted := make([]string, 0, len(f.gateways))
	var lastErr error
	for _, gw := range f.gateways {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempted = append(attempted, gw)

		start := time.Now()
		raw, err := f.attempt(ctx, gw, cid)
		host := hostOf(gw)
		metrics.GatewayLatency.WithLabelValues(host).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.GatewayAttempts.WithLabelValues(host, "ok").Inc()
			return raw, nil
		}
		metrics.GatewayAttempts.WithLabelValues(host, "failed").Inc()
		f.logger.Debug("Gateway attempt failed", zap.String("gateway", gw), zap.String("cid", cid), zap.Error(err))
		lastErr = err
	}

	f.logger.Warn("All IPFS gateways failed", zap.String("cid", cid), zap.Int("attempted", len(attempted)), zap.Error(lastErr))
	return nil, &apperror.FetchError{CID: cid, AttemptedGateways: attempted, LastErr: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, gateway, cid string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gateway+cid, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)
	}
	if !json.Valid(body) {
		return nil, errors.New("response is not valid JSON")
	}
	return json.RawMessage(body), nil
}

func hostOf(gateway string) string {
	if u, err := url.Parse(gateway); err == nil && u.Host != "" {
		return u.Host
	}
	return gateway
}
