package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

const testCID = "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy"

func gatewayServer(t *testing.T, h http.HandlerFunc) (string, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/ipfs", &hits
}

func TestFetch_FallsThroughInOrder(t *testing.T) {
	down, downHits := gatewayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	notJSON, notJSONHits := gatewayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>rate limited</html>"))
	})
	good, goodHits := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ipfs/"+testCID, r.URL.Path)
		_, _ = w.Write([]byte(`{"type":"profile"}`))
	})
	unused, unusedHits := gatewayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	f, err := NewFetcher([]string{down, notJSON, good, unused}, time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	raw, err := f.Fetch(context.Background(), "ipfs://"+testCID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"profile"}`, string(raw))

	assert.EqualValues(t, 1, downHits.Load())
	assert.EqualValues(t, 1, notJSONHits.Load())
	assert.EqualValues(t, 1, goodHits.Load())
	assert.Zero(t, unusedHits.Load())
}

func TestFetch_AllFail(t *testing.T) {
	slow, _ := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	missing, _ := gatewayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	f, err := NewFetcher([]string{slow, missing}, 50*time.Millisecond, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), testCID)

	var fetchErr *apperror.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, testCID, fetchErr.CID)
	assert.Equal(t, []string{slow + "/", missing + "/"}, fetchErr.AttemptedGateways)
	assert.Contains(t, fetchErr.LastErr.Error(), "404")
	assert.ErrorIs(t, err, apperror.ErrFetch)
}

func TestFetch_OversizedDocument(t *testing.T) {
	big, _ := gatewayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"` + strings.Repeat("a", maxDocumentBytes) + `"`))
	})
	f, err := NewFetcher([]string{big}, time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), testCID)
	assert.ErrorIs(t, err, apperror.ErrFetch)
}

func TestFetch_CancelledContext(t *testing.T) {
	good, hits := gatewayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	f, err := NewFetcher([]string{good}, time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, testCID)

	var fetchErr *apperror.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, fetchErr.AttemptedGateways)
	assert.Zero(t, hits.Load())
}

func TestNewFetcher(t *testing.T) {
	_, err := NewFetcher(nil, time.Second, logger.NewNopLogger())
	assert.Error(t, err)

	f, err := NewFetcher([]string{"https://ipfs.io/ipfs", "https://dweb.link/ipfs/"}, 0, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "https://ipfs.io/ipfs/"+testCID, f.URL("/ipfs/"+testCID))
	assert.Equal(t, 5*time.Second, f.timeout)
}
