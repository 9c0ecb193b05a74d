package pinning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/openforge/internal/config"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

const testCID = "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy"

func newTestPinata(t *testing.T, h http.HandlerFunc) *pinataClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	var cfg config.Config
	cfg.Pinning.APIURL = srv.URL + "/"
	cfg.Pinning.APIKey = "key"
	cfg.Pinning.APISecret = "secret"
	p, err := NewPinataClient(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	return p.(*pinataClient)
}

func TestNewPinataClient_RequiresCredentials(t *testing.T) {
	_, err := NewPinataClient(config.Config{}, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestPinJSON(t *testing.T) {
	p := newTestPinata(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinJSONToIPFS", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("pinata_api_key"))
		assert.Equal(t, "secret", r.Header.Get("pinata_secret_api_key"))

		var body struct {
			Metadata map[string]string `json:"pinataMetadata"`
			Content  map[string]string `json:"pinataContent"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "profile-0xabc", body.Metadata["name"])
		assert.Equal(t, "profile", body.Content["type"])

		_ = json.NewEncoder(w).Encode(pinResponse{IpfsHash: testCID, PinSize: 42})
	})

	cid, err := p.PinJSON(context.Background(), "profile-0xabc", map[string]string{"type": "profile"})
	require.NoError(t, err)
	assert.Equal(t, testCID, cid)
}

func TestPinFile(t *testing.T) {
	p := newTestPinata(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "avatar.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		assert.Equal(t, []byte("png-bytes"), data)
		assert.JSONEq(t, `{"name":"avatar.png"}`, r.FormValue("pinataMetadata"))

		_ = json.NewEncoder(w).Encode(pinResponse{IpfsHash: testCID})
	})

	cid, err := p.PinFile(context.Background(), "avatar.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, testCID, cid)
}

func TestPin_Failures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "rejected",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "invalid cid",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(pinResponse{IpfsHash: "not-a-cid"})
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPinata(t, tt.handler)
			_, err := p.PinJSON(context.Background(), "doc", map[string]int{"v": 1})

			var upload *apperror.UploadError
			require.ErrorAs(t, err, &upload)
			assert.Equal(t, tt.wantStatus, upload.StatusCode)
			assert.ErrorIs(t, err, apperror.ErrUpload)
		})
	}
}

func TestUnpin(t *testing.T) {
	var status int
	p := newTestPinata(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/pinning/unpin/"+testCID, r.URL.Path)
		w.WriteHeader(status)
	})

	status = http.StatusOK
	assert.NoError(t, p.Unpin(context.Background(), testCID))

	status = http.StatusNotFound
	assert.ErrorIs(t, p.Unpin(context.Background(), testCID), apperror.ErrNotFound)

	status = http.StatusInternalServerError
	err := p.Unpin(context.Background(), testCID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrNotFound)
}

func TestComputeCID(t *testing.T) {
	a, err := ComputeCID([]byte("hello"))
	require.NoError(t, err)
	b, err := ComputeCID([]byte("hello"))
	require.NoError(t, err)
	c, err := ComputeCID([]byte("world"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^bafkrei`, a)
}
