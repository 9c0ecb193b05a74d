package servicetest

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/khoahotran/openforge/pkg/apperror"
)

// Store is a content-addressed pinner that also serves as the document
// fetcher.
type Store struct {
	mu      sync.Mutex
	objects map[string][]byte

	// PinErr, when set, fails every upload.
	PinErr error

	FileUploads atomic.Int64
	JSONUploads atomic.Int64
	Fetches     atomic.Int64
	Unpinned    []string
}

func NewStore() *Store {
	return &Store{objects: make(map[string][]byte)}
}

func (s *Store) put(data []byte) (string, error) {
	if s.PinErr != nil {
		return "", &apperror.UploadError{StatusCode: 500, Err: s.PinErr}
	}
	c, err := cid.Prefix{Version: 1, Codec: cid.Raw, MhType: mh.SHA2_256, MhLength: -1}.Sum(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[c.String()] = append([]byte(nil), data...)
	return c.String(), nil
}

func (s *Store) PinFile(_ context.Context, _, _ string, data []byte) (string, error) {
	s.FileUploads.Add(1)
	return s.put(data)
}

func (s *Store) PinJSON(_ context.Context, _ string, doc any) (string, error) {
	s.JSONUploads.Add(1)
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return s.put(raw)
}

func (s *Store) Unpin(_ context.Context, c string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[c]; !ok {
		return apperror.NewNotFound("pin", c)
	}
	delete(s.objects, c)
	s.Unpinned = append(s.Unpinned, c)
	return nil
}

func (s *Store) Fetch(_ context.Context, c string) (json.RawMessage, error) {
	s.Fetches.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[c]
	if !ok {
		return nil, &apperror.FetchError{CID: c, AttemptedGateways: []string{"memory"}, LastErr: apperror.ErrNotFound}
	}
	return json.RawMessage(data), nil
}

// Put stores a document directly and returns its CID.
func (s *Store) Put(doc any) string {
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	c, err := s.put(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (s *Store) Has(c string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[c]
	return ok
}
