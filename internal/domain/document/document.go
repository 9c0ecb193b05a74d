// Package document holds the versioned metadata documents pinned to IPFS
// and referenced from the on-chain registries.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Kind string

const (
	KindProfile Kind = "profile"
	KindProject Kind = "project"
)

// Version is stamped on every document this gateway publishes.
const Version = "1.0"

type ImageKind string

const (
	ImageAvatar  ImageKind = "avatar"
	ImageCover   ImageKind = "cover"
	ImageGallery ImageKind = "gallery"
)

type ImageRef struct {
	CID  string    `json:"cid"`
	Type ImageKind `json:"type"`
}

// ProfileDocument is the JSON pinned for a wallet profile. Field order is
// the serialization order; it is not canonical.
type ProfileDocument struct {
	Type          Kind      `json:"type"`
	Version       string    `json:"version"`
	Name          string    `json:"name"`
	Bio           string    `json:"bio"`
	Skills        []string  `json:"skills"`
	Avatar        *ImageRef `json:"avatar,omitempty"`
	CreatedAt     int64     `json:"createdAt"`
	UpdatedAt     *int64    `json:"updatedAt,omitempty"`
	WalletAddress string    `json:"walletAddress,omitempty"`
}

type ProjectDocument struct {
	Type        Kind       `json:"type"`
	Version     string     `json:"version"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Images      []ImageRef `json:"images,omitempty"`
	CreatedAt   int64      `json:"createdAt"`
	UpdatedAt   *int64     `json:"updatedAt,omitempty"`
}

// Cover returns the cover image reference, if any.
func (p *ProjectDocument) Cover() *ImageRef {
	for i := range p.Images {
		if p.Images[i].Type == ImageCover {
			return &p.Images[i]
		}
	}
	return nil
}

// Gallery returns the gallery image references in display order.
func (p *ProjectDocument) Gallery() []ImageRef {
	out := make([]ImageRef, 0, len(p.Images))
	for _, img := range p.Images {
		if img.Type == ImageGallery {
			out = append(out, img)
		}
	}
	return out
}

// ImageCIDs lists every CID the document points at.
func (p *ProfileDocument) ImageCIDs() []string {
	if p == nil || p.Avatar == nil {
		return nil
	}
	return []string{p.Avatar.CID}
}

func (p *ProjectDocument) ImageCIDs() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		out = append(out, img.CID)
	}
	return out
}

var ErrMissingKind = errors.New("document has no type tag")

// PeekKind reads the variant tag. Older documents used "kind" instead of
// "type"; both are accepted.
func PeekKind(raw []byte) (Kind, error) {
	var head struct {
		Type string `json:"type"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("document is not a JSON object: %w", err)
	}
	switch {
	case head.Type != "":
		return Kind(head.Type), nil
	case head.Kind != "":
		return Kind(head.Kind), nil
	}
	return "", ErrMissingKind
}
