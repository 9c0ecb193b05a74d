package project

import (
	"fmt"
	"strings"

	"github.com/khoahotran/openforge/pkg/apperror"
)

// Status mirrors the registry's uint8 enum.
type Status uint8

const (
	StatusDraft Status = iota
	StatusFunding
	StatusCompleted
	StatusFailed
)

var statusNames = map[Status]string{
	StatusDraft:     "draft",
	StatusFunding:   "funding",
	StatusCompleted: "completed",
	StatusFailed:    "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// FromChain maps a raw registry value. Unknown values read as draft.
func FromChain(v uint8) Status {
	s := Status(v)
	if !s.Valid() {
		return StatusDraft
	}
	return s
}

func ParseStatus(s string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for st, name := range statusNames {
		if name == key {
			return st, nil
		}
	}
	return StatusDraft, apperror.NewValidation("status", fmt.Sprintf("unknown status %q", s))
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusFunding
	case StatusFunding:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

// CheckTransition returns an InvalidStateError for any edge outside
// draft -> funding -> completed|failed.
func CheckTransition(from, to Status) error {
	if !to.Valid() {
		return apperror.NewValidation("status", fmt.Sprintf("unknown status %d", uint8(to)))
	}
	if !from.CanTransitionTo(to) {
		return &apperror.InvalidStateError{Resource: "project", From: from.String(), To: to.String()}
	}
	return nil
}

// CheckMetadataEditable allows metadata updates only while in draft.
func CheckMetadataEditable(s Status) error {
	if s != StatusDraft {
		return &apperror.InvalidStateError{Resource: "project", From: s.String(), Reason: "metadata can only be updated in draft"}
	}
	return nil
}

// Record is a project entry as stored in the registry.
type Record struct {
	ID      uint64 `json:"id"`
	Builder string `json:"builder"`
	CID     string `json:"cid"`
	Status  Status `json:"status"`
}

func (r *Record) IsBuilder(address string) bool {
	return r != nil && strings.EqualFold(r.Builder, address)
}
