package snapshot

import (
	"encoding/json"
	"fmt"
	"time"
)

// ErrInvalidDocument is returned when the upstream payload is missing one of
// the required fields. An invalid document is treated as a fetch failure and
// is never cached.
var ErrInvalidDocument = fmt.Errorf("invalid ip-ranges document")

// Prefix is a single IPv4 prefix record from the upstream document.
type Prefix struct {
	IPPrefix           string `json:"ip_prefix"`
	Region             string `json:"region"`
	Service            string `json:"service"`
	NetworkBorderGroup string `json:"network_border_group,omitempty"`
}

// IPv6Prefix is a single IPv6 prefix record from the upstream document.
type IPv6Prefix struct {
	IPv6Prefix         string `json:"ipv6_prefix"`
	Region             string `json:"region"`
	Service            string `json:"service"`
	NetworkBorderGroup string `json:"network_border_group,omitempty"`
}

// Document is the parsed upstream IP-ranges document.
type Document struct {
	SyncToken    string       `json:"syncToken"`
	CreateDate   string       `json:"createDate"`
	Prefixes     []Prefix     `json:"prefixes"`
	IPv6Prefixes []IPv6Prefix `json:"ipv6_prefixes"`
}

// Snapshot is one immutable captured copy of the upstream document plus its
// version metadata. A refresh always produces a new Snapshot value; nothing
// mutates an existing one.
type Snapshot struct {
	Document   Document  `json:"document"`
	CapturedAt time.Time `json:"capturedAt"`
	SyncToken  string    `json:"syncToken"`
	CreateDate string    `json:"createDate"`
}

// ParseDocument parses and validates an upstream payload. The publisher's
// syncToken, createDate and both prefix arrays must all be present; an empty
// array is valid, a missing one is not.
func ParseDocument(raw []byte) (Document, error) {
	var probe struct {
		SyncToken    *string          `json:"syncToken"`
		CreateDate   *string          `json:"createDate"`
		Prefixes     *json.RawMessage `json:"prefixes"`
		IPv6Prefixes *json.RawMessage `json:"ipv6_prefixes"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	switch {
	case probe.SyncToken == nil || *probe.SyncToken == "":
		return Document{}, fmt.Errorf("%w: missing syncToken", ErrInvalidDocument)
	case probe.CreateDate == nil || *probe.CreateDate == "":
		return Document{}, fmt.Errorf("%w: missing createDate", ErrInvalidDocument)
	case probe.Prefixes == nil:
		return Document{}, fmt.Errorf("%w: missing prefixes", ErrInvalidDocument)
	case probe.IPv6Prefixes == nil:
		return Document{}, fmt.Errorf("%w: missing ipv6_prefixes", ErrInvalidDocument)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

// New builds a snapshot from a parsed document, stamped with the capture time.
func New(doc Document, capturedAt time.Time) Snapshot {
	return Snapshot{
		Document:   doc,
		CapturedAt: capturedAt,
		SyncToken:  doc.SyncToken,
		CreateDate: doc.CreateDate,
	}
}

// Age reports how long ago the snapshot was captured.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}

// SameVersion reports whether two snapshots carry identical publisher version
// metadata. Both the sync token and the create date must match.
func (s Snapshot) SameVersion(other Snapshot) bool {
	return s.SyncToken == other.SyncToken && s.CreateDate == other.CreateDate
}
