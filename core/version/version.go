// Package version captures append-only, content-hashed snapshots of a quote.
// A committed version is never updated or deleted.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"model-quote/core/money"
	"model-quote/core/quote"
	qerrors "model-quote/internal/errors"
)

// ChangeType categorizes a committed mutation
type ChangeType string

const (
	ItemAdded       ChangeType = "item-added"
	ItemRemoved     ChangeType = "item-removed"
	ItemEdited      ChangeType = "item-edited"
	DiscountChanged ChangeType = "discount-changed"
	StatusChanged   ChangeType = "status-changed"
	Other           ChangeType = "other"
)

// DefaultSummaryLength bounds changes_summary, in runes
const DefaultSummaryLength = 500

// ParseChangeType validates a change type string
func ParseChangeType(s string) (ChangeType, error) {
	ct := ChangeType(s)
	switch ct {
	case ItemAdded, ItemRemoved, ItemEdited, DiscountChanged, StatusChanged, Other:
		return ct, nil
	}
	return "", qerrors.Validation("change_type", "unknown change type %q", s)
}

// Version is an immutable snapshot of one quote state.
// The snapshot is held as canonical JSON so no reference to live state survives.
type Version struct {
	ID             string     `json:"id"`
	QuoteID        string     `json:"quote_id"`
	QuoteNo        string     `json:"quote_no"`
	Number         int        `json:"version_number"`
	ChangeType     ChangeType `json:"change_type"`
	ChangesSummary string     `json:"changes_summary"`
	ContentHash    string     `json:"content_hash"`
	CreatedAt      time.Time  `json:"created_at"`

	snapshot []byte
}

// Restore returns a fresh deep copy of the quote as it was at this version
func (v *Version) Restore() (*quote.Sheet, error) {
	var sheet quote.Sheet
	if err := json.Unmarshal(v.snapshot, &sheet); err != nil {
		return nil, qerrors.Internal("decode version snapshot", err)
	}
	return &sheet, nil
}

// SnapshotJSON returns a copy of the canonical snapshot bytes
func (v *Version) SnapshotJSON() []byte {
	out := make([]byte, len(v.snapshot))
	copy(out, v.snapshot)
	return out
}

// Verify recomputes the content hash
func (v *Version) Verify() error {
	if hashOf(v.snapshot) != v.ContentHash {
		return qerrors.Inconsistency("version %d of quote %s fails its content hash", v.Number, v.QuoteNo)
	}
	return nil
}

// MarshalJSON includes the snapshot document
func (v *Version) MarshalJSON() ([]byte, error) {
	type meta Version
	return json.Marshal(struct {
		*meta
		Snapshot json.RawMessage `json:"snapshot"`
	}{(*meta)(v), json.RawMessage(v.SnapshotJSON())})
}

// Decode rebuilds a stored version and verifies its hash
func Decode(meta Version, snapshot []byte) (*Version, error) {
	v := meta
	v.snapshot = make([]byte, len(snapshot))
	copy(v.snapshot, snapshot)
	if err := v.Verify(); err != nil {
		return nil, err
	}
	return &v, nil
}

// Manager commits versions
type Manager struct {
	now        func() time.Time
	newID      func() string
	maxSummary int
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the commit timestamp source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDs overrides the version id source
func WithIDs(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// WithSummaryLength overrides the summary bound
func WithSummaryLength(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSummary = n
		}
	}
}

// NewManager creates a version manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		now:        time.Now,
		newID:      uuid.NewString,
		maxSummary: DefaultSummaryLength,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Commit snapshots the quote as version sheet.Version+1 and advances sheet.Version.
// Call it once per logical business mutation, after totals are recomputed.
func (m *Manager) Commit(sheet *quote.Sheet, changeType ChangeType, summary string) (*Version, error) {
	if _, err := ParseChangeType(string(changeType)); err != nil {
		return nil, err
	}
	if err := sheet.CheckInvariants(); err != nil {
		return nil, err
	}
	if summary == "" {
		summary = Summarize(changeType, sheet)
	}

	now := m.now().UTC()
	number := sheet.Version + 1
	prevUpdated := sheet.UpdatedAt
	sheet.Version = number
	sheet.UpdatedAt = now

	data, err := json.Marshal(sheet)
	if err != nil {
		sheet.Version = number - 1
		sheet.UpdatedAt = prevUpdated
		return nil, qerrors.Internal("encode version snapshot", err)
	}

	return &Version{
		ID:             m.newID(),
		QuoteID:        sheet.ID,
		QuoteNo:        sheet.QuoteNo,
		Number:         number,
		ChangeType:     changeType,
		ChangesSummary: truncate(summary, m.maxSummary),
		ContentHash:    hashOf(data),
		CreatedAt:      now,
		snapshot:       data,
	}, nil
}

// Summarize builds the default human-readable summary for a change
func Summarize(changeType ChangeType, sheet *quote.Sheet) string {
	switch changeType {
	case ItemAdded:
		return fmt.Sprintf("item added, %d items in quote", len(sheet.Items))
	case ItemRemoved:
		return fmt.Sprintf("item removed, %d items remain", len(sheet.Items))
	case ItemEdited:
		return "item updated"
	case DiscountChanged:
		return fmt.Sprintf("global discount set to %s", money.FormatRate(sheet.GlobalDiscountRate))
	case StatusChanged:
		return fmt.Sprintf("status changed to %s", sheet.Status)
	default:
		return "quote updated"
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
