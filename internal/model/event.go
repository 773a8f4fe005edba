// Package model defines the records that flow through ransomwatch: raw
// filesystem notifications, canonical events, and alerts.
package model

import "time"

// Kind is the type of a filesystem change.
type Kind string

const (
	KindCreated  Kind = "created"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
	KindMoved    Kind = "moved"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCreated, KindModified, KindDeleted, KindMoved:
		return true
	default:
		return false
	}
}

// Notification is a raw filesystem change as delivered by the event source.
// DestPath is only set for KindMoved.
type Notification struct {
	Kind     Kind
	SrcPath  string
	DestPath string
}

// CanonicalEvent is a normalized filesystem change. It is never mutated
// after construction.
type CanonicalEvent struct {
	Timestamp time.Time
	Kind      Kind
	SrcPath   string
	DestPath  string
	ExtBefore string
	ExtAfter  string
}

// Path returns the path the event leaves behind: the destination of a move
// when one is known, otherwise the source.
func (e CanonicalEvent) Path() string {
	if e.DestPath != "" {
		return e.DestPath
	}
	return e.SrcPath
}

// ExtensionChanged reports whether the event is a move that changed the
// file suffix.
func (e CanonicalEvent) ExtensionChanged() bool {
	return e.Kind == KindMoved && e.ExtBefore != e.ExtAfter
}

// EventRecord is the persisted shape of a CanonicalEvent.
type EventRecord struct {
	TS        string `json:"ts"`
	Type      string `json:"type"`
	SrcPath   string `json:"src_path"`
	DestPath  string `json:"dest_path"`
	ExtBefore string `json:"ext_before"`
	ExtAfter  string `json:"ext_after"`
}

// Record converts the event to its log shape.
func (e CanonicalEvent) Record() EventRecord {
	return EventRecord{
		TS:        FormatTimestamp(e.Timestamp),
		Type:      string(e.Kind),
		SrcPath:   e.SrcPath,
		DestPath:  e.DestPath,
		ExtBefore: e.ExtBefore,
		ExtAfter:  e.ExtAfter,
	}
}

// TimestampLayout is the second-precision local time layout used in every
// persisted record.
const TimestampLayout = "2006-01-02T15:04:05"

// FormatTimestamp renders t with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Now returns the current time truncated to the second.
func Now() time.Time {
	return time.Now().Truncate(time.Second)
}
