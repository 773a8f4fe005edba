// Package normalize turns raw filesystem notifications into canonical events.
package normalize

import (
	"path/filepath"
	"strings"
	"time"

	"ransomwatch/internal/model"
)

// Extension returns the lower-cased suffix of the last element of path,
// including the leading dot. Dotfiles such as ".bashrc", names ending in a
// dot, and anything without a dot have no extension.
func Extension(path string) string {
	if path == "" {
		return ""
	}
	name := filepath.Base(path)
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i:])
}

// Event builds the canonical form of n observed at now. The destination is
// only carried for moves; a move without one keeps its source extension.
func Event(n model.Notification, now time.Time) model.CanonicalEvent {
	ev := model.CanonicalEvent{
		Timestamp: now.Truncate(time.Second),
		Kind:      n.Kind,
		SrcPath:   n.SrcPath,
		ExtBefore: Extension(n.SrcPath),
	}
	ev.ExtAfter = ev.ExtBefore

	if n.Kind == model.KindMoved && n.DestPath != "" {
		ev.DestPath = n.DestPath
		ev.ExtAfter = Extension(n.DestPath)
	}
	return ev
}
