package detector

import (
	"time"

	"ransomwatch/internal/model"
)

// pruneAbove is the number of tracked subjects past which expired entries
// are swept on the next firing.
const pruneAbove = 1024

type suppressKey struct {
	rule    model.Rule
	subject string
}

// suppressor silences a (rule, subject) pair until its cooldown expires.
type suppressor struct {
	until map[suppressKey]time.Time
}

func newSuppressor() *suppressor {
	return &suppressor{until: make(map[suppressKey]time.Time)}
}

// allow reports whether rule may fire for subject at now, and if so starts
// its cooldown. A non-positive cooldown always allows.
func (s *suppressor) allow(rule model.Rule, subject string, now time.Time, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return true
	}

	key := suppressKey{rule: rule, subject: subject}
	if until, ok := s.until[key]; ok && now.Before(until) {
		return false
	}

	if len(s.until) >= pruneAbove {
		s.prune(now)
	}
	s.until[key] = now.Add(cooldown)
	return true
}

func (s *suppressor) prune(now time.Time) {
	for k, until := range s.until {
		if !now.Before(until) {
			delete(s.until, k)
		}
	}
}
