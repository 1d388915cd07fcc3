package requestlog

import (
	"context"

	"github.com/siherrmann/handbot/model"
)

// Log stores every answered request
type Log interface {
	Append(ctx context.Context, entry *model.LogEntry) error
	// Query returns matching entries in append order
	Query(ctx context.Context, filter Filter) ([]*model.LogEntry, error)
	// CountByCategory counts entries, a missing category counts as model.CategoryUncategorized
	CountByCategory(ctx context.Context) (map[string]int, error)
	Close() error
}

// Filter selects log entries. Empty fields match everything,
// Limit keeps the most recent matches and 0 keeps all.
type Filter struct {
	SenderID string
	Category string
	Limit    int
}

// Matches reports whether the entry passes the sender and category filters
func (f Filter) Matches(entry *model.LogEntry) bool {
	if f.SenderID != "" && entry.SenderID != f.SenderID {
		return false
	}
	if f.Category != "" && entry.CategoryOrDefault() != f.Category {
		return false
	}
	return true
}

// apply filters entries that are already in append order
func (f Filter) apply(entries []*model.LogEntry) []*model.LogEntry {
	matched := []*model.LogEntry{}
	for _, entry := range entries {
		if f.Matches(entry) {
			matched = append(matched, entry)
		}
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[len(matched)-f.Limit:]
	}
	return matched
}

func countByCategory(entries []*model.LogEntry) map[string]int {
	counts := map[string]int{}
	for _, entry := range entries {
		counts[entry.CategoryOrDefault()]++
	}
	return counts
}
