package requestlog

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerLog stores log entries in an embedded badger database
type BadgerLog struct {
	store  *badgerhold.Store
	logger *slog.Logger
}

// badgerEntry is the stored record, Seq orders entries by append
type badgerEntry struct {
	Seq        uint64 `badgerhold:"key"`
	Timestamp  time.Time
	SenderID   string `badgerhold:"index"`
	EmployeeID string
	Question   string
	Answer     string
	Category   string
}

// OpenBadgerLog opens or creates the badger database in dir
func OpenBadgerLog(dir string, logger *slog.Logger) (*BadgerLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, helper.NewError("create log directory", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, helper.NewError("open badger log", err)
	}

	logger.Debug("Opened badger request log", "path", dir)

	return &BadgerLog{
		store:  store,
		logger: logger,
	}, nil
}

func (l *BadgerLog) Append(ctx context.Context, entry *model.LogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	record := &badgerEntry{
		Timestamp:  entry.Timestamp,
		SenderID:   entry.SenderID,
		EmployeeID: entry.EmployeeID,
		Question:   entry.Question,
		Answer:     entry.Answer,
		Category:   entry.Category,
	}
	if err := l.store.Insert(badgerhold.NextSequence(), record); err != nil {
		return helper.NewError("insert log entry", err)
	}

	return nil
}

func (l *BadgerLog) Query(ctx context.Context, filter Filter) ([]*model.LogEntry, error) {
	var query *badgerhold.Query
	if filter.SenderID != "" {
		query = badgerhold.Where("SenderID").Eq(filter.SenderID).Index("SenderID")
	}

	entries, err := l.find(query)
	if err != nil {
		return nil, err
	}

	return filter.apply(entries), nil
}

func (l *BadgerLog) CountByCategory(ctx context.Context) (map[string]int, error) {
	entries, err := l.find(nil)
	if err != nil {
		return nil, err
	}

	return countByCategory(entries), nil
}

// find returns the matching entries sorted by sequence
func (l *BadgerLog) find(query *badgerhold.Query) ([]*model.LogEntry, error) {
	var records []badgerEntry
	if err := l.store.Find(&records, query); err != nil {
		return nil, helper.NewError("find log entries", err)
	}

	slices.SortFunc(records, func(a, b badgerEntry) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})

	entries := make([]*model.LogEntry, len(records))
	for i, record := range records {
		entries[i] = &model.LogEntry{
			Timestamp:  record.Timestamp,
			SenderID:   record.SenderID,
			EmployeeID: record.EmployeeID,
			Question:   record.Question,
			Answer:     record.Answer,
			Category:   record.Category,
		}
	}
	return entries, nil
}

func (l *BadgerLog) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
