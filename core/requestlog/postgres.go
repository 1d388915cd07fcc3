package requestlog

import (
	"context"

	"github.com/siherrmann/handbot/database"
	"github.com/siherrmann/handbot/model"
)

// PostgresLog stores log entries in the request_log table
type PostgresLog struct {
	handler *database.RequestLogDBHandler
}

func NewPostgresLog(handler *database.RequestLogDBHandler) *PostgresLog {
	return &PostgresLog{handler: handler}
}

func (l *PostgresLog) Append(ctx context.Context, entry *model.LogEntry) error {
	return l.handler.InsertLogEntry(ctx, entry)
}

func (l *PostgresLog) Query(ctx context.Context, filter Filter) ([]*model.LogEntry, error) {
	return l.handler.SelectLogEntries(ctx, filter.SenderID, filter.Category, filter.Limit)
}

func (l *PostgresLog) CountByCategory(ctx context.Context) (map[string]int, error) {
	return l.handler.CountLogEntriesByCategory(ctx)
}

// Close is a no-op, the database is owned by the caller
func (l *PostgresLog) Close() error {
	return nil
}
