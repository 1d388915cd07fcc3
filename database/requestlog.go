package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
	loadSql "github.com/siherrmann/handbot/sql"
)

// RequestLogDBHandlerFunctions defines the interface for request log database operations.
type RequestLogDBHandlerFunctions interface {
	InsertLogEntry(ctx context.Context, entry *model.LogEntry) error
	SelectLogEntries(ctx context.Context, senderID string, category string, limit int) ([]*model.LogEntry, error)
	CountLogEntriesByCategory(ctx context.Context) (map[string]int, error)
}

// RequestLogDBHandler handles the 'request_log' table
type RequestLogDBHandler struct {
	db *helper.Database
}

// NewRequestLogDBHandler creates a new request log database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRequestLogDBHandler(db *helper.Database, force bool) (*RequestLogDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	requestLogDbHandler := &RequestLogDBHandler{
		db: db,
	}

	err := loadSql.LoadRequestLogSql(requestLogDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load request log sql", err)
	}

	err = requestLogDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RequestLogDBHandler")

	return requestLogDbHandler, nil
}

// CreateTable creates the 'request_log' table in the database.
// If the table already exists, it does not create it again.
func (h *RequestLogDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_request_log();`)
	if err != nil {
		log.Panicf("error initializing request_log table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table request_log")

	return nil
}

// InsertLogEntry appends an entry, a zero timestamp is set to now
func (h *RequestLogDBHandler) InsertLogEntry(ctx context.Context, entry *model.LogEntry) error {
	var loggedAt interface{}
	if !entry.Timestamp.IsZero() {
		loggedAt = entry.Timestamp
	}
	var employeeID interface{}
	if entry.EmployeeID != "" {
		employeeID = entry.EmployeeID
	}

	var id int64
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT insert_request_log($1, $2, $3, $4, $5, $6)`,
		loggedAt,
		entry.SenderID,
		employeeID,
		entry.Question,
		entry.Answer,
		entry.CategoryOrDefault(),
	).Scan(&id)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectLogEntries returns entries in append order.
// Empty senderID or category match all entries, limit keeps the most recent entries, 0 keeps all.
func (h *RequestLogDBHandler) SelectLogEntries(ctx context.Context, senderID string, category string, limit int) ([]*model.LogEntry, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_request_log($1, $2, $3)`,
		senderID,
		category,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	entries := []*model.LogEntry{}
	for rows.Next() {
		entry := &model.LogEntry{}
		var employeeID sql.NullString
		err := rows.Scan(
			&entry.Timestamp,
			&entry.SenderID,
			&employeeID,
			&entry.Question,
			&entry.Answer,
			&entry.Category,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		entry.EmployeeID = employeeID.String

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entries, nil
}

// CountLogEntriesByCategory returns the number of entries per category
func (h *RequestLogDBHandler) CountLogEntriesByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM count_request_log_by_category()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var category string
		var total int
		err := rows.Scan(&category, &total)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		counts[category] = total
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return counts, nil
}
