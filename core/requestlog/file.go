package requestlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
)

// FileLog writes one JSON object per line. Entries are also kept in memory for queries.
type FileLog struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	entries []*model.LogEntry
	logger  *slog.Logger
}

// fileEntry is the on disk format, timestamps of older logs carry no time zone
type fileEntry struct {
	Timestamp  string  `json:"timestamp"`
	SenderID   string  `json:"sender_id"`
	EmployeeID *string `json:"employee_id"`
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Category   *string `json:"category,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// OpenFileLog opens or creates the log at path.
// Corrupt lines are skipped and a file in the older JSON array format is
// converted. In both cases the file is rewritten with the readable entries.
func OpenFileLog(path string, logger *slog.Logger) (*FileLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, helper.NewError("create log directory", err)
		}
	}

	entries, rewrite, err := readLogFile(path, logger)
	if err != nil {
		return nil, err
	}

	if rewrite {
		logger.Warn("Rewriting request log", "path", path, "entries", len(entries))
		if err := writeLogFile(path, entries); err != nil {
			return nil, helper.NewError("rewrite log file", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, helper.NewError("open log file", err)
	}

	return &FileLog{
		path:    path,
		file:    file,
		entries: entries,
		logger:  logger,
	}, nil
}

func readLogFile(path string, logger *slog.Logger) ([]*model.LogEntry, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []*model.LogEntry{}, false, nil
	}
	if err != nil {
		return nil, false, helper.NewError("read log file", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []*model.LogEntry{}, false, nil
	}

	// Older logs are a single JSON array
	if trimmed[0] == '[' {
		var raw []fileEntry
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			logger.Warn("Request log is corrupt, starting a new one", "path", path, "error", err)
			return []*model.LogEntry{}, true, nil
		}
		entries := make([]*model.LogEntry, len(raw))
		for i := range raw {
			entries[i] = raw[i].toModel()
		}
		return entries, true, nil
	}

	entries := []*model.LogEntry{}
	skipped := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var raw fileEntry
		if err := json.Unmarshal(line, &raw); err != nil {
			skipped++
			continue
		}
		entries = append(entries, raw.toModel())
	}
	if err := scanner.Err(); err != nil {
		return nil, false, helper.NewError("scan log file", err)
	}

	if skipped > 0 {
		logger.Warn("Skipped corrupt request log lines", "path", path, "skipped", skipped)
	}

	return entries, skipped > 0, nil
}

// writeLogFile replaces the file through a temporary file and a rename
func writeLogFile(path string, entries []*model.LogEntry) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			tmp.Close()
			return err
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func (e fileEntry) toModel() *model.LogEntry {
	entry := &model.LogEntry{
		SenderID: e.SenderID,
		Question: e.Question,
		Answer:   e.Answer,
	}
	if e.EmployeeID != nil {
		entry.EmployeeID = *e.EmployeeID
	}
	if e.Category != nil {
		entry.Category = *e.Category
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, e.Timestamp, time.Local); err == nil {
			entry.Timestamp = t
			break
		}
	}
	return entry
}

// Append writes the entry as one line, a zero timestamp is set to now
func (l *FileLog) Append(ctx context.Context, entry *model.LogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return helper.NewError("marshal log entry", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return helper.NewError("append log entry", os.ErrClosed)
	}
	if _, err := l.file.Write(line); err != nil {
		return helper.NewError("write log entry", err)
	}

	stored := *entry
	l.entries = append(l.entries, &stored)
	return nil
}

func (l *FileLog) Query(ctx context.Context, filter Filter) ([]*model.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return filter.apply(l.entries), nil
}

func (l *FileLog) CountByCategory(ctx context.Context) (map[string]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return countByCategory(l.entries), nil
}

func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
