package model

import "time"

// CategoryUncategorized is counted for entries without a category
const CategoryUncategorized = "Uncategorized"

// LogEntry is a single answered request
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	SenderID   string    `json:"sender_id"`
	EmployeeID string    `json:"employee_id,omitempty"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Category   string    `json:"category,omitempty"`
}

// CategoryOrDefault returns the category or CategoryUncategorized
func (e *LogEntry) CategoryOrDefault() string {
	if e.Category == "" {
		return CategoryUncategorized
	}
	return e.Category
}
