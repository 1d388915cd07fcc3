package model

import "time"

// Session is the verification state of a sender, created on its first message
type Session struct {
	EmployeeID string    `json:"employee_id,omitempty"`
	Verified   bool      `json:"verified"`
	CreatedAt  time.Time `json:"created_at"`
	VerifiedAt time.Time `json:"verified_at,omitempty"`
}

// Turn is one question and answer of a conversation
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
