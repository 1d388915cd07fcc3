package model

// Prompt is an assembled model input. System may be empty.
type Prompt struct {
	System string `json:"system,omitempty"`
	User   string `json:"user"`
}

// Len returns the number of characters sent to the model
func (p Prompt) Len() int {
	return len([]rune(p.System)) + len([]rune(p.User))
}
