package model

// Source is a retrieved chunk cited by a chat answer
type Source struct {
	Source   string  `json:"source"`
	Page     int     `json:"page,omitempty"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

// ChatAnswer is the answer of the document QA chatbot
type ChatAnswer struct {
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
}

// IngestResult summarizes a corpus rebuild
type IngestResult struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	// Failed lists the sources that could not be extracted
	Failed []string `json:"failed,omitempty"`
}

// Health is the state reported by the health endpoint
type Health struct {
	Status           string `json:"status"`
	Chunks           int    `json:"chunks"`
	Sessions         int    `json:"sessions"`
	Backend          string `json:"backend"`
	BackendAvailable bool   `json:"backend_available"`
}
