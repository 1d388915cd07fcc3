package model

// DefaultTopK is the number of chunks retrieved per question
const DefaultTopK = 4

// QueryConfig represents configuration for a retrieval query
type QueryConfig struct {
	TopK int `json:"top_k"`
	// MaxDistance drops results farther than this squared distance, zero disables it
	MaxDistance float64 `json:"max_distance,omitempty"`
}

// DefaultQueryConfig returns the default retrieval configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK: DefaultTopK,
	}
}
