package model

// RetrievalResult represents a chunk retrieved by a query
type RetrievalResult struct {
	Chunk    *Chunk  `json:"chunk"`
	Distance float64 `json:"distance"` // Squared euclidean distance to the query
	Rank     int     `json:"rank"`
}
