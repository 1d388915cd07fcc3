package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/siherrmann/handbot/helper"
)

// Keys set by the ingestion pipeline
const (
	MetadataFormat         = "format"          // "text" or "pdf"
	MetadataPageCount      = "page_count"      // pages of a PDF document
	MetadataChunkingMethod = "chunking_method" // "line" or "character"
	MetadataSentinel       = "sentinel"        // true on the fallback chunk of an empty corpus
)

// Metadata is the JSONB metadata of documents and chunks.
// Numbers read back from JSON are float64, use the accessors to read them.
type Metadata map[string]interface{}

// Value implements the driver.Valuer interface for database storage
func (m Metadata) Value() (driver.Value, error) {
	return m.Marshal()
}

// Scan implements the sql.Scanner interface for database retrieval
func (m *Metadata) Scan(value interface{}) error {
	return m.Unmarshal(value)
}

// Marshal converts Metadata to JSON bytes
func (m Metadata) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal reads JSON bytes or text, a map or nil into m
func (m *Metadata) Unmarshal(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case Metadata:
		*m = v
		return nil
	case map[string]interface{}:
		*m = Metadata(v)
		return nil
	case string:
		return m.unmarshalJSON([]byte(v))
	case []byte:
		return m.unmarshalJSON(v)
	default:
		return helper.NewError("metadata type assertion", fmt.Errorf("unsupported metadata type %T", value))
	}
}

func (m *Metadata) unmarshalJSON(data []byte) error {
	decoded := Metadata{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return helper.NewError("metadata json", err)
	}
	// JSON null keeps an empty map
	if decoded == nil {
		decoded = Metadata{}
	}
	*m = decoded
	return nil
}

// String returns the string stored under key or ""
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Int returns the whole number stored under key
func (m Metadata) Int(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

// Bool reports whether key holds true
func (m Metadata) Bool(key string) bool {
	b, _ := m[key].(bool)
	return b
}
