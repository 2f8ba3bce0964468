package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSON is a custom type for handling JSON data in GORM
type JSON map[string]interface{}

// Value implements the driver.Valuer interface for JSON
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSON
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}

	var result JSON
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*j = result
	return nil
}

// FailureRecord is one entry of a payment's failure history
type FailureRecord struct {
	Reason        string    `json:"reason"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Details       JSON      `json:"details,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// FailureHistory is the ordered list of failures recorded against a payment
type FailureHistory []FailureRecord

// Value implements the driver.Valuer interface for FailureHistory
func (h FailureHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for FailureHistory
func (h *FailureHistory) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}

	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}

	var result FailureHistory
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*h = result
	return nil
}

// Last returns the most recent failure, if any
func (h FailureHistory) Last() (FailureRecord, bool) {
	if len(h) == 0 {
		return FailureRecord{}, false
	}
	return h[len(h)-1], true
}

// HasTransaction reports whether a failure of the given gateway transaction was already recorded
func (h FailureHistory) HasTransaction(transactionID string) bool {
	if transactionID == "" {
		return false
	}
	for _, r := range h {
		if r.TransactionID == transactionID {
			return true
		}
	}
	return false
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("type assertion to []byte failed")
	}
}
