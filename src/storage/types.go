package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONStringArray stores a string slice as a JSON array in a TEXT column.
type JSONStringArray []string

// Scan implements sql.Scanner. NULL and empty values scan to an empty slice
// rather than nil, so callers can append without checking.
func (j *JSONStringArray) Scan(value any) error {
	if value == nil {
		*j = JSONStringArray{}
		return nil
	}

	switch v := value.(type) {
	case string:
		if v == "" || v == "[]" {
			*j = JSONStringArray{}
			return nil
		}
		return json.Unmarshal([]byte(v), j)
	case []byte:
		if len(v) == 0 || string(v) == "[]" {
			*j = JSONStringArray{}
			return nil
		}
		return json.Unmarshal(v, j)
	default:
		return fmt.Errorf("cannot scan %T into JSONStringArray", value)
	}
}

// Value implements driver.Valuer. A nil slice is stored as an empty array,
// keeping the column non-NULL.
func (j JSONStringArray) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "[]", nil
	}
	return json.Marshal(j)
}
