package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// StopList is a custom type for handling the embedded stops JSONB column in PostgreSQL
type StopList []Stop

// Value implements the driver.Valuer interface
func (s StopList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Stop(s))
}

// Scan implements the sql.Scanner interface
func (s *StopList) Scan(src interface{}) error {
	if src == nil {
		*s = StopList{}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StopList: %T", src)
	}

	var stops []Stop
	if err := json.Unmarshal(data, &stops); err != nil {
		return fmt.Errorf("failed to unmarshal stops: %w", err)
	}
	*s = stops
	return nil
}

// Sorted returns a copy of the stops ordered by sequence
func (s StopList) Sorted() StopList {
	out := make(StopList, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sequence < out[j].Sequence
	})
	return out
}
