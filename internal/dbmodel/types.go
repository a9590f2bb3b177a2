// Copyright 2026 Mandatevault Ltd.

package dbmodel

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Strings is a data type that stores a slice of strings into a single
// column. The strings are encoded as a JSON array and stored in a BLOB
// data type.
type Strings []string

// GormDataType implements schema.GormDataTypeInterface.
func (s Strings) GormDataType() string {
	return "bytes"
}

// Value implements driver.Valuer.
func (s Strings) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *Strings) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	var buf []byte
	switch v := src.(type) {
	case []byte:
		buf = v
	case string:
		buf = []byte(v)
	default:
		return fmt.Errorf("cannot unmarshal %T as Strings", src)
	}
	return json.Unmarshal(buf, s)
}

// Contains reports whether the given string is present in the slice.
func (s Strings) Contains(v string) bool {
	for _, s := range s {
		if s == v {
			return true
		}
	}
	return false
}

// A Map stores a generic map in a database column. The map is encoded as
// JSON and stored in a BLOB element.
type Map map[string]interface{}

// GormDataType implements schema.GormDataTypeInterface.
func (m Map) GormDataType() string {
	return "bytes"
}

// Value implements driver.Valuer.
func (m Map) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *Map) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var buf []byte
	switch v := src.(type) {
	case []byte:
		buf = v
	case string:
		buf = []byte(v)
	default:
		return fmt.Errorf("cannot unmarshal %T as Map", src)
	}
	return json.Unmarshal(buf, m)
}

// JSON stores a raw JSON document in a database column.
type JSON json.RawMessage

// GormDataType implements schema.GormDataTypeInterface.
func (JSON) GormDataType() string {
	return "bytes"
}

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("cannot unmarshal %T as JSON", src)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (j JSON) MarshalJSON() ([]byte, error) {
	return json.RawMessage(j).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSON) UnmarshalJSON(data []byte) error {
	return (*json.RawMessage)(j).UnmarshalJSON(data)
}
