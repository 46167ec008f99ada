package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// StringArray stores an ordered list of strings in a single text column.
// Values are written as a JSON array on every driver; reads also accept the
// PostgreSQL array literal form ({a,b,"c,d"}) so rows written by other tools load.
type StringArray []string

// Scan implements the sql.Scanner interface for reading from the database.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return a.scanString(string(v))
	case string:
		return a.scanString(v)
	default:
		return errors.New("StringArray: unsupported scan type")
	}
}

func (a *StringArray) scanString(str string) error {
	str = strings.TrimSpace(str)

	switch {
	case str == "":
		*a = StringArray{}
		return nil
	case strings.HasPrefix(str, "["):
		var out []string
		if err := json.Unmarshal([]byte(str), &out); err != nil {
			return err
		}
		*a = out
		return nil
	case strings.HasPrefix(str, "{") && strings.HasSuffix(str, "}"):
		inner := str[1 : len(str)-1]
		if inner == "" {
			*a = StringArray{}
			return nil
		}
		*a = parsePostgresArray(inner)
		return nil
	default:
		*a = StringArray{str}
		return nil
	}
}

// parsePostgresArray parses PostgreSQL array format, handling quoted strings.
func parsePostgresArray(s string) []string {
	var result []string
	var current strings.Builder
	inQuotes := false
	escaped := false

	for _, r := range s {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch r {
		case '\\':
			escaped = true
		case '"':
			inQuotes = !inQuotes
		case ',':
			if inQuotes {
				current.WriteRune(r)
			} else {
				result = append(result, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// Value implements the driver.Valuer interface for writing to the database.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// GormDataType returns the GORM data type hint.
func (StringArray) GormDataType() string {
	return "text"
}

// Strings returns a copy of the array as a plain slice.
func (a StringArray) Strings() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a))
	copy(out, a)
	return out
}
