package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Payload is caller-supplied JSON kept byte for byte from creation to notification.
type Payload []byte

// IsNull reports whether the payload is absent or the JSON literal null.
func (p Payload) IsNull() bool {
	trimmed := bytes.TrimSpace(p)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Valid reports whether the payload is well-formed JSON.
func (p Payload) Valid() bool {
	return json.Valid(p)
}

// Clone returns a copy that shares no memory with p.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	return append(Payload(nil), p...)
}

// MarshalJSON emits the stored JSON unchanged.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON keeps the raw bytes.
func (p *Payload) UnmarshalJSON(data []byte) error {
	if p == nil {
		return fmt.Errorf("domain.Payload: UnmarshalJSON on nil pointer")
	}
	*p = append((*p)[:0], data...)
	return nil
}

// Value stores the payload as text so drivers keep the exact bytes.
func (p Payload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return string(p), nil
}

// Scan reads a payload column from either driver representation.
func (p *Payload) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = nil
	case []byte:
		*p = append(Payload(nil), v...)
	case string:
		*p = Payload(v)
	default:
		return fmt.Errorf("domain.Payload: cannot scan %T", src)
	}
	return nil
}
