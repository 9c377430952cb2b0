package model

import (
	"encoding/json"
	"fmt"
)

// ID is an opaque identifier. The backend emits numeric ids for cabs and
// trips and string ids for users, so both JSON forms decode into an ID.
type ID string

// UnmarshalJSON accepts JSON strings, numbers and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(b), err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Empty reports whether the id is unset.
func (id ID) Empty() bool { return id == "" }
