package domain

import (
	"bytes"
	"encoding/json"
)

// CheckState is the tri-state check flag of a checklist item. CheckNone
// means the line renders without a checkbox (a section header or plain
// note); CheckOff and CheckOn are the two checkbox states. A line that
// has a checkbox never goes back to CheckNone.
type CheckState int

const (
	CheckNone CheckState = iota
	CheckOff
	CheckOn
)

var jsonNull = []byte("null")

// MarshalJSON writes the legacy nullable-boolean wire form: null for
// CheckNone, false/true for the checkbox states.
func (s CheckState) MarshalJSON() ([]byte, error) {
	switch s {
	case CheckOn:
		return []byte("true"), nil
	case CheckOff:
		return []byte("false"), nil
	default:
		return jsonNull, nil
	}
}

func (s *CheckState) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*s = CheckNone
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v {
		*s = CheckOn
	} else {
		*s = CheckOff
	}
	return nil
}

// Item is a single checklist line.
type Item struct {
	Text    string     `json:"text"`
	Checked CheckState `json:"checked"`
}

// Toggle flips the checkbox between CheckOff and CheckOn. Lines without
// a checkbox are left alone; toggling them is not a defined transition.
func (it *Item) Toggle() {
	switch it.Checked {
	case CheckOff:
		it.Checked = CheckOn
	case CheckOn:
		it.Checked = CheckOff
	}
}
