package domain

import (
	"encoding/json"
	"testing"
)

func TestCheckStateJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		state CheckState
		wire  string
	}{
		{name: "no checkbox", state: CheckNone, wire: "null"},
		{name: "unchecked", state: CheckOff, wire: "false"},
		{name: "checked", state: CheckOn, wire: "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.state)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.wire {
				t.Fatalf("marshal %v = %s, want %s", tt.state, data, tt.wire)
			}
			var got CheckState
			if err := json.Unmarshal([]byte(tt.wire), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got != tt.state {
				t.Fatalf("unmarshal %s = %v, want %v", tt.wire, got, tt.state)
			}
		})
	}
}

func TestCheckStateUnmarshalRejectsGarbage(t *testing.T) {
	var s CheckState
	if err := json.Unmarshal([]byte(`"yes"`), &s); err == nil {
		t.Fatal("expected error for non-boolean value")
	}
}

func TestItemToggleInvolution(t *testing.T) {
	it := Item{Text: "Passport", Checked: CheckOff}
	it.Toggle()
	if it.Checked != CheckOn {
		t.Fatalf("after first toggle: %v", it.Checked)
	}
	it.Toggle()
	if it.Checked != CheckOff {
		t.Fatalf("after second toggle: %v", it.Checked)
	}
}

func TestItemToggleWithoutCheckboxIsNoop(t *testing.T) {
	it := Item{Text: "Documents", Checked: CheckNone}
	it.Toggle()
	if it.Checked != CheckNone {
		t.Fatalf("toggling a line without a checkbox changed state to %v", it.Checked)
	}
}

func TestItemsDecodeNullChecked(t *testing.T) {
	var items []Item
	raw := `[{"text":"Documents","checked":null},{"text":"Passport","checked":false}]`
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if items[0].Checked != CheckNone {
		t.Fatalf("null checked decoded as %v", items[0].Checked)
	}
	if items[1].Checked != CheckOff {
		t.Fatalf("false checked decoded as %v", items[1].Checked)
	}
}
