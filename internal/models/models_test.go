package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestIDEncoding(t *testing.T) {
	tests := []struct {
		id       ID
		expected string
	}{
		{"42", `42`},
		{"0", `0`},
		{"A42", `"A42"`},
		{"007", `"007"`},
		{"", `""`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.id)
		if err != nil {
			t.Fatalf("marshal %q: %v", tt.id, err)
		}
		if string(data) != tt.expected {
			t.Errorf("ID %q: expected %s, got %s", tt.id, tt.expected, data)
		}
	}
}

func TestIDDecoding(t *testing.T) {
	tests := []struct {
		input    string
		expected ID
		fail     bool
	}{
		{`42`, "42", false},
		{`"A42"`, "A42", false},
		{`null`, "", false},
		{`true`, "", true},
	}

	for _, tt := range tests {
		var id ID
		err := json.Unmarshal([]byte(tt.input), &id)
		if tt.fail {
			if err == nil {
				t.Errorf("input %s expected to fail", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("input %s failed: %v", tt.input, err)
		}
		if id != tt.expected {
			t.Errorf("input %s: expected %q, got %q", tt.input, tt.expected, id)
		}
	}
}

func TestTimestampFormats(t *testing.T) {
	for _, input := range []string{
		`"2024-01-01T12:00:00"`,
		`"2024-01-01T12:00:00.123456"`,
		`"2024-01-01T12:00:00Z"`,
		`"2024-01-01T12:00:00+03:00"`,
	} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(input), &ts); err != nil {
			t.Errorf("%s: %v", input, err)
			continue
		}
		if ts.Year() != 2024 || ts.Hour() != 12 {
			t.Errorf("%s parsed as %v", input, ts.Time)
		}
	}

	var ts Timestamp
	if err := json.Unmarshal([]byte(`"gestern"`), &ts); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("Teacher"); err != nil || r != RoleTeacher {
		t.Errorf("expected teacher, got %q %v", r, err)
	}
	if _, err := ParseRole("parent"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
	if got := FileName("A42", RoleTeacher); got != "assignment_A42_teacher.pdf" {
		t.Errorf("unexpected file name %q", got)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
		known    bool
	}{
		{StatusPending, false, true},
		{StatusProcessing, false, true},
		{StatusCompleted, true, true},
		{StatusFailed, true, true},
		{"generating_pdfs", false, false},
	}
	for _, tt := range tests {
		if tt.status.IsTerminal() != tt.terminal || tt.status.IsKnown() != tt.known {
			t.Errorf("%s: terminal=%v known=%v", tt.status, tt.status.IsTerminal(), tt.status.IsKnown())
		}
	}
}
