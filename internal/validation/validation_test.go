package validation

import (
	"errors"
	"testing"

	"aufgabenclient/internal/models"
)

func TestStructReportsJSONFieldNames(t *testing.T) {
	zero := 0
	tests := []struct {
		name  string
		value interface{}
		field string
	}{
		{"missing student", &models.AssignmentRequest{TopicsText: "Алгебра"}, "student_id"},
		{"missing topics", &models.AssignmentRequest{StudentID: "1"}, "topics_text"},
		{"zero count", &models.AssignmentRequest{StudentID: "1", TopicsText: "x", Options: models.AssignmentOptions{CountTotal: &zero}}, "count_total"},
		{"bad email", &models.Student{Name: "Иван", Email: "kein-mail"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.value)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var verr *Error
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("expected field %s, got %v", tt.field, err)
			}
		})
	}
}

func TestStructAcceptsValidRequest(t *testing.T) {
	five := 5
	req := &models.AssignmentRequest{
		StudentID:  "S1",
		TopicsText: "Алгебра — 3",
		Options:    models.AssignmentOptions{CountTotal: &five},
	}
	if err := Struct(req); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
