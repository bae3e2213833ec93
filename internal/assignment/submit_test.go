package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"aufgabenclient/internal/backend"
	"aufgabenclient/internal/models"
)

type fakeGenerator struct {
	calls  int
	last   *models.AssignmentRequest
	ctxErr error
	resp   *models.GenerateResponse
	err    error
}

func (f *fakeGenerator) GenerateAssignment(ctx context.Context, req *models.AssignmentRequest) (*models.GenerateResponse, error) {
	f.calls++
	f.last = req
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeJournal struct {
	assignments []models.AssignmentRecord
	statuses    []models.Status
	artifacts   []models.ArtifactRecord
}

func (j *fakeJournal) SaveAssignment(rec *models.AssignmentRecord) error {
	j.assignments = append(j.assignments, *rec)
	return nil
}

func (j *fakeJournal) UpdateAssignmentStatus(id models.ID, status models.Status) error {
	j.statuses = append(j.statuses, status)
	return nil
}

func (j *fakeJournal) SaveArtifact(a *models.ArtifactRecord) error {
	j.artifacts = append(j.artifacts, *a)
	return nil
}

func TestSubmitRejectsInvalidRequestsWithoutNetwork(t *testing.T) {
	tests := []struct {
		name string
		req  *models.AssignmentRequest
	}{
		{"nil request", nil},
		{"no student", &models.AssignmentRequest{TopicsText: "Алгебра — 3"}},
		{"blank student", &models.AssignmentRequest{StudentID: "  ", TopicsText: "Алгебра — 3"}},
		{"empty topics", &models.AssignmentRequest{StudentID: "S1"}},
		{"whitespace topics", &models.AssignmentRequest{StudentID: "S1", TopicsText: " \n\t "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{resp: &models.GenerateResponse{AssignmentID: "1"}}
			id, err := NewSubmitter(gen, nil).Submit(context.Background(), tt.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if id != "" {
				t.Errorf("expected no id, got %q", id)
			}
			if gen.calls != 0 {
				t.Errorf("expected no network call, got %d", gen.calls)
			}
		})
	}
}

func TestSubmitReturnsIDAndJournals(t *testing.T) {
	gen := &fakeGenerator{resp: &models.GenerateResponse{AssignmentID: "A42"}}
	journal := &fakeJournal{}

	req, err := BuildRequest("S1", "Алгебра — 3, Геометрия — 2", OptionsForm{IncludePart2: true, MakeTwoPDFs: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	id, err := NewSubmitter(gen, journal).Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "A42" {
		t.Errorf("expected A42, got %q", id)
	}
	if gen.calls != 1 {
		t.Errorf("expected exactly one call, got %d", gen.calls)
	}
	if len(journal.assignments) != 1 || journal.assignments[0].Status != models.StatusPending {
		t.Errorf("expected pending journal entry, got %+v", journal.assignments)
	}
}

func TestSubmitIgnoresCancellation(t *testing.T) {
	gen := &fakeGenerator{resp: &models.GenerateResponse{AssignmentID: "A42"}}
	journal := &fakeJournal{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := &models.AssignmentRequest{StudentID: "S1", TopicsText: "Алгебра — 3"}
	id, err := NewSubmitter(gen, journal).Submit(ctx, req)
	if err != nil {
		t.Fatalf("cancelled caller must not abort the submission: %v", err)
	}
	if id != "A42" {
		t.Errorf("expected A42, got %q", id)
	}
	if gen.ctxErr != nil {
		t.Errorf("backend call saw cancelled context: %v", gen.ctxErr)
	}
	if len(journal.assignments) != 1 {
		t.Errorf("expected journal entry despite cancellation, got %+v", journal.assignments)
	}
}

func TestSubmitTransportFailureIsGenerationError(t *testing.T) {
	gen := &fakeGenerator{err: &backend.TransportError{Op: "generate assignment", StatusCode: 404, Body: `{"detail":"Student not found"}`}}
	journal := &fakeJournal{}

	_, err := NewSubmitter(gen, journal).Submit(context.Background(), &models.AssignmentRequest{StudentID: "9", TopicsText: "x"})

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if backend.StatusCode(err) != 404 {
		t.Errorf("expected wrapped transport status 404, got %d", backend.StatusCode(err))
	}
	if gen.calls != 1 {
		t.Errorf("expected exactly one call (no retry), got %d", gen.calls)
	}
	if len(journal.assignments) != 0 {
		t.Error("failed submission must not be journaled")
	}
}

func TestSubmitWithoutAssignmentID(t *testing.T) {
	gen := &fakeGenerator{resp: &models.GenerateResponse{Message: "ok"}}
	_, err := NewSubmitter(gen, nil).Submit(context.Background(), &models.AssignmentRequest{StudentID: "1", TopicsText: "x"})
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
}

func TestBuildRequestNumericOptions(t *testing.T) {
	tests := []struct {
		name      string
		form      OptionsForm
		count     *int
		maxTime   *int
		shouldErr bool
	}{
		{"blank means auto", OptionsForm{}, nil, nil, false},
		{"whitespace means auto", OptionsForm{CountTotal: "  ", MaxTimeMin: "\t"}, nil, nil, false},
		{"parsed", OptionsForm{CountTotal: " 12 ", MaxTimeMin: "90"}, intPtr(12), intPtr(90), false},
		{"not a number", OptionsForm{CountTotal: "zwölf"}, nil, nil, true},
		{"zero", OptionsForm{MaxTimeMin: "0"}, nil, nil, true},
		{"negative", OptionsForm{CountTotal: "-3"}, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := BuildRequest("S1", "Алгебра", tt.form)
			if tt.shouldErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !equalIntPtr(req.Options.CountTotal, tt.count) || !equalIntPtr(req.Options.MaxTimeMin, tt.maxTime) {
				t.Errorf("unexpected options %+v", req.Options)
			}
		})
	}
}

func TestBlankOptionsSerializeAsNull(t *testing.T) {
	req, err := BuildRequest("S1", "Алгебра", OptionsForm{CountTotal: "", MaxTimeMin: ""})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Options map[string]json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"count_total", "max_time_min"} {
		raw, ok := decoded.Options[key]
		if !ok {
			t.Errorf("%s missing from %s", key, data)
			continue
		}
		if string(raw) != "null" {
			t.Errorf("%s: expected null, got %s", key, raw)
		}
	}
}

func TestOptionsFormAcceptsNumbersAndStrings(t *testing.T) {
	var form OptionsForm
	body := `{"count_total": 7, "max_time_min": "45", "include_part2": false, "make_two_pdfs": true}`
	if err := json.Unmarshal([]byte(body), &form); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if form.CountTotal != "7" || form.MaxTimeMin != "45" {
		t.Errorf("unexpected form %+v", form)
	}

	var empty OptionsForm
	if err := json.Unmarshal([]byte(`{"count_total": null}`), &empty); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if empty.CountTotal != "" {
		t.Errorf("null must become blank, got %q", empty.CountTotal)
	}
}

func intPtr(i int) *int { return &i }

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
