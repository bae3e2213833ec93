package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ID ist ein opaker Bezeichner des Backends. Das Backend vergibt Ganzzahlen,
// der Client behandelt sie aber als Zeichenketten.
type ID string

// MarshalJSON schreibt rein numerische IDs als JSON-Zahl, alles andere als String
func (id ID) MarshalJSON() ([]byte, error) {
	if isNumeric(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON akzeptiert Zahl, String und null
func (id *ID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ungültige ID %s: %w", raw, err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

func isNumeric(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Timestamp liest sowohl RFC3339 als auch die zeitzonenlosen Zeitstempel,
// die das Backend ausliefert ("2024-01-01T12:00:00").
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unbekanntes Zeitformat: %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Status ist der Verarbeitungsstand eines Auftrags auf dem Backend
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal meldet completed oder failed. Aus diesen Zuständen gibt es keinen Übergang mehr.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsKnown meldet, ob der Status zu den vier dokumentierten Werten gehört.
// Das Backend liefert zwischendurch auch "generating" oder "generating_pdfs".
func (s Status) IsKnown() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Role wählt eine der beiden PDF-Varianten eines Auftrags
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

var ErrInvalidRole = errors.New("ungültige PDF-Rolle")

// Roles gibt alle gültigen Rollen zurück
func Roles() []Role {
	return []Role{RoleStudent, RoleTeacher}
}

// ParseRole wandelt einen freien String in eine Rolle um
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleTeacher:
		return RoleTeacher, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// FileName liefert den Dateinamen, unter dem ein PDF gespeichert wird
func FileName(assignmentID ID, role Role) string {
	return fmt.Sprintf("assignment_%s_%s.pdf", assignmentID, role)
}

// AssignmentOptions sind die optionalen Vorgaben für die Generierung.
// nil bei den Zahlenfeldern bedeutet "automatisch", das Backend wählt selbst.
type AssignmentOptions struct {
	CountTotal   *int `json:"count_total" validate:"omitempty,gt=0"`
	IncludePart2 bool `json:"include_part2"`
	MaxTimeMin   *int `json:"max_time_min" validate:"omitempty,gt=0"`
	MakeTwoPDFs  bool `json:"make_two_pdfs"`
}

// AssignmentRequest ist die Anfrage an /api/assignments/generate
type AssignmentRequest struct {
	StudentID  ID                `json:"student_id" validate:"required"`
	TopicsText string            `json:"topics_text" validate:"required"`
	Options    AssignmentOptions `json:"options"`
}

// GenerateResponse ist die Antwort auf eine Generierungsanfrage
type GenerateResponse struct {
	AssignmentID ID                `json:"assignment_id"`
	DownloadURLs map[string]string `json:"download_urls,omitempty"`
	Message      string            `json:"message,omitempty"`
}

// Assignment ist ein Schnappschuss des Auftrags, wie ihn das Backend liefert
type Assignment struct {
	ID          ID                 `json:"id"`
	StudentID   ID                 `json:"student_id,omitempty"`
	Student     *Student           `json:"student,omitempty"`
	TopicsText  string             `json:"topics_text"`
	Status      Status             `json:"status"`
	Options     *AssignmentOptions `json:"options,omitempty"`
	CreatedAt   Timestamp          `json:"created_at"`
	CompletedAt *Timestamp         `json:"completed_at,omitempty"`
	Items       []AssignmentItem   `json:"items,omitempty"`
}

// AssignmentItem ist eine ausgewählte Aufgabe innerhalb eines fertigen Auftrags
type AssignmentItem struct {
	ID              ID       `json:"id,omitempty"`
	OrderIndex      int      `json:"order_index,omitempty"`
	Task            *Task    `json:"task,omitempty"`
	SelectionReason string   `json:"selection_reason,omitempty"`
	RAGScore        *float64 `json:"rag_score,omitempty"`
	VectorScore     *float64 `json:"vector_score,omitempty"`
	BM25Score       *float64 `json:"bm25_score,omitempty"`
	CombinedScore   *float64 `json:"combined_score,omitempty"`
}

// Relevance gibt rag_score zurück, sonst combined_score
func (i AssignmentItem) Relevance() (float64, bool) {
	if i.RAGScore != nil {
		return *i.RAGScore, true
	}
	if i.CombinedScore != nil {
		return *i.CombinedScore, true
	}
	return 0, false
}

// Task repräsentiert eine Aufgabe aus der Aufgabenbank
type Task struct {
	ID              ID       `json:"id,omitempty"`
	Source          string   `json:"source,omitempty"`
	Topic           string   `json:"topic"`
	Subtopic        string   `json:"subtopic,omitempty"`
	Difficulty      int      `json:"difficulty"` // 1-5
	Skills          []string `json:"skills,omitempty"`
	StatementText   string   `json:"statement_text"`
	Answer          string   `json:"answer,omitempty"`
	SolutionText    string   `json:"solution_text,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	TimeEstimateSec *int     `json:"time_estimate_sec,omitempty"`
	Format          string   `json:"format,omitempty"`
}

// Student repräsentiert einen Schüler
type Student struct {
	ID        ID              `json:"id,omitempty"`
	Name      string          `json:"name" validate:"required"`
	Email     string          `json:"email" validate:"required,email"`
	CreatedAt *Timestamp      `json:"created_at,omitempty"`
	UpdatedAt *Timestamp      `json:"updated_at,omitempty"`
	Profile   *StudentProfile `json:"profile,omitempty"`
}

// StudentProfile enthält die Lernvoraussetzungen eines Schülers
type StudentProfile struct {
	ID                 ID                     `json:"id,omitempty"`
	StudentID          ID                     `json:"student_id,omitempty"`
	Grade              *int                   `json:"grade,omitempty" validate:"omitempty,gte=1,lte=11"`
	EgeDate            *Timestamp             `json:"ege_date,omitempty"`
	TargetScore        *int                   `json:"target_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	Pace               string                 `json:"pace,omitempty" validate:"omitempty,oneof=slow medium fast"`
	WeakTopics         []string               `json:"weak_topics,omitempty"`
	StrongTopics       []string               `json:"strong_topics,omitempty"`
	PreferredTaskTypes []string               `json:"preferred_task_types,omitempty"`
	PastMistakes       []string               `json:"past_mistakes,omitempty"`
	ProfileData        map[string]interface{} `json:"profile_data,omitempty"`
}

// ImportTasksRequest startet einen Import in die Aufgabenbank
type ImportTasksRequest struct {
	Filename string `json:"filename,omitempty"`
	Tasks    []Task `json:"tasks,omitempty"`
}

// ImportTasksResponse ist die Antwort des Backends auf einen Import
type ImportTasksResponse struct {
	SessionID  ID     `json:"session_id"`
	Message    string `json:"message"`
	TotalTasks int    `json:"total_tasks"`
}

// SearchResult ist ein Treffer der Aufgabensuche
type SearchResult struct {
	TaskID        ID      `json:"task_id"`
	VectorScore   float64 `json:"vector_score"`
	BM25Score     float64 `json:"bm25_score"`
	CombinedScore float64 `json:"combined_score"`
	Topic         string  `json:"topic"`
	Statement     string  `json:"statement"`
}

// SearchResponse ist die Antwort der Aufgabensuche
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Mode    string         `json:"mode"`
}

// AssignmentRecord ist der lokale Verlaufseintrag eines eingereichten Auftrags
type AssignmentRecord struct {
	AssignmentID ID               `json:"assignment_id"`
	StudentID    ID               `json:"student_id"`
	TopicsText   string           `json:"topics_text"`
	Status       Status           `json:"status"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Artifacts    []ArtifactRecord `json:"artifacts,omitempty"`
}

// ArtifactRecord beschreibt ein lokal gespeichertes PDF
type ArtifactRecord struct {
	ID           string    `json:"id"`
	AssignmentID ID        `json:"assignment_id"`
	Role         Role      `json:"role"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	PageCount    int       `json:"page_count"`
	Preview      string    `json:"preview,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}
