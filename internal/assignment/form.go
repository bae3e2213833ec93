package assignment

import (
	"encoding/json"
	"strconv"
	"strings"

	"aufgabenclient/internal/models"
	"aufgabenclient/internal/validation"
)

// FieldText ist der Inhalt eines Eingabefeldes. Beim Dekodieren werden Zahlen,
// Strings und null angenommen, weil Formulare beides schicken.
type FieldText string

func (f *FieldText) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FieldText(s)
		return nil
	}
	*f = FieldText(raw)
	return nil
}

// OptionsForm sind die Optionen, wie sie der Bediener eingibt
type OptionsForm struct {
	CountTotal   FieldText `json:"count_total"`
	IncludePart2 bool      `json:"include_part2"`
	MaxTimeMin   FieldText `json:"max_time_min"`
	MakeTwoPDFs  bool      `json:"make_two_pdfs"`
}

// DefaultOptionsForm entspricht den Vorgaben des Eingabeformulars
func DefaultOptionsForm() OptionsForm {
	return OptionsForm{IncludePart2: true, MakeTwoPDFs: true}
}

// BuildRequest baut die unveränderliche Anfrage einmalig zum Zeitpunkt des Einreichens.
// Leere Zahlenfelder werden zu nil, nie zu 0.
func BuildRequest(studentID models.ID, topicsText string, form OptionsForm) (*models.AssignmentRequest, error) {
	countTotal, err := parseOptionalInt("count_total", form.CountTotal)
	if err != nil {
		return nil, err
	}
	maxTime, err := parseOptionalInt("max_time_min", form.MaxTimeMin)
	if err != nil {
		return nil, err
	}

	req := &models.AssignmentRequest{
		StudentID:  models.ID(strings.TrimSpace(string(studentID))),
		TopicsText: topicsText,
		Options: models.AssignmentOptions{
			CountTotal:   countTotal,
			IncludePart2: form.IncludePart2,
			MaxTimeMin:   maxTime,
			MakeTwoPDFs:  form.MakeTwoPDFs,
		},
	}
	if err := Validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

func parseOptionalInt(field string, text FieldText) (*int, error) {
	s := strings.TrimSpace(string(text))
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, validation.New(field, "muss eine ganze Zahl sein")
	}
	if n <= 0 {
		return nil, validation.New(field, "muss größer als 0 sein")
	}
	return &n, nil
}

// Validate prüft die Vorbedingungen einer Anfrage, ohne das Netzwerk zu berühren
func Validate(req *models.AssignmentRequest) error {
	if req == nil {
		return validation.New("", "leere anfrage")
	}
	if strings.TrimSpace(string(req.StudentID)) == "" {
		return validation.New("student_id", "Schüler auswählen")
	}
	if strings.TrimSpace(req.TopicsText) == "" {
		return validation.New("topics_text", "Themen für die Generierung eingeben")
	}
	return validation.Struct(req)
}
