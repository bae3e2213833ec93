package assignment

import (
	"context"
	"errors"
	"log"

	"aufgabenclient/internal/models"
)

// Generator reicht Generierungsanfragen beim Backend ein
type Generator interface {
	GenerateAssignment(ctx context.Context, req *models.AssignmentRequest) (*models.GenerateResponse, error)
}

// Journal ist der Ausschnitt des lokalen Speichers, den der Lebenszyklus fortschreibt
type Journal interface {
	SaveAssignment(rec *models.AssignmentRecord) error
	UpdateAssignmentStatus(id models.ID, status models.Status) error
	SaveArtifact(a *models.ArtifactRecord) error
}

// Submitter reicht Aufträge ein. Es gibt genau einen Netzwerkaufruf und keine Wiederholung.
type Submitter struct {
	api     Generator
	journal Journal
}

// NewSubmitter erstellt einen Submitter. journal darf nil sein.
func NewSubmitter(api Generator, journal Journal) *Submitter {
	return &Submitter{api: api, journal: journal}
}

// Submit prüft die Anfrage lokal, sendet sie und gibt die ID des neuen Auftrags zurück.
// Eine abgeschickte Anfrage wird nicht abgebrochen, sonst legt das Backend einen Auftrag an,
// dessen ID niemand erfährt. ctx liefert nur Werte, keine Abbruchsignale.
func (s *Submitter) Submit(ctx context.Context, req *models.AssignmentRequest) (models.ID, error) {
	if err := Validate(req); err != nil {
		log.Printf("   [Submit] ⚠️  Ungültige Anfrage: %v", err)
		return "", err
	}
	ctx = context.WithoutCancel(ctx)

	log.Printf("   [Submit] Sende Auftrag für Schüler %s (%d Zeichen Themen)", req.StudentID, len([]rune(req.TopicsText)))
	resp, err := s.api.GenerateAssignment(ctx, req)
	if err != nil {
		log.Printf("   [Submit] ❌ Fehler bei der Generierung: %v", err)
		return "", &GenerationError{Err: err}
	}
	if resp.AssignmentID == "" {
		log.Println("   [Submit] ❌ Antwort enthält keine assignment_id")
		return "", &GenerationError{Err: errors.New("antwort ohne assignment_id")}
	}

	log.Printf("   [Submit] ✓ Auftrag %s angelegt", resp.AssignmentID)

	if s.journal != nil {
		rec := &models.AssignmentRecord{
			AssignmentID: resp.AssignmentID,
			StudentID:    req.StudentID,
			TopicsText:   req.TopicsText,
			Status:       models.StatusPending,
		}
		if err := s.journal.SaveAssignment(rec); err != nil {
			log.Printf("   [Submit] ⚠️  Journal-Eintrag fehlgeschlagen: %v", err)
		}
	}

	return resp.AssignmentID, nil
}
