package assignment

import (
	"errors"
	"fmt"

	"aufgabenclient/internal/models"
	"aufgabenclient/internal/validation"
)

// ErrValidation ist die gemeinsame Ursache aller lokalen Eingabefehler
var ErrValidation = validation.ErrValidation

var (
	ErrBusy            = errors.New("download läuft bereits")
	ErrPollTimeout     = errors.New("maximale abfragedauer überschritten")
	ErrTooManyFailures = errors.New("zu viele fehlgeschlagene abfragen in folge")
	ErrAlreadyRunning  = errors.New("abfrage läuft bereits")
)

// GenerationError meldet, dass das Einreichen beim Backend gescheitert ist
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("fehler bei der generierung des auftrags: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// DownloadError meldet einen fehlgeschlagenen PDF-Download
type DownloadError struct {
	AssignmentID models.ID
	Role         models.Role
	Err          error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("fehler beim herunterladen von %s: %v", models.FileName(e.AssignmentID, e.Role), e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
