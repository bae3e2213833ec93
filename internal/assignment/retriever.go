package assignment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"aufgabenclient/internal/models"
	"aufgabenclient/internal/pdf"
	"aufgabenclient/internal/validation"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

// ArtifactSource lädt PDFs eines Auftrags
type ArtifactSource interface {
	DownloadArtifact(ctx context.Context, id models.ID, role models.Role) ([]byte, error)
}

// Saver legt heruntergeladene Dateien ab und gibt den Speicherort zurück
type Saver interface {
	Save(name string, data []byte) (string, error)
}

type artifactKey struct {
	id   models.ID
	role models.Role
}

// Retriever lädt PDFs auf Anforderung. Jede Rolle hat ihr eigenes Belegt-Flag,
// Schüler- und Lehrer-PDF blockieren sich also nicht gegenseitig.
// Es wird nichts zwischengespeichert, jeder Aufruf lädt neu.
type Retriever struct {
	api     ArtifactSource
	saver   Saver
	journal Journal

	mu   sync.Mutex
	busy map[artifactKey]bool
}

// NewRetriever erstellt einen Retriever. journal darf nil sein.
func NewRetriever(api ArtifactSource, saver Saver, journal Journal) *Retriever {
	return &Retriever{
		api:     api,
		saver:   saver,
		journal: journal,
		busy:    make(map[artifactKey]bool),
	}
}

// Busy meldet, ob für diese Rolle gerade ein Download läuft
func (r *Retriever) Busy(id models.ID, role models.Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy[artifactKey{id, role}]
}

func (r *Retriever) acquire(key artifactKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy[key] {
		return false
	}
	r.busy[key] = true
	return true
}

func (r *Retriever) release(key artifactKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.busy, key)
}

// Download lädt das PDF einer Rolle und speichert es als assignment_{id}_{role}.pdf.
// Der Status des Auftrags wird nicht geprüft, das Backend meldet "not ready" selbst.
// Ein gestarteter Download läuft bis zum Ende, ein Abbruch von ctx wird ignoriert.
func (r *Retriever) Download(ctx context.Context, id models.ID, role models.Role) (*models.ArtifactRecord, error) {
	ctx = context.WithoutCancel(ctx)

	parsed, err := models.ParseRole(string(role))
	if err != nil {
		return nil, &DownloadError{AssignmentID: id, Role: role, Err: err}
	}
	role = parsed
	if strings.TrimSpace(string(id)) == "" {
		return nil, validation.New("assignment_id", "darf nicht leer sein")
	}

	key := artifactKey{id, role}
	if !r.acquire(key) {
		return nil, &DownloadError{AssignmentID: id, Role: role, Err: ErrBusy}
	}
	defer r.release(key)

	name := models.FileName(id, role)
	log.Printf("   [Download] Lade %s...", name)

	data, err := r.api.DownloadArtifact(ctx, id, role)
	if err != nil {
		log.Printf("   [Download] ❌ %s: %v", name, err)
		return nil, &DownloadError{AssignmentID: id, Role: role, Err: err}
	}
	if len(data) == 0 {
		log.Printf("   [Download] ❌ %s: leere Antwort", name)
		return nil, &DownloadError{AssignmentID: id, Role: role, Err: errors.New("leere datei")}
	}

	path, err := r.saver.Save(name, data)
	if err != nil {
		log.Printf("   [Download] ❌ %s konnte nicht gespeichert werden: %v", name, err)
		return nil, &DownloadError{AssignmentID: id, Role: role, Err: err}
	}

	rec := &models.ArtifactRecord{
		ID:           uuid.NewString(),
		AssignmentID: id,
		Role:         role,
		Path:         path,
		Size:         int64(len(data)),
	}
	if info, err := pdf.Inspect(data); err != nil {
		log.Printf("   [Download] ⚠️  %s ist gespeichert, aber nicht lesbar: %v", name, err)
	} else {
		rec.PageCount = info.PageCount
		rec.Preview = info.Preview
	}

	log.Printf("   [Download] ✓ %s gespeichert (%d Bytes, %d Seiten)", path, rec.Size, rec.PageCount)

	if r.journal != nil {
		if err := r.journal.SaveArtifact(rec); err != nil {
			log.Printf("   [Download] ⚠️  Journal-Eintrag fehlgeschlagen: %v", err)
		}
	}
	return rec, nil
}

// FileSaver schreibt Dateien atomar in ein Verzeichnis, ein Fehler hinterlässt keine halbe Datei
type FileSaver struct {
	Dir string
}

func (s FileSaver) Save(name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("ungültiger dateiname %q", name)
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", err
	}

	target := filepath.Join(s.Dir, name)
	// Temporäre Datei im Zielordner, damit das Umbenennen auf demselben Dateisystem bleibt
	if err := renameio.WriteFile(target, data, 0644, renameio.WithTempDir(s.Dir)); err != nil {
		return "", err
	}
	return target, nil
}
