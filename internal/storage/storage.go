package storage

import (
	"database/sql"
	"time"

	"aufgabenclient/internal/models"

	_ "modernc.org/sqlite"
)

// Storage ist das lokale Journal der Bedienkonsole. Quelle der Wahrheit bleibt das Backend.
type Storage interface {
	// Aufträge
	SaveAssignment(rec *models.AssignmentRecord) error
	UpdateAssignmentStatus(id models.ID, status models.Status) error
	GetAssignment(id models.ID) (*models.AssignmentRecord, error)
	GetAllAssignments() ([]models.AssignmentRecord, error)

	// PDFs
	SaveArtifact(a *models.ArtifactRecord) error
	GetArtifact(assignmentID models.ID, role models.Role) (*models.ArtifactRecord, error)
	GetArtifacts(assignmentID models.ID) ([]models.ArtifactRecord, error)

	Close() error
}

// SQLiteStorage implementiert Storage mit SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage erstellt eine neue SQLite-Storage-Instanz
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Poller und Downloads schreiben aus verschiedenen Goroutinen
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assignments (
		assignment_id TEXT PRIMARY KEY,
		student_id TEXT,
		topics_text TEXT,
		status TEXT DEFAULT 'pending',
		submitted_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		assignment_id TEXT NOT NULL,
		role TEXT NOT NULL,
		path TEXT NOT NULL,
		size INTEGER,
		page_count INTEGER DEFAULT 0,
		preview TEXT,
		saved_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_assignment ON artifacts(assignment_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Aufträge

func (s *SQLiteStorage) SaveAssignment(rec *models.AssignmentRecord) error {
	now := time.Now().UTC()
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	if rec.Status == "" {
		rec.Status = models.StatusPending
	}
	// Ein Poller kann den Auftrag schon mit neuerem Status angelegt haben, der bleibt erhalten
	_, err := s.db.Exec(`
		INSERT INTO assignments (assignment_id, student_id, topics_text, status, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(assignment_id) DO UPDATE SET
			student_id = excluded.student_id,
			topics_text = excluded.topics_text
	`, string(rec.AssignmentID), string(rec.StudentID), rec.TopicsText, string(rec.Status), rec.SubmittedAt, rec.UpdatedAt)
	return err
}

// UpdateAssignmentStatus legt unbekannte Aufträge an, etwa wenn ein fremder Auftrag beobachtet wird
func (s *SQLiteStorage) UpdateAssignmentStatus(id models.ID, status models.Status) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO assignments (assignment_id, student_id, topics_text, status, submitted_at, updated_at)
		VALUES (?, '', '', ?, ?, ?)
		ON CONFLICT(assignment_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at
	`, string(id), string(status), now, now)
	return err
}

func (s *SQLiteStorage) GetAssignment(id models.ID) (*models.AssignmentRecord, error) {
	var rec models.AssignmentRecord
	var assignmentID, studentID, status string
	err := s.db.QueryRow(`
		SELECT assignment_id, student_id, topics_text, status, submitted_at, updated_at
		FROM assignments WHERE assignment_id = ?
	`, string(id)).Scan(&assignmentID, &studentID, &rec.TopicsText, &status, &rec.SubmittedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.AssignmentID = models.ID(assignmentID)
	rec.StudentID = models.ID(studentID)
	rec.Status = models.Status(status)

	rec.Artifacts, err = s.GetArtifacts(rec.AssignmentID)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStorage) GetAllAssignments() ([]models.AssignmentRecord, error) {
	rows, err := s.db.Query(`
		SELECT assignment_id, student_id, topics_text, status, submitted_at, updated_at
		FROM assignments ORDER BY submitted_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.AssignmentRecord
	for rows.Next() {
		var rec models.AssignmentRecord
		var assignmentID, studentID, status string
		if err := rows.Scan(&assignmentID, &studentID, &rec.TopicsText, &status, &rec.SubmittedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.AssignmentID = models.ID(assignmentID)
		rec.StudentID = models.ID(studentID)
		rec.Status = models.Status(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Nur eine Verbindung: erst die Zeilen schließen, dann die PDFs nachladen
	rows.Close()

	for i := range records {
		records[i].Artifacts, err = s.GetArtifacts(records[i].AssignmentID)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// PDFs

func (s *SQLiteStorage) SaveArtifact(a *models.ArtifactRecord) error {
	if a.SavedAt.IsZero() {
		a.SavedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO artifacts (id, assignment_id, role, path, size, page_count, preview, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, string(a.AssignmentID), string(a.Role), a.Path, a.Size, a.PageCount, a.Preview, a.SavedAt)
	return err
}

// GetArtifact liefert das zuletzt gespeicherte PDF einer Rolle
func (s *SQLiteStorage) GetArtifact(assignmentID models.ID, role models.Role) (*models.ArtifactRecord, error) {
	var a models.ArtifactRecord
	var id, r string
	err := s.db.QueryRow(`
		SELECT id, assignment_id, role, path, size, page_count, preview, saved_at
		FROM artifacts WHERE assignment_id = ? AND role = ? ORDER BY saved_at DESC LIMIT 1
	`, string(assignmentID), string(role)).Scan(&a.ID, &id, &r, &a.Path, &a.Size, &a.PageCount, &a.Preview, &a.SavedAt)
	if err != nil {
		return nil, err
	}
	a.AssignmentID = models.ID(id)
	a.Role = models.Role(r)
	return &a, nil
}

func (s *SQLiteStorage) GetArtifacts(assignmentID models.ID) ([]models.ArtifactRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, assignment_id, role, path, size, page_count, preview, saved_at
		FROM artifacts WHERE assignment_id = ? ORDER BY saved_at
	`, string(assignmentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []models.ArtifactRecord
	for rows.Next() {
		var a models.ArtifactRecord
		var id, r string
		if err := rows.Scan(&a.ID, &id, &r, &a.Path, &a.Size, &a.PageCount, &a.Preview, &a.SavedAt); err != nil {
			return nil, err
		}
		a.AssignmentID = models.ID(id)
		a.Role = models.Role(r)
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
