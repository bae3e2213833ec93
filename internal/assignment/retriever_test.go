package assignment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"aufgabenclient/internal/backend"
	"aufgabenclient/internal/models"
)

// gatedSource blockiert Downloads, bis release geschlossen wird
type gatedSource struct {
	mu      sync.Mutex
	calls   map[models.Role]int
	started chan models.Role
	release chan struct{}
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		calls:   make(map[models.Role]int),
		started: make(chan models.Role, 4),
		release: make(chan struct{}),
	}
}

func (g *gatedSource) DownloadArtifact(ctx context.Context, id models.ID, role models.Role) ([]byte, error) {
	g.mu.Lock()
	g.calls[role]++
	g.mu.Unlock()
	g.started <- role
	<-g.release
	return []byte("%PDF-1.4 " + string(role)), nil
}

func TestRetrieverRoundTrip(t *testing.T) {
	pdfBytes := []byte("%PDF-1.4\n%Lehrer\n%%EOF")
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdfBytes)
	}))
	defer srv.Close()

	dir := t.TempDir()
	journal := &fakeJournal{}
	r := NewRetriever(backend.NewClient(srv.URL, time.Second), FileSaver{Dir: dir}, journal)

	rec, err := r.Download(context.Background(), "A42", models.RoleTeacher)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/assignments/A42/download/teacher" {
		t.Errorf("unexpected request path %s", gotPath)
	}

	want := filepath.Join(dir, "assignment_A42_teacher.pdf")
	if rec.Path != want {
		t.Errorf("expected %s, got %s", want, rec.Path)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != string(pdfBytes) {
		t.Errorf("saved bytes differ: %q", data)
	}
	if rec.Size != int64(len(pdfBytes)) {
		t.Errorf("expected size %d, got %d", len(pdfBytes), rec.Size)
	}
	if len(journal.artifacts) != 1 || journal.artifacts[0].Role != models.RoleTeacher {
		t.Errorf("expected one journaled artifact, got %+v", journal.artifacts)
	}
	if r.Busy("A42", models.RoleTeacher) {
		t.Error("busy flag must be cleared after download")
	}
}

func TestRetrieverBackendFailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Assignment not ready"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := NewRetriever(backend.NewClient(srv.URL, time.Second), FileSaver{Dir: dir}, nil)

	_, err := r.Download(context.Background(), "A42", models.RoleStudent)
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if dlErr.Role != models.RoleStudent || dlErr.AssignmentID != "A42" {
		t.Errorf("unexpected error details %+v", dlErr)
	}
	if backend.StatusCode(err) != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", backend.StatusCode(err))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty directory, found %d entries", len(entries))
	}
	if r.Busy("A42", models.RoleStudent) {
		t.Error("busy flag must be cleared after failure")
	}
}

func TestRetrieverIgnoresCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4\n%%EOF"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	journal := &fakeJournal{}
	r := NewRetriever(backend.NewClient(srv.URL, time.Second), FileSaver{Dir: dir}, journal)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	rec, err := r.Download(ctx, "A42", models.RoleStudent)
	if err != nil {
		t.Fatalf("started download must finish: %v", err)
	}
	if _, err := os.Stat(rec.Path); err != nil {
		t.Errorf("expected saved file: %v", err)
	}
	if len(journal.artifacts) != 1 {
		t.Errorf("expected journaled artifact, got %+v", journal.artifacts)
	}
}

func TestRetrieverRejectsInvalidRole(t *testing.T) {
	src := newGatedSource()
	r := NewRetriever(src, FileSaver{Dir: t.TempDir()}, nil)

	_, err := r.Download(context.Background(), "A42", models.Role("admin"))
	if !errors.Is(err, models.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if len(src.calls) != 0 {
		t.Errorf("expected no network call, got %v", src.calls)
	}
}

func TestRetrieverBusyFlagsPerRole(t *testing.T) {
	src := newGatedSource()
	dir := t.TempDir()
	r := NewRetriever(src, FileSaver{Dir: dir}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, role := range models.Roles() {
		wg.Add(1)
		go func(role models.Role) {
			defer wg.Done()
			_, err := r.Download(context.Background(), "A42", role)
			errs <- err
		}(role)
	}

	// beide Downloads laufen gleichzeitig
	<-src.started
	<-src.started
	if !r.Busy("A42", models.RoleStudent) || !r.Busy("A42", models.RoleTeacher) {
		t.Fatal("expected both roles to be busy")
	}

	// zweiter Download derselben Rolle wird abgelehnt
	_, err := r.Download(context.Background(), "A42", models.RoleStudent)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(src.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("unexpected download error: %v", err)
		}
	}

	for _, role := range models.Roles() {
		if r.Busy("A42", role) {
			t.Errorf("%s still busy", role)
		}
		if _, err := os.Stat(filepath.Join(dir, models.FileName("A42", role))); err != nil {
			t.Errorf("missing file for %s: %v", role, err)
		}
	}
	if src.calls[models.RoleStudent] != 1 || src.calls[models.RoleTeacher] != 1 {
		t.Errorf("expected one call per role, got %v", src.calls)
	}
}

func TestRetrieverDoesNotCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	r := NewRetriever(backend.NewClient(srv.URL, time.Second), FileSaver{Dir: t.TempDir()}, nil)
	for i := 0; i < 2; i++ {
		if _, err := r.Download(context.Background(), "5", models.RoleStudent); err != nil {
			t.Fatalf("download %d: %v", i, err)
		}
	}
	if calls != 2 {
		t.Errorf("expected 2 requests, got %d", calls)
	}
}

func TestFileSaverRejectsPaths(t *testing.T) {
	s := FileSaver{Dir: t.TempDir()}
	for _, name := range []string{"", "../x.pdf", "a/b.pdf", `a\b.pdf`} {
		if _, err := s.Save(name, []byte("x")); err == nil {
			t.Errorf("expected error for %q", name)
		}
	}
}
