package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"aufgabenclient/internal/assignment"
	"aufgabenclient/internal/backend"
	"aufgabenclient/internal/config"
	"aufgabenclient/internal/models"
	"aufgabenclient/internal/storage"
	"aufgabenclient/internal/validation"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Handler verwaltet alle API-Endpunkte der Bedienkonsole
type Handler struct {
	client    *backend.Client
	store     storage.Storage
	submitter *assignment.Submitter
	retriever *assignment.Retriever
	pollCfg   assignment.PollerConfig
	config    *config.Config
	upgrader  websocket.Upgrader
}

// NewHandler erstellt einen neuen API-Handler. Ein Retriever wird von allen Anfragen geteilt,
// damit die Belegt-Flags pro Auftrag und Rolle gelten.
func NewHandler(store storage.Storage, client *backend.Client, cfg *config.Config) *Handler {
	return &Handler{
		client:    client,
		store:     store,
		submitter: assignment.NewSubmitter(client, store),
		retriever: assignment.NewRetriever(client, assignment.FileSaver{Dir: cfg.DownloadsPath}, store),
		pollCfg: assignment.PollerConfig{
			Interval:               cfg.PollInterval(),
			MaxDuration:            cfg.PollMaxDuration(),
			MaxConsecutiveFailures: cfg.PollMaxFailures,
		},
		config: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Response-Helper
func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}

// failResponse bildet Fehler auf HTTP-Status ab
func failResponse(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, validation.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidRole):
		status = http.StatusBadRequest
	case errors.Is(err, assignment.ErrBusy):
		status = http.StatusConflict
	default:
		var te *backend.TransportError
		if errors.As(err, &te) {
			// Client-Fehler des Backends werden durchgereicht, alles andere ist ein Gateway-Problem
			if te.StatusCode >= 400 && te.StatusCode < 500 {
				status = te.StatusCode
			} else {
				status = http.StatusBadGateway
			}
		}
	}
	errorResponse(w, err.Error(), status)
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return validation.New("", fmt.Sprintf("ungültiges JSON: %v", err))
	}
	return nil
}

// Hilfsfunktion für optionale Query-Parameter
func getQueryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func listParams(r *http.Request) backend.ListParams {
	q := r.URL.Query()
	return backend.ListParams{
		StudentID:  models.ID(q.Get("student_id")),
		Topic:      q.Get("topic"),
		Difficulty: getQueryInt(r, "difficulty", 0),
		Skip:       getQueryInt(r, "skip", 0),
		Limit:      getQueryInt(r, "limit", 0),
	}
}

// === System Endpoints ===

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	jsonResponse(w, map[string]interface{}{
		"status":            "ok",
		"backend_url":       h.client.BaseURL(),
		"backend_available": h.client.IsAvailable(ctx),
		"downloads_path":    h.config.DownloadsPath,
		"timestamp":         time.Now(),
	}, http.StatusOK)
}

// === Schüler Endpoints ===

func (h *Handler) GetStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.client.ListStudents(r.Context(), listParams(r))
	if err != nil {
		failResponse(w, err)
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	jsonResponse(w, students, http.StatusOK)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var student models.Student
	if err := decodeBody(r, &student); err != nil {
		failResponse(w, err)
		return
	}
	if err := validation.Struct(&student); err != nil {
		failResponse(w, err)
		return
	}

	created, err := h.client.CreateStudent(r.Context(), &student)
	if err != nil {
		failResponse(w, err)
		return
	}
	jsonResponse(w, created, http.StatusCreated)
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := models.ID(mux.Vars(r)["id"])

	student, err := h.client.GetStudent(r.Context(), id)
	if err != nil {
		failResponse(w, err)
		return
	}
	jsonResponse(w, student, http.StatusOK)
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id := models.ID(mux.Vars(r)["id"])

	var student models.Student
	if err := decodeBody(r, &student); err != nil {
		failResponse(w, err)
		return
	}
	if err := validation.Struct(&student); err != nil {
		failResponse(w, err)
		return
	}

	updated, err := h.client.UpdateStudent(r.Context(), id, &student)
	if err != nil {
		failResponse(w, err)
		return
	}
	jsonResponse(w, updated, http.StatusOK)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := models.ID(mux.Vars(r)["id"])

	profile, err := h.client.GetProfile(r.Context(), id)
	if err != nil {
		failResponse(w, err)
		return
	}
	jsonResponse(w, profile, http.StatusOK)
}

// SaveProfile legt das Profil an (POST) oder aktualisiert es (PUT)
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	id := models.ID(mux.Vars(r)["id"])

	var profile models.StudentProfile
	if err := decodeBody(r, &profile); err != nil {
		failResponse(w, err)
		return
	}
	if err := validation.Struct(&profile); err != nil {
		failResponse(w, err)
		return
	}

	var (
		saved *models.StudentProfile
		err   error
	)
	status := http.StatusOK
	if r.Method == http.MethodPost {
		saved, err = h.client.CreateProfile(r.Context(), id, &profile)
		status = http.StatusCreated
	} else {
		saved, err = h.client.UpdateProfile(r.Context(), id, &profile)
	}
	if err != nil {
		failResponse(w, err)
		return
	}
	jsonResponse(w, saved, status)
}

// === Auftrags Endpoints ===

type submitRequest struct {
	StudentID  models.ID               `json:"student_id"`
	TopicsText string                  `json:"topics_text"`
	Options    *assignment.OptionsForm `json:"options"`
}

func (h *Handler) SubmitAssignment(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		failResponse(w, err)
		return
	}

	form := assignment.DefaultOptionsForm()
	if req.Options != nil {
		form = *req.Options
	}

	built, err := assignment.BuildRequest(req.StudentID, req.TopicsText, form)
	if err != nil {
		failResponse(w, err)
		return
	}

	id, err := h.submitter.Submit(r.Context(), built)
	if err != nil {
		failResponse(w, err)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"assignment_id": id,
		"message":       "Auftrag angelegt, Generierung läuft",
	}, http.StatusAccepted)
}

func (h *Handler) GetAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.client.ListAssignments(r.Context(), listParams(r))
	if err != nil {
		failResponse(w, err)
		return
	}
	if assignments == nil {
		assignments = []models.Assignment{}
	}
	jsonResponse(w, assignments, http.StatusOK)
}

// GetHistory liefert die lokal eingereichten Aufträge aus dem Journal
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.GetAllAssignments()
	if err != nil {
		errorResponse(w, "Fehler beim Laden des Verlaufs", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.AssignmentRecord{}
	}
	jsonResponse(w, map[string]interface{}{
		"assignments": records,
		"count":       len(records),
	}, http.StatusOK)
}

func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	id := models.ID(mux.Vars(r)["id"])

	snapshot, err := h.client.GetAssignment(r.Context(), id)
	if err != nil {
		failResponse(w, err)
		return
	}
	jsonResponse(w, snapshot, http.StatusOK)
}

func (h *Handler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := models.ID(vars["id"])

	role, err := models.ParseRole(vars["role"])
	if err != nil {
		failResponse(w, err)
		return
	}

	rec, err := h.retriever.Download(r.Context(), id, role)
	if err != nil {
		failResponse(w, err)
		return
	}
	jsonResponse(w, rec, http.StatusOK)
}

// GetArtifactFile liefert ein bereits gespeichertes PDF aus
func (h *Handler) GetArtifactFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := models.ID(vars["id"])

	role, err := models.ParseRole(vars["role"])
	if err != nil {
		failResponse(w, err)
		return
	}

	path := filepath.Join(h.config.DownloadsPath, models.FileName(id, role))
	rec, err := h.store.GetArtifact(id, role)
	if err == nil {
		path = rec.Path
	} else if !errors.Is(err, sql.ErrNoRows) {
		log.Printf("   [API] ⚠️  Journal nicht lesbar: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		errorResponse(w, "PDF nicht gefunden, bitte zuerst herunterladen", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", models.FileName(id, role)))
	http.ServeFile(w, r, path)
}

// WatchAssignment meldet Statusänderungen über WebSocket. Der Poller lebt so lange wie die Verbindung.
func (h *Handler) WatchAssignment(w http.ResponseWriter, r *http.Request) {
	id := models.ID(mux.Vars(r)["id"])

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Der Browser sendet nichts, ein Lesefehler bedeutet: Verbindung zu
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	poller := assignment.NewPoller(id, h.client, h.pollCfg, h.store)
	poller.OnUpdate = func(u assignment.Update) {
		if err := conn.WriteJSON(u); err != nil {
			cancel()
		}
	}

	log.Printf("   [API] Beobachtung von Auftrag %s gestartet", poller.ID())
	err = poller.Run(ctx)

	final := map[string]interface{}{
		"assignment_id": poller.ID(),
		"state":         poller.State(),
		"attempts":      poller.Attempts(),
		"done":          true,
	}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		log.Printf("   [API] Beobachtung von Auftrag %s nach %d Abfragen beendet (Verbindung geschlossen)", poller.ID(), poller.Attempts())
		return
	default:
		final["error"] = err.Error()
	}
	if poller.State() == assignment.StateFailed {
		final["message"] = "Generierung fehlgeschlagen, bitte einen neuen Auftrag starten"
	}
	conn.WriteJSON(final)
}

// === Aufgabenbank Endpoints ===

func (h *Handler) ImportTasks(w http.ResponseWriter, r *http.Request) {
	// Leerer Body importiert das Datenverzeichnis des Backends
	var req models.ImportTasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		failResponse(w, validation.New("", fmt.Sprintf("ungültiges JSON: %v", err)))
		return
	}

	resp, err := h.client.ImportTasks(r.Context(), &req)
	if err != nil {
		failResponse(w, err)
		return
	}
	jsonResponse(w, resp, http.StatusAccepted)
}

func (h *Handler) SearchTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("q") == "" {
		failResponse(w, validation.New("q", "darf nicht leer sein"))
		return
	}

	resp, err := h.client.SearchTasks(r.Context(), backend.SearchParams{
		Query:         q.Get("q"),
		Topic:         q.Get("topic"),
		DifficultyMin: getQueryInt(r, "difficulty_min", 0),
		DifficultyMax: getQueryInt(r, "difficulty_max", 0),
	})
	if err != nil {
		failResponse(w, err)
		return
	}
	jsonResponse(w, resp, http.StatusOK)
}

func (h *Handler) GetTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.client.ListTasks(r.Context(), listParams(r))
	if err != nil {
		failResponse(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	jsonResponse(w, tasks, http.StatusOK)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := models.ID(mux.Vars(r)["id"])

	task, err := h.client.GetTask(r.Context(), id)
	if err != nil {
		failResponse(w, err)
		return
	}
	jsonResponse(w, task, http.StatusOK)
}
