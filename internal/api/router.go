package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter erstellt den HTTP-Router mit allen Endpoints
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()

	// API-Version
	api := r.PathPrefix("/api/v1").Subrouter()

	// System
	api.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// Schüler
	api.HandleFunc("/students", h.GetStudents).Methods("GET")
	api.HandleFunc("/students", h.CreateStudent).Methods("POST")
	api.HandleFunc("/students/{id}", h.GetStudent).Methods("GET")
	api.HandleFunc("/students/{id}", h.UpdateStudent).Methods("PUT")
	api.HandleFunc("/students/{id}/profile", h.GetProfile).Methods("GET")
	api.HandleFunc("/students/{id}/profile", h.SaveProfile).Methods("POST", "PUT")

	// Aufträge
	api.HandleFunc("/assignments", h.GetAssignments).Methods("GET")
	api.HandleFunc("/assignments", h.SubmitAssignment).Methods("POST")
	api.HandleFunc("/assignments/history", h.GetHistory).Methods("GET")
	api.HandleFunc("/assignments/{id}", h.GetAssignment).Methods("GET")
	api.HandleFunc("/assignments/{id}/download/{role}", h.DownloadArtifact).Methods("POST")
	api.HandleFunc("/assignments/{id}/file/{role}", h.GetArtifactFile).Methods("GET")
	api.HandleFunc("/assignments/{id}/watch", h.WatchAssignment).Methods("GET")

	// Aufgabenbank
	api.HandleFunc("/tasks", h.GetTasks).Methods("GET")
	api.HandleFunc("/tasks/import", h.ImportTasks).Methods("POST")
	api.HandleFunc("/tasks/search", h.SearchTasks).Methods("GET")
	api.HandleFunc("/tasks/{id}", h.GetTask).Methods("GET")

	// Statische Dateien (Frontend)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(h.config.StaticPath)))

	// CORS für lokale Entwicklung
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	return c.Handler(r)
}
