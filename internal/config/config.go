package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config enthält alle Konfigurationseinstellungen
type Config struct {
	// Server-Einstellungen (Bedienkonsole)
	ServerPort string `json:"server_port"`

	// Backend
	APIURL string `json:"api_url"`
	// 0 = nur Transport-Standardwerte
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`

	// Pfade
	DatabasePath  string `json:"database_path"`
	DownloadsPath string `json:"downloads_path"`
	StaticPath    string `json:"static_path"`

	// Abfrage des Auftragsstatus
	PollIntervalSeconds int `json:"poll_interval_seconds"`
	PollMaxMinutes      int `json:"poll_max_minutes"`  // 0 = unbegrenzt
	PollMaxFailures     int `json:"poll_max_failures"` // 0 = unbegrenzt
}

// Default gibt die Standardkonfiguration zurück
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		ServerPort:          "8080",
		APIURL:              "http://localhost:8000",
		DatabasePath:        "aufgaben.db",
		DownloadsPath:       filepath.Join(homeDir, "Downloads"),
		StaticPath:          "./web/static",
		PollIntervalSeconds: 5,
		PollMaxMinutes:      30,
		PollMaxFailures:     12,
	}
}

// Load lädt die Konfiguration aus einer Datei
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadEnv liest eine optionale .env-Datei und überschreibt Felder aus Umgebungsvariablen
func (c *Config) LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Println("   ⚠️  Keine .env-Datei gefunden, verwende Umgebung des Systems")
	}

	if v := os.Getenv("API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.ServerPort = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("DOWNLOADS_PATH"); v != "" {
		c.DownloadsPath = v
	}
	c.RequestTimeoutSeconds = envInt("REQUEST_TIMEOUT_SECONDS", c.RequestTimeoutSeconds)
	c.PollIntervalSeconds = envInt("POLL_INTERVAL_SECONDS", c.PollIntervalSeconds)
	c.PollMaxMinutes = envInt("POLL_MAX_MINUTES", c.PollMaxMinutes)
	c.PollMaxFailures = envInt("POLL_MAX_FAILURES", c.PollMaxFailures)
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		log.Printf("   ⚠️  %s=%q ist keine gültige Zahl, verwende %d", key, v, fallback)
		return fallback
	}
	return i
}

// PollInterval gibt den Abstand zwischen zwei Statusabfragen zurück
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// PollMaxDuration gibt die maximale Abfragedauer zurück, 0 heißt unbegrenzt
func (c *Config) PollMaxDuration() time.Duration {
	return time.Duration(c.PollMaxMinutes) * time.Minute
}

// RequestTimeout gibt das Timeout für einzelne Backend-Anfragen zurück
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Save speichert die Konfiguration in eine Datei
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
