package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aufgabenclient/internal/models"
	"github.com/google/uuid"
)

// DefaultBaseURL ist die Adresse des Backends, wenn nichts konfiguriert ist
const DefaultBaseURL = "http://localhost:8000"

// TransportError beschreibt einen fehlgeschlagenen Aufruf des Backends.
// StatusCode ist 0, wenn keine HTTP-Antwort zustande kam.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 || e.Body == "" {
		return fmt.Sprintf("backend %s fehlgeschlagen: %v", e.Op, e.Err)
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("backend-fehler bei %s (%d): %s", e.Op, e.StatusCode, body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode liefert den HTTP-Status eines TransportError, sonst 0
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// IsNotFound meldet, ob das Backend mit 404 geantwortet hat
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// Client spricht mit dem Backend über JSON/HTTP. Er hat außer der Basisadresse keinen Zustand.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient erstellt einen neuen Backend-Client. timeout 0 bedeutet keine Begrenzung.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL gibt die Basisadresse zurück
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health fragt /health des Backends ab
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := c.doJSON(ctx, "health", http.MethodGet, "/health", nil, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// IsAvailable prüft, ob das Backend erreichbar ist
func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.Health(ctx)
	return err == nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in interface{}, accept string) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("json-marshal: %w", err)}
		}
		body = bytes.NewReader(jsonData)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("   [Backend] ❌ %s %s nach %v: %v (request %s)", method, path, time.Since(start), err, requestID)
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		log.Printf("   [Backend] ❌ %s %s -> %d (request %s)", method, path, resp.StatusCode, requestID)
		return nil, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Err:        fmt.Errorf("http %d", resp.StatusCode),
		}
	}

	log.Printf("   [Backend] %s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, in, out interface{}) error {
	resp, err := c.do(ctx, op, method, path, query, in, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("json-decode: %w", err)}
	}
	return nil
}

func (c *Client) doBinary(ctx context.Context, op, path string) ([]byte, error) {
	resp, err := c.do(ctx, op, http.MethodGet, path, nil, nil, "application/pdf")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("lesen der antwort: %w", err)}
	}
	return data, nil
}

func escape(id models.ID) string {
	return url.PathEscape(string(id))
}
