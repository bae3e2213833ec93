package assignment

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"aufgabenclient/internal/models"
)

// DefaultPollInterval ist der Abstand zwischen zwei Statusabfragen
const DefaultPollInterval = 5 * time.Second

// Fetcher liefert Schnappschüsse eines Auftrags
type Fetcher interface {
	GetAssignment(ctx context.Context, id models.ID) (*models.Assignment, error)
}

// State ist der Zustand des Pollers
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// IsTerminal meldet, ob der Poller nie wieder abfragen wird
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// stateFor ordnet den Backend-Status einem Zustand zu. Unbekannte Werte gelten als nicht terminal.
func stateFor(status models.Status) State {
	switch status {
	case models.StatusCompleted:
		return StateCompleted
	case models.StatusFailed:
		return StateFailed
	}
	return StatePolling
}

// Update wird nach jeder Abfrage an den Verbraucher gemeldet
type Update struct {
	AssignmentID models.ID          `json:"assignment_id"`
	State        State              `json:"state"`
	Status       models.Status      `json:"status,omitempty"`
	Assignment   *models.Assignment `json:"assignment,omitempty"`
	Attempt      int                `json:"attempt"`
	Error        string             `json:"error,omitempty"`
	Err          error              `json:"-"`
}

// PollerConfig steuert die Abfrageschleife
type PollerConfig struct {
	Interval time.Duration
	// 0 = unbegrenzt
	MaxDuration time.Duration
	// Anzahl aufeinanderfolgender Fehlschläge bis zum Abbruch, 0 = unbegrenzt
	MaxConsecutiveFailures int
}

// DefaultPollerConfig liefert 5s Intervall, 30 Minuten Obergrenze und 12 Fehlversuche
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:               DefaultPollInterval,
		MaxDuration:            30 * time.Minute,
		MaxConsecutiveFailures: 12,
	}
}

// Poller fragt den Status eines Auftrags ab, bis completed oder failed erreicht ist.
// Es ist immer höchstens eine Anfrage unterwegs, die nächste wird erst nach der Antwort geplant.
type Poller struct {
	id      models.ID
	api     Fetcher
	cfg     PollerConfig
	journal Journal

	// OnUpdate wird auf der Goroutine von Run in Anfragereihenfolge aufgerufen
	OnUpdate func(Update)

	mu       sync.Mutex
	state    State
	snapshot *models.Assignment
	running  bool
	attempts int
}

// NewPoller erstellt einen Poller im Zustand idle. journal darf nil sein.
func NewPoller(id models.ID, api Fetcher, cfg PollerConfig, journal Journal) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	return &Poller{
		id:      id,
		api:     api,
		cfg:     cfg,
		journal: journal,
		state:   StateIdle,
	}
}

// ID gibt die beobachtete Auftrags-ID zurück
func (p *Poller) ID() models.ID {
	return p.id
}

// State gibt den aktuellen Zustand zurück
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot gibt den zuletzt empfangenen Schnappschuss zurück, nil vor der ersten Antwort
func (p *Poller) Snapshot() *models.Assignment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Attempts gibt die Zahl der bisher gestellten Anfragen zurück
func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Run fragt sofort ab und danach im konfigurierten Intervall, bis ein terminaler Status kommt.
// Nach completed/failed kehrt Run ohne Netzwerkaufruf sofort zurück.
// Abbruch von ctx beendet die Schleife, danach ist der Poller wieder idle.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.state.IsTerminal() {
		p.mu.Unlock()
		return nil
	}
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.state = StatePolling
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		if !p.state.IsTerminal() {
			p.state = StateIdle
		}
		p.mu.Unlock()
	}()

	if p.cfg.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, p.cfg.MaxDuration, ErrPollTimeout)
		defer cancel()
	}

	log.Printf("   [Poller] Beobachte Auftrag %s (Intervall %v)", p.id, p.cfg.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	lastStatus := models.Status("")

	for {
		select {
		case <-ctx.Done():
			log.Printf("   [Poller] ⏹️  Auftrag %s: Abfrage beendet (%v)", p.id, context.Cause(ctx))
			return context.Cause(ctx)
		case <-timer.C:
		}

		p.mu.Lock()
		p.attempts++
		attempt := p.attempts
		p.mu.Unlock()

		snapshot, err := p.api.GetAssignment(ctx, p.id)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("   [Poller] ⏹️  Auftrag %s: Abfrage beendet (%v)", p.id, context.Cause(ctx))
				return context.Cause(ctx)
			}

			failures++
			log.Printf("   [Poller] ⚠️  Auftrag %s: Abfrage %d fehlgeschlagen (%d in Folge): %v", p.id, attempt, failures, err)
			p.emit(Update{
				AssignmentID: p.id,
				State:        StatePolling,
				Attempt:      attempt,
				Err:          err,
				Error:        err.Error(),
			})

			if p.cfg.MaxConsecutiveFailures > 0 && failures >= p.cfg.MaxConsecutiveFailures {
				log.Printf("   [Poller] ❌ Auftrag %s: Abbruch nach %d Fehlschlägen", p.id, failures)
				return fmt.Errorf("%w (%d): %v", ErrTooManyFailures, failures, err)
			}
			timer.Reset(p.cfg.Interval)
			continue
		}
		failures = 0

		state := stateFor(snapshot.Status)
		if !snapshot.Status.IsKnown() {
			log.Printf("   [Poller] Auftrag %s: unbekannter Status %q, frage weiter ab", p.id, snapshot.Status)
		}
		if state == StateCompleted && len(snapshot.Items) == 0 {
			log.Printf("   [Poller] ⚠️  Auftrag %s ist fertig, enthält aber keine Aufgaben", p.id)
		}

		// Schnappschuss wird immer komplett ersetzt
		p.mu.Lock()
		p.snapshot = snapshot
		p.state = state
		p.mu.Unlock()

		if snapshot.Status != lastStatus {
			lastStatus = snapshot.Status
			log.Printf("   [Poller] Auftrag %s: Status %s", p.id, snapshot.Status)
			if p.journal != nil {
				if err := p.journal.UpdateAssignmentStatus(p.id, snapshot.Status); err != nil {
					log.Printf("   [Poller] ⚠️  Journal-Update fehlgeschlagen: %v", err)
				}
			}
		}

		p.emit(Update{
			AssignmentID: p.id,
			State:        state,
			Status:       snapshot.Status,
			Assignment:   snapshot,
			Attempt:      attempt,
		})

		if state.IsTerminal() {
			log.Printf("   [Poller] ✓ Auftrag %s abgeschlossen: %s nach %d Abfragen", p.id, state, attempt)
			return nil
		}
		timer.Reset(p.cfg.Interval)
	}
}

func (p *Poller) emit(u Update) {
	if p.OnUpdate != nil {
		p.OnUpdate(u)
	}
}
