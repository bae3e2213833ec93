package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"aufgabenclient/internal/assignment"
	"aufgabenclient/internal/backend"
	"aufgabenclient/internal/config"
	"aufgabenclient/internal/models"
	"aufgabenclient/internal/storage"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath string
	student    string
	topics     string
	count      string
	part2      bool
	maxTime    string
	twoPDFs    bool
	download   string
	out        string
}

func main() {
	log.SetFlags(log.Ltime | log.Lmsgprefix)
	log.SetPrefix("")

	var opts options
	flag.StringVar(&opts.configPath, "config", "config.json", "Pfad zur Konfigurationsdatei")
	flag.StringVar(&opts.student, "student", "", "ID des Schülers")
	flag.StringVar(&opts.topics, "topics", "", "Themen, z.B. \"Алгебра — 3, Геометрия — 2\"")
	flag.StringVar(&opts.count, "count", "", "Anzahl der Aufgaben (leer = automatisch)")
	flag.BoolVar(&opts.part2, "part2", true, "Aufgaben aus Teil 2 einbeziehen")
	flag.StringVar(&opts.maxTime, "maxtime", "", "Maximale Bearbeitungszeit in Minuten (leer = automatisch)")
	flag.BoolVar(&opts.twoPDFs, "two-pdfs", true, "Getrennte PDFs für Schüler und Lehrer erzeugen")
	flag.StringVar(&opts.download, "download", "student,teacher", "Herunterzuladende Rollen, kommagetrennt (leer = keine)")
	flag.StringVar(&opts.out, "out", "", "Zielordner für PDFs (Standard: Download-Ordner aus der Konfiguration)")
	flag.Parse()

	// Strg+C beendet nur das Warten, Einreichen und Downloads laufen zu Ende
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Printf("❌ %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		cfg = config.Default()
	}
	cfg.LoadEnv()
	if opts.out != "" {
		cfg.DownloadsPath = opts.out
	}

	roles, err := parseRoles(opts.download)
	if err != nil {
		return err
	}

	req, err := assignment.BuildRequest(models.ID(opts.student), opts.topics, assignment.OptionsForm{
		CountTotal:   assignment.FieldText(opts.count),
		IncludePart2: opts.part2,
		MaxTimeMin:   assignment.FieldText(opts.maxTime),
		MakeTwoPDFs:  opts.twoPDFs,
	})
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("journal öffnen: %w", err)
	}
	defer store.Close()

	client := backend.NewClient(cfg.APIURL, cfg.RequestTimeout())

	log.Printf("📝 Reiche Auftrag bei %s ein...", client.BaseURL())
	id, err := assignment.NewSubmitter(client, store).Submit(ctx, req)
	if err != nil {
		return err
	}
	log.Printf("   ✓ Auftrag %s angelegt", id)

	poller := assignment.NewPoller(id, client, assignment.PollerConfig{
		Interval:               cfg.PollInterval(),
		MaxDuration:            cfg.PollMaxDuration(),
		MaxConsecutiveFailures: cfg.PollMaxFailures,
	}, store)

	lastStatus := models.Status("")
	poller.OnUpdate = func(u assignment.Update) {
		if u.Err != nil {
			log.Printf("   ⚠️  Abfrage %d fehlgeschlagen: %v", u.Attempt, u.Err)
			return
		}
		if u.Status != lastStatus {
			lastStatus = u.Status
			log.Printf("   ⏳ Status: %s", u.Status)
		}
	}

	log.Println("🔄 Warte auf Generierung (Strg+C bricht ab)...")
	if err := poller.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("abgebrochen, auftrag %s läuft im backend weiter", id)
		}
		return err
	}

	if poller.State() == assignment.StateFailed {
		return fmt.Errorf("generierung von auftrag %s fehlgeschlagen, bitte einen neuen auftrag starten", id)
	}

	printSummary(poller.Snapshot(), poller.Attempts())

	if len(roles) == 0 {
		return nil
	}
	retriever := assignment.NewRetriever(client, assignment.FileSaver{Dir: cfg.DownloadsPath}, store)
	return downloadAll(ctx, retriever, id, roles, opts.twoPDFs)
}

// downloadAll lädt alle Rollen parallel. Ein Fehler bei einer Rolle bricht die anderen nicht ab.
// Ohne getrennte PDFs gibt es kein Lehrer-PDF, ein 404 dafür ist dann kein Fehler.
func downloadAll(ctx context.Context, r *assignment.Retriever, id models.ID, roles []models.Role, twoPDFs bool) error {
	log.Printf("📥 Lade %d PDF(s)...", len(roles))

	var g errgroup.Group
	for _, role := range roles {
		role := role
		g.Go(func() error {
			rec, err := r.Download(ctx, id, role)
			if err != nil {
				if !twoPDFs && role == models.RoleTeacher && backend.IsNotFound(err) {
					log.Printf("   ⚠️  Kein Lehrer-PDF vorhanden (make_two_pdfs ist aus)")
					return nil
				}
				return err
			}
			log.Printf("   ✓ %s: %s", role, rec.Path)
			return nil
		})
	}
	return g.Wait()
}

func parseRoles(list string) ([]models.Role, error) {
	var roles []models.Role
	seen := make(map[models.Role]bool)
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		role, err := models.ParseRole(part)
		if err != nil {
			return nil, err
		}
		if !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func printSummary(a *models.Assignment, attempts int) {
	if a == nil {
		return
	}
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("✅ Auftrag %s fertig: %d Aufgaben (%d Abfragen)", a.ID, len(a.Items), attempts)
	for _, item := range a.Items {
		line := fmt.Sprintf("   %2d.", item.OrderIndex)
		if item.Task != nil {
			line += fmt.Sprintf(" [%s, Stufe %d]", item.Task.Topic, item.Task.Difficulty)
		}
		if score, ok := item.Relevance(); ok {
			line += fmt.Sprintf(" Relevanz %.2f", score)
		}
		if item.SelectionReason != "" {
			line += " - " + item.SelectionReason
		}
		log.Println(line)
	}
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}
