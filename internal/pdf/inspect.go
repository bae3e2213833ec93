package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// previewLength begrenzt die Vorschau wie die Aufgabenliste der Oberfläche
const previewLength = 200

// Info beschreibt ein heruntergeladenes PDF
type Info struct {
	PageCount int
	Preview   string
}

// Inspect liest Seitenzahl und den Anfang des Textes der ersten Seite
func Inspect(data []byte) (info *Info, err error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("kein PDF: Header fehlt")
	}

	// ledongthuc/pdf kann bei kaputten Dateien panicken
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = fmt.Errorf("fehler beim Lesen der PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("fehler beim Lesen der PDF: %w", err)
	}

	info = &Info{PageCount: r.NumPage()}

	for pageNum := 1; pageNum <= info.PageCount; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			continue
		}
		info.Preview = truncate(text, previewLength)
		break
	}

	return info, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
