// Package extract turns corpus files in document and spreadsheet formats into
// "question %% answer" lines.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PairSeparator separates question and answer on a corpus line.
const PairSeparator = "%%"

// Extractor extracts corpus lines from files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its corpus text, one pair per line.
// Plain text is returned as-is (UTF-8 validated). Spreadsheets (.xlsx, .ods) use the
// first two columns of every row as question and answer. Documents (.docx, .odt, .rtf,
// .pdf) yield one line per paragraph or text line.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts corpus text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".odt", ".rtf":
		return extractCat(content)
	case ".xlsx":
		return extractExcel(content)
	case ".ods":
		return extractODS(content)
	default:
		return extractPlain(content)
	}
}

// Supported reports whether ext has a dedicated extractor; anything else is read as plain text.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".odt", ".rtf", ".xlsx", ".ods":
		return true
	}
	return false
}

// rowLine joins the first two non-empty cells of a spreadsheet row into a pair line.
// A single cell is returned as-is so pre-joined "q %% a" cells still work.
func rowLine(cells []string) string {
	var kept []string
	for _, c := range cells {
		if c = strings.TrimSpace(c); c != "" {
			kept = append(kept, c)
		}
		if len(kept) == 2 {
			break
		}
	}
	switch len(kept) {
	case 0:
		return ""
	case 1:
		return kept[0]
	}
	return kept[0] + " " + PairSeparator + " " + kept[1]
}

func joinLines(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l)
	}
	return b.String()
}
