package ingest

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxBioBytes caps the size of an uploaded PDF bio.
const MaxBioBytes = 10 << 20

// maxNotesRunes caps how much extracted text ends up in contact notes.
const maxNotesRunes = 4000

// ExtractPDFText returns the plain text of a PDF with whitespace collapsed,
// truncated to a size suitable for contact notes.
func ExtractPDFText(data []byte) (text string, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	if len(data) == 0 {
		return "", fmt.Errorf("empty PDF")
	}
	if len(data) > MaxBioBytes {
		return "", fmt.Errorf("PDF is %d bytes, limit is %d", len(data), MaxBioBytes)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting PDF text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}

	text = strings.Join(strings.Fields(string(raw)), " ")
	if text == "" {
		return "", fmt.Errorf("PDF contains no extractable text")
	}
	if runes := []rune(text); len(runes) > maxNotesRunes {
		text = string(runes[:maxNotesRunes])
	}
	return text, nil
}
