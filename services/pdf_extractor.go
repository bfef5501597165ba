package services

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor pulls plain text out of PDF attachments so their content can
// feed a chat completion
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// minExtractedChars is the threshold below which a PDF is considered
// scanned or image-based
const minExtractedChars = 50

// sanitizePDF truncates trailing garbage after the last %%EOF marker.
// Files fetched from the web often carry HTML or tracking bytes appended
// past the real end of the document.
func sanitizePDF(content []byte) []byte {
	if len(content) == 0 || !bytes.HasPrefix(content, []byte("%PDF-")) {
		return content
	}

	eofMarker := []byte("%%EOF")
	lastEOF := bytes.LastIndex(content, eofMarker)
	if lastEOF == -1 {
		return content
	}

	pdfEnd := lastEOF + len(eofMarker)
	for pdfEnd < len(content) && (content[pdfEnd] == '\n' || content[pdfEnd] == '\r') {
		pdfEnd++
	}

	if extra := len(content) - pdfEnd; extra > 10 {
		log.Printf("[PDF] removing %d bytes of trailing garbage after %%EOF", extra)
		return content[:pdfEnd]
	}
	return content
}

// ExtractText extracts text from PDF bytes, preserving row structure where
// the parser allows it
func (p *PDFExtractor) ExtractText(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty PDF content")
	}

	content = sanitizePDF(content)
	reader := bytes.NewReader(content)

	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	var textBuilder strings.Builder

	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			// Row extraction fails on some encodings; fall back to plain text
			text, plainErr := page.GetPlainText(nil)
			if plainErr != nil {
				log.Printf("[PDF] page %d extraction failed: %v", i, plainErr)
				continue
			}
			textBuilder.WriteString(text)
			textBuilder.WriteString("\n")
			continue
		}

		for _, row := range rows {
			var rowText strings.Builder
			for _, word := range row.Content {
				rowText.WriteString(word.S)
			}
			if line := strings.TrimSpace(rowText.String()); line != "" {
				textBuilder.WriteString(line)
				textBuilder.WriteString("\n")
			}
		}
		textBuilder.WriteString("\n")
	}

	extracted := strings.TrimSpace(textBuilder.String())
	if len(extracted) < minExtractedChars {
		return "", fmt.Errorf("insufficient text extracted from PDF (%d characters), document may be scanned", len(extracted))
	}

	log.Printf("[PDF] extracted %d characters from %d pages", len(extracted), numPages)
	return extracted, nil
}
