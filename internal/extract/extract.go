// Package extract turns raw fetched payloads (HTML or PDF) into plain text
// suitable for embedding.
package extract

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrUnsupportedDocument marks payloads that cannot be parsed into text,
// e.g. encrypted or structurally broken PDFs. Callers skip the candidate
// rather than aborting the run.
var ErrUnsupportedDocument = eris.New("extract: unsupported document")

// FromBytes extracts plain text from a raw payload. The hint is either the
// declared Content-Type or the source URL; anything that does not look like
// a PDF is treated as HTML/text and never fails.
func FromBytes(data []byte, hint string) (string, error) {
	if isPDF(hint) {
		return fromPDF(data)
	}
	return CleanHTML(string(data)), nil
}

func isPDF(hint string) bool {
	h := strings.ToLower(strings.TrimSpace(hint))
	if strings.HasPrefix(h, "http://") || strings.HasPrefix(h, "https://") {
		// URL hint: only the path suffix counts. Strip query/fragment first.
		if i := strings.IndexAny(h, "?#"); i >= 0 {
			h = h[:i]
		}
		return strings.HasSuffix(h, ".pdf")
	}
	return strings.Contains(h, "pdf")
}
