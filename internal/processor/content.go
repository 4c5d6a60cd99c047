package processor

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectContentType sniffs a MIME type from the body, without parameters.
func DetectContentType(content []byte) string {
	mime := mimetype.Detect(content).String()
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}
