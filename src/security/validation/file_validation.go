// Package validation checks and cleans content fetched from disclosure
// sites before it is parsed.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat is returned for documents the scraper cannot parse.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// allowedDocumentTypes are the declared or detected media types parsed as HTML.
var allowedDocumentTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
}

// isBinaryContent checks if a buffer contains binary control characters (like null bytes)
// which indicate the document is not text.
func isBinaryContent(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return true
	}
	return !utf8.Valid(buf)
}

// CheckDocumentContent accepts HTML documents only. The declared media type
// is trusted when it names HTML; otherwise the first KB is sniffed.
func CheckDocumentContent(declared string, body []byte) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("%w: empty document", ErrUnsupportedFormat)
	}
	head := body[:min(len(body), 1024)]
	if bytes.HasPrefix(head, []byte("%PDF-")) {
		return "application/pdf", fmt.Errorf("%w: application/pdf", ErrUnsupportedFormat)
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if allowedDocumentTypes[declared] {
		return declared, nil
	}
	if isBinaryContent(head) {
		return "application/octet-stream", fmt.Errorf("%w: binary content", ErrUnsupportedFormat)
	}

	detected := strings.ToLower(strings.Split(http.DetectContentType(head), ";")[0])
	if !allowedDocumentTypes[detected] {
		if declared == "" {
			declared = detected
		}
		return declared, fmt.Errorf("%w: %s", ErrUnsupportedFormat, declared)
	}
	return detected, nil
}
