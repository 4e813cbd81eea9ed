// Package textextract pulls plain text out of document attachments via an
// Apache Tika server. Images go to the model directly; PDFs and office files
// need their text lifted first.
package textextract

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// SupportedMimeTypes lists the document formats worth sending to Tika.
var SupportedMimeTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/rtf",
	"text/plain",
	"text/rtf",
}

// Config holds the extraction settings.
type Config struct {
	// ServerURL is the Tika server base URL, e.g. http://localhost:9998.
	ServerURL string
	// Timeout bounds one extraction call.
	Timeout time.Duration
	// MaxChars truncates the extracted text; 0 means no limit.
	MaxChars int
}

// Extractor is a client for one Tika server.
type Extractor struct {
	config Config
	client *http.Client
}

// NewExtractor creates an extractor. The server is not contacted until the
// first Extract call.
func NewExtractor(config Config) *Extractor {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Extractor{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// IsSupported reports whether the MIME type is worth extracting.
func IsSupported(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	for _, supported := range SupportedMimeTypes {
		if mimeType == supported {
			return true
		}
	}
	return false
}

// Extract sends the document body to Tika and returns the plain text.
func (e *Extractor) Extract(ctx context.Context, mimeType string, data []byte) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, e.config.ServerURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "failed to build tika request")
	}
	request.Header.Set("Content-Type", mimeType)
	request.Header.Set("Accept", "text/plain")

	response, err := e.client.Do(request)
	if err != nil {
		return "", errors.Wrap(err, "tika request failed")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", errors.Errorf("tika returned status %d", response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read tika response")
	}

	text := strings.TrimSpace(string(body))
	if e.config.MaxChars > 0 && len(text) > e.config.MaxChars {
		text = text[:e.config.MaxChars]
	}
	return text, nil
}
