/**
 * @description
 * Package docstore persists uploaded KYC documents. The portal only keeps the
 * returned location; reading the file back is the reviewer's concern.
 *
 * @dependencies
 * - github.com/cloudinary/cloudinary-go/v2: Hosted storage for production.
 * - os, path/filepath: The local-disk store used in development and tests.
 */

package docstore

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrEmptyDocument   = errors.New("document is empty")
	ErrInvalidName     = errors.New("invalid document name")
)

// Store saves a document under name and returns where it can be fetched from.
// Delete removes what Save wrote for the same name and mime type; deleting a
// missing document is not an error.
type Store interface {
	Save(ctx context.Context, name, mimeType string, content []byte) (string, error)
	Delete(ctx context.Context, name, mimeType string) error
}

var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// DetectMimeType sniffs content and accepts only scans and PDFs. The declared
// header type is ignored when the bytes disagree with it.
func DetectMimeType(content []byte) (string, error) {
	if len(content) == 0 {
		return "", ErrEmptyDocument
	}
	sniffed := http.DetectContentType(content)
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	if _, ok := allowedTypes[sniffed]; !ok {
		return "", ErrUnsupportedType
	}
	return sniffed, nil
}

// Extension returns the file extension used for an accepted mime type.
func Extension(mimeType string) string {
	return allowedTypes[mimeType]
}
