package storage

import (
	"fmt"
	"strings"
)

// DefaultMaxFileSize caps generated documents at 20 MB.
const DefaultMaxFileSize int64 = 20 << 20

// AllowedContentTypes lists the MIME types the service stores.
var AllowedContentTypes = map[string]bool{
	"application/pdf": true,
	"text/html":       true,
}

// ValidateContentType checks if the content type is allowed. Parameters such
// as charset are ignored.
func ValidateContentType(contentType string) error {
	normalized := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	if !AllowedContentTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

func validateFileSize(sizeBytes, limit int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if sizeBytes > limit {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, limit)
	}
	return nil
}
