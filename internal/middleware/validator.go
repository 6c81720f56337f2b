package middleware

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Input validation for captured uploads

// MaxImageBytes caps one screenshot payload (decoded) at 8MB.
const MaxImageBytes = 8 * 1024 * 1024

// ValidateSourceKind checks the capture kind against the allowed list
func ValidateSourceKind(kind string) error {
	allowed := map[string]bool{
		"job_posting": true,
		"review":      true,
		"financial":   true,
	}
	if !allowed[strings.ToLower(kind)] {
		return fmt.Errorf("invalid source kind: %s (allowed: job_posting, review, financial)", kind)
	}
	return nil
}

// ValidateImagePayload decodes a base64 screenshot payload and enforces the
// size cap. Returns the decoded bytes on success.
func ValidateImagePayload(b64 string) ([]byte, error) {
	if strings.TrimSpace(b64) == "" {
		return nil, fmt.Errorf("image payload cannot be empty")
	}
	// tolerate data-URI prefixes from the capture layer
	if i := strings.Index(b64, ","); i >= 0 && strings.HasPrefix(b64, "data:") {
		b64 = b64[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image payload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image payload cannot be empty")
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image payload %d bytes exceeds maximum %d", len(data), MaxImageBytes)
	}
	return data, nil
}

// ValidateCompanyName enforces a sane name for new company records
func ValidateCompanyName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("company name cannot be empty")
	}
	if len(name) > 200 {
		return fmt.Errorf("company name too long (max 200 characters)")
	}
	return nil
}
