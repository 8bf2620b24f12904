package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValidateManifest checks a raw manifest against the size ceiling and for
// JSON well-formedness. The manifest must be a JSON object; its semantic
// correctness (package names, version ranges) is the install tool's problem.
func ValidateManifest(raw []byte, maxBytes int64) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &InputError{Kind: InputMissing, Reason: "manifest is required"}
	}
	if int64(len(raw)) > maxBytes {
		return &InputError{
			Kind:   InputTooLarge,
			Reason: fmt.Sprintf("manifest exceeds the %d byte limit", maxBytes),
		}
	}
	if !json.Valid(raw) {
		return &InputError{Kind: InputMalformed, Reason: "manifest is not valid JSON"}
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] != '{' {
		return &InputError{Kind: InputMalformed, Reason: "manifest must be a JSON object"}
	}
	return nil
}
