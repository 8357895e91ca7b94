// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for caller-supplied
// identifiers.
//
// Index UIDs arrive from CLI arguments, query files, and catalog file names,
// and end up in log lines, metric labels, and error messages. Validating them
// at the boundary keeps control characters and separator syntax out of those
// sinks and gives every component the same notion of a well-formed UID.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxIndexUIDLength is the longest accepted index UID, in bytes.
const MaxIndexUIDLength = 400

// indexUIDPattern matches valid index UIDs.
// Allows: letters, digits, hyphens, underscores. No dots, spaces, or path
// separators; a UID must be safe to use verbatim as a map key, a metric
// label value, and a file-name fragment.
var indexUIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateIndexUID validates an index UID.
//
// Valid UIDs:
//   - 1 to MaxIndexUIDLength bytes
//   - Letters a-z and A-Z
//   - Digits 0-9
//   - Hyphens (-) and underscores (_)
//
// Returns an error if the UID is invalid.
//
// Example:
//
//	if err := validation.ValidateIndexUID(uid); err != nil {
//	    return fmt.Errorf("index %q: %w", uid, err)
//	}
func ValidateIndexUID(uid string) error {
	if uid == "" {
		return fmt.Errorf("index uid cannot be empty")
	}

	if len(uid) > MaxIndexUIDLength {
		return fmt.Errorf("index uid too long: %d bytes (max %d)", len(uid), MaxIndexUIDLength)
	}

	if !indexUIDPattern.MatchString(uid) {
		return fmt.Errorf("invalid index uid format: %q (must contain only letters, digits, hyphens, and underscores)", uid)
	}

	return nil
}

// ValidateIndexUIDs validates multiple index UIDs.
// Returns an error listing all invalid UIDs if any fail validation.
func ValidateIndexUIDs(uids []string) error {
	var invalid []string
	for _, uid := range uids {
		if err := ValidateIndexUID(uid); err != nil {
			invalid = append(invalid, uid)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid index uids: %v", invalid)
	}
	return nil
}

// SanitizeIndexUID normalizes and validates an index UID. Surrounding
// whitespace is trimmed and every disallowed rune is replaced with an
// underscore; the result is then validated.
//
// Use this when deriving a UID from free-form input such as a file name:
//
//	uid, err := validation.SanitizeIndexUID(base)
//	if err != nil {
//	    return err
//	}
//	// uid is well-formed and validated
func SanitizeIndexUID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	normalized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, trimmed)
	if err := ValidateIndexUID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
