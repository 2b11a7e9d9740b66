package key

import "strings"

// Validate checks whether a key may be used for admission.
// This is a PURE function - no side effects, deterministic.
func Validate(k Key) ValidationResult {
	if !k.Active {
		return ValidationResult{
			Valid:  false,
			Reason: ReasonInactive,
		}
	}

	return ValidationResult{
		Valid: true,
		Key:   k,
	}
}

// ValidateFormat checks if a raw API key has valid format.
// Returns (prefix, valid). Prefix is used for database lookup.
// This is a PURE function.
func ValidateFormat(rawKey string, expectedPrefix string) (prefix string, valid bool) {
	if !strings.HasPrefix(rawKey, expectedPrefix) {
		return "", false
	}

	// Must be at least prefix + 64 hex chars
	minLen := len(expectedPrefix) + 64
	if len(rawKey) < minLen {
		return "", false
	}

	if len(rawKey) >= PrefixLen {
		prefix = rawKey[:PrefixLen]
	} else {
		prefix = rawKey
	}

	return prefix, true
}
