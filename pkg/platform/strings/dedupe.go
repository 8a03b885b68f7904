// Package strings provides string slice utilities.
package strings

import "strings"

// DedupeAndTrim removes duplicates and empty strings from a slice, trimming
// whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}

// DedupeAndTrimFold is DedupeAndTrim with case-insensitive comparison; the
// first spelling of each value wins.
func DedupeAndTrimFold(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}
