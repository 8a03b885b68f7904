package importer

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	seatsSuffix   = regexp.MustCompile(`\(\s*\d+\s*seats?\)`)
	codeSuffix    = regexp.MustCompile(`\s*-\s*[\d.]+\s*$`)
)

// normalizeProgram collapses internal whitespace runs and trims.
func normalizeProgram(name string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(name, " "))
}

// cleanProgramHeader strips the annotations program header rows carry: a
// trailing "(<n> seats)" note and a trailing "- <code>" suffix.
func cleanProgramHeader(raw string) string {
	cleaned := seatsSuffix.ReplaceAllString(raw, "")
	cleaned = codeSuffix.ReplaceAllString(cleaned, "")
	return normalizeProgram(cleaned)
}
