// Package importer converts tabular candidate files into normalized records.
//
// Two input shapes are supported: the commission's structured sheets, where
// section-header rows carry the current level and program for the data rows
// beneath them, and flat exports with one header row and explicit columns.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"bursa/internal/session/models"
	strutil "bursa/pkg/platform/strings"
)

// Form identifies which input shape was detected.
type Form string

const (
	FormStructured Form = "structured"
	FormFlat       Form = "flat"
)

// structuredMarkers are scanned in the first column of the leading rows to
// recognize the commission's own sheet layout.
var structuredMarkers = []string{"LEVEL", "SCHOLARSHIP", "COMMISSION"}

// detectionWindow is how many leading rows the marker scan inspects.
const detectionWindow = 10

// Options configures an import run. Both fields exist so tests and future
// sessions can substitute policy without touching package state.
type Options struct {
	// CanonicalPrograms supplies reference spellings (normally the capacity
	// plan's program names); parsed program names matching one
	// case-insensitively are replaced by the canonical spelling.
	CanonicalPrograms []string

	// Policy decides what happens to classified duplicate pairs. Nil means
	// DefaultPolicy (keep everything).
	Policy Policy
}

// Result is the outcome of one parse: normalized candidates plus the report
// a reviewer needs to audit the load.
type Result struct {
	BatchID    string
	Form       Form
	Candidates []models.Candidate
	Report     Report
}

// Report summarizes what the adapter did with ambiguous input.
type Report struct {
	Rows        int                `json:"rows"`
	Imported    int                `json:"imported"`
	Skipped     int                `json:"skipped"`
	Dropped     int                `json:"dropped"`
	Duplicates  []DuplicateFinding `json:"duplicates,omitempty"`
	NeedsReview []string           `json:"needs_review,omitempty"`
}

type Importer struct {
	canonical map[string]string
	policy    Policy
}

func New(opts Options) *Importer {
	names := strutil.DedupeAndTrimFold(opts.CanonicalPrograms)
	canonical := make(map[string]string, len(names))
	for _, name := range names {
		canonical[strings.ToLower(normalizeProgram(name))] = name
	}
	policy := opts.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Importer{canonical: canonical, policy: policy}
}

// Parse reads the whole file, detects its shape and returns normalized
// candidates. Malformed cells default rather than abort; only an unreadable
// file is fatal.
func (imp *Importer) Parse(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}

	result := &Result{BatchID: uuid.NewString()}
	result.Report.Rows = len(rows)

	if isStructured(rows) {
		result.Form = FormStructured
		imp.parseStructured(rows, result)
	} else {
		result.Form = FormFlat
		imp.parseFlat(rows, result)
	}

	imp.applyDuplicatePolicy(result)
	result.Report.Imported = len(result.Candidates)
	return result, nil
}

// isStructured scans the leading rows' first column for institutional marker
// text.
func isStructured(rows [][]string) bool {
	for i, row := range rows {
		if i >= detectionWindow {
			break
		}
		if len(row) == 0 {
			continue
		}
		first := strings.ToUpper(row[0])
		for _, marker := range structuredMarkers {
			if strings.Contains(first, marker) {
				return true
			}
		}
	}
	return false
}

// Structured sheet column layout for data rows.
const (
	colNumber = iota
	colSex
	colExternalID
	colName
	colBirthInfo
	colPriorDiploma
	colScore
	colNote
	colDecision
)

// parseStructured walks the sheet keeping the current level and program as
// parsing state; they apply to every data row until the next header row.
// The first row is the sheet title and is skipped.
func (imp *Importer) parseStructured(rows [][]string, result *Result) {
	var currentLevel models.Level
	var currentProgram string

	for i, row := range rows {
		if i == 0 {
			continue
		}
		first := cell(row, 0)
		if first == "" {
			continue
		}

		if strings.Contains(strings.ToUpper(first), "LEVEL") && strings.Contains(first, ":") {
			raw := first[strings.Index(first, ":")+1:]
			currentLevel = models.ParseLevel(raw)
			continue
		}

		if strings.HasPrefix(strings.ToLower(first), "program") {
			raw := first
			if idx := strings.Index(first, ":"); idx >= 0 {
				raw = first[idx+1:]
			}
			currentProgram = imp.canonicalProgram(cleanProgramHeader(raw))
			continue
		}

		number, err := strconv.Atoi(first)
		if err != nil {
			// A non-numeric leading cell with an otherwise empty row is an
			// unlabeled program-name row.
			if restEmpty(row, 1, colDecision) && len(first) > 3 {
				currentProgram = first
			} else {
				result.Report.Skipped++
			}
			continue
		}

		result.Candidates = append(result.Candidates, models.Candidate{
			RequestID:         models.RequestIDFromNumber(number),
			ApplicationNumber: number,
			ExternalID:        cell(row, colExternalID),
			Sex:               cell(row, colSex),
			Name:              cell(row, colName),
			BirthInfo:         cell(row, colBirthInfo),
			PriorDiploma:      cell(row, colPriorDiploma),
			Score:             cell(row, colScore),
			Note:              cell(row, colNote),
			Program:           currentProgram,
			Level:             currentLevel,
			Decision:          models.ParseDecision(cell(row, colDecision)),
		})
	}
}

// parseFlat maps named columns directly; the first row is the header. A
// blank or absent decision column defaults to Pending, and rows without a
// usable identity are counted as skipped.
func (imp *Importer) parseFlat(rows [][]string, result *Result) {
	header := make(map[string]int)
	for idx, name := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = idx
	}

	field := func(row []string, names ...string) string {
		for _, name := range names {
			if idx, ok := header[name]; ok {
				return cell(row, idx)
			}
		}
		return ""
	}

	for _, row := range rows[1:] {
		requestID := field(row, "request_id", "id")
		number, _ := strconv.Atoi(strings.TrimSpace(field(row, "application_number", "number")))
		if requestID == "" {
			if number == 0 {
				result.Report.Skipped++
				continue
			}
			requestID = models.RequestIDFromNumber(number)
		}
		if number == 0 {
			// Tolerate identity-only files: a numeric request id doubles as
			// the application number for ordering.
			number, _ = strconv.Atoi(strings.TrimLeft(requestID, "0"))
		}

		result.Candidates = append(result.Candidates, models.Candidate{
			RequestID:         requestID,
			ApplicationNumber: number,
			ExternalID:        field(row, "external_id"),
			Sex:               field(row, "sex"),
			Name:              field(row, "name"),
			BirthInfo:         field(row, "birth_info"),
			PriorDiploma:      field(row, "prior_diploma"),
			Score:             field(row, "score"),
			Note:              field(row, "note"),
			Program:           imp.canonicalProgram(normalizeProgram(field(row, "program"))),
			Level:             models.ParseLevel(field(row, "level")),
			Decision:          models.ParseDecision(field(row, "decision")),
		})
	}
}

func (imp *Importer) canonicalProgram(name string) string {
	if canonical, ok := imp.canonical[strings.ToLower(name)]; ok {
		return canonical
	}
	return name
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func restEmpty(row []string, from, to int) bool {
	for i := from; i <= to; i++ {
		if cell(row, i) != "" {
			return false
		}
	}
	return true
}
