// Package models holds the shared vocabulary of a commission session:
// candidates, decisions, study levels, quota buckets and aggregate stats.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Decision is the commission's disposition for a candidate.
type Decision string

const (
	DecisionPending     Decision = "Pending"
	DecisionFavorable   Decision = "Favorable"
	DecisionUnfavorable Decision = "Unfavorable"
	DecisionAlternate   Decision = "Alternate"
)

// Decisions lists all valid decision values in display order.
var Decisions = []Decision{
	DecisionPending,
	DecisionFavorable,
	DecisionUnfavorable,
	DecisionAlternate,
}

func (d Decision) IsValid() bool {
	switch d {
	case DecisionPending, DecisionFavorable, DecisionUnfavorable, DecisionAlternate:
		return true
	}
	return false
}

// ParseDecision maps free-form input (import files, API payloads) to a
// canonical decision. Blank or unrecognized input yields Pending.
func ParseDecision(raw string) Decision {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "favorable", "awarded":
		return DecisionFavorable
	case "unfavorable", "rejected", "not retained":
		return DecisionUnfavorable
	case "alternate", "waitlist", "reserve":
		return DecisionAlternate
	default:
		return DecisionPending
	}
}

// Level is the academic tier of a program.
type Level string

const (
	LevelUndergraduate  Level = "Undergraduate"
	LevelGraduate       Level = "Graduate"
	LevelDoctoral       Level = "Doctoral"
	LevelSpecialization Level = "Specialization"
)

// LevelOrder is the canonical ordering used everywhere buckets are listed:
// quota grids, candidate snapshots and exported documents.
var LevelOrder = []Level{
	LevelUndergraduate,
	LevelGraduate,
	LevelDoctoral,
	LevelSpecialization,
}

// levelAliases maps uppercase source spellings to canonical levels.
var levelAliases = map[string]Level{
	"UNDERGRADUATE":     LevelUndergraduate,
	"BACHELOR":          LevelUndergraduate,
	"BACHELORS":         LevelUndergraduate,
	"LICENCE":           LevelUndergraduate,
	"GRADUATE":          LevelGraduate,
	"MASTER":            LevelGraduate,
	"MASTERS":           LevelGraduate,
	"DOCTORAL":          LevelDoctoral,
	"DOCTORATE":         LevelDoctoral,
	"PHD":               LevelDoctoral,
	"SPECIALIZATION":    LevelSpecialization,
	"SPECIALISATION":    LevelSpecialization,
	"SPECIALTY":         LevelSpecialization,
	"MEDICAL SPECIALTY": LevelSpecialization,
}

// ParseLevel normalizes a raw level label through the alias table.
// Unrecognized values fall back to the title-cased input so foreign data is
// preserved rather than dropped.
func ParseLevel(raw string) Level {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if lvl, ok := levelAliases[key]; ok {
		return lvl
	}
	return Level(titleCase(strings.TrimSpace(raw)))
}

// Rank positions a level inside LevelOrder; unknown levels sort last.
func (l Level) Rank() int {
	for i, known := range LevelOrder {
		if l == known {
			return i
		}
	}
	return len(LevelOrder) + 1
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Bucket identifies one quota accounting unit.
type Bucket struct {
	Level   Level  `json:"level"`
	Program string `json:"program"`
}

func (b Bucket) String() string {
	return fmt.Sprintf("%s/%s", b.Level, b.Program)
}

// Candidate is one application under review.
type Candidate struct {
	RequestID         string   `json:"request_id"`
	ApplicationNumber int      `json:"application_number"`
	ExternalID        string   `json:"external_id,omitempty"`
	Sex               string   `json:"sex,omitempty"`
	Name              string   `json:"name"`
	BirthInfo         string   `json:"birth_info,omitempty"`
	PriorDiploma      string   `json:"prior_diploma,omitempty"`
	Score             string   `json:"score,omitempty"`
	Note              string   `json:"note,omitempty"`
	Program           string   `json:"program"`
	Level             Level    `json:"level"`
	Decision          Decision `json:"decision"`
}

// Bucket returns the quota bucket this candidate counts against.
func (c Candidate) Bucket() Bucket {
	return Bucket{Level: c.Level, Program: c.Program}
}

// ScoreValue parses the free-text score field. Import files carry averages as
// text and malformed values are common; they read as 0 rather than failing.
func (c Candidate) ScoreValue() float64 {
	raw := strings.TrimSpace(strings.ReplaceAll(c.Score, ",", "."))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

// RequestIDFromNumber derives the stable candidate key from an application
// number. Zero-padding keeps lexical and numeric ordering aligned.
func RequestIDFromNumber(n int) string {
	return fmt.Sprintf("%04d", n)
}

// Stats are session-wide aggregate counts taken in a single consistent read.
type Stats struct {
	Total       int `json:"total"`
	Decided     int `json:"decided"`
	Favorable   int `json:"favorable"`
	Unfavorable int `json:"unfavorable"`
	Alternate   int `json:"alternate"`
	Pending     int `json:"pending"`
}

// QuotaStatus is the read-side view of one bucket: allocated capacity against
// the favorable decisions already consuming it. Constrained is false for
// buckets that have favorable decisions but no quota row; such buckets admit
// anyone, and the sheet shows the gap instead of a fabricated zero.
type QuotaStatus struct {
	Bucket
	Capacity    int  `json:"capacity"`
	Favorable   int  `json:"favorable"`
	Remaining   int  `json:"remaining"`
	Constrained bool `json:"constrained"`
}

// CapacityPlan is the external seat allocation input: level -> program -> seats.
// Level keys are normalized through ParseLevel when the plan is applied; the
// program spellings double as the canonical reference list for import
// normalization.
type CapacityPlan map[string]map[string]int

// Buckets flattens the plan into quota rows keyed by normalized bucket.
func (p CapacityPlan) Buckets() map[Bucket]int {
	out := make(map[Bucket]int)
	for rawLevel, programs := range p {
		lvl := ParseLevel(rawLevel)
		for program, seats := range programs {
			out[Bucket{Level: lvl, Program: program}] = seats
		}
	}
	return out
}

// ProgramNames returns every program spelling in the plan, for canonical
// program-name matching at import time.
func (p CapacityPlan) ProgramNames() []string {
	var names []string
	for _, programs := range p {
		for program := range programs {
			names = append(names, program)
		}
	}
	return names
}
