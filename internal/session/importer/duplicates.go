package importer

import (
	"fmt"
	"strings"

	"bursa/internal/session/models"
)

// Classification labels a pair of records sharing an external id.
type Classification string

const (
	// ClassIdentical: same person entered twice for the same bucket.
	ClassIdentical Classification = "identical"
	// ClassSamePersonDifferentProgram: one person applying to two buckets.
	ClassSamePersonDifferentProgram Classification = "same_person_different_program"
	// ClassDifferentPeople: the external id was reused for distinct persons.
	ClassDifferentPeople Classification = "different_people"
)

// Action is what the policy does with the second record of a classified pair.
type Action string

const (
	ActionKeep       Action = "keep"
	ActionDropSecond Action = "drop-second"
)

// Policy maps each classification to an action.
type Policy map[Classification]Action

// DefaultPolicy keeps every record. Classification still runs so the report
// surfaces suspected duplicates; dropping stays a deliberate opt-in.
func DefaultPolicy() Policy {
	return Policy{
		ClassIdentical:                  ActionKeep,
		ClassSamePersonDifferentProgram: ActionKeep,
		ClassDifferentPeople:            ActionKeep,
	}
}

// nameOverlapThreshold separates "different people" from "same person":
// the ratio of shared name tokens to the larger name's token count.
const nameOverlapThreshold = 0.3

// DuplicateFinding records one classified pair for the import report.
type DuplicateFinding struct {
	ExternalID     string         `json:"external_id"`
	Classification Classification `json:"classification"`
	Overlap        float64        `json:"overlap"`
	FirstID        string         `json:"first_id"`
	SecondID       string         `json:"second_id"`
	Dropped        bool           `json:"dropped"`
}

// applyDuplicatePolicy groups candidates by external id and classifies pairs
// by name-token overlap. Only the first pair of a group is classified; groups
// of three or more are flagged for manual review and never auto-dropped.
func (imp *Importer) applyDuplicatePolicy(result *Result) {
	groups := make(map[string][]models.Candidate)
	order := make([]string, 0)
	for _, c := range result.Candidates {
		if c.ExternalID == "" {
			continue
		}
		if _, seen := groups[c.ExternalID]; !seen {
			order = append(order, c.ExternalID)
		}
		groups[c.ExternalID] = append(groups[c.ExternalID], c)
	}

	drop := make(map[string]bool)
	for _, externalID := range order {
		group := groups[externalID]
		if len(group) < 2 {
			continue
		}
		if len(group) > 2 {
			result.Report.NeedsReview = append(result.Report.NeedsReview,
				fmt.Sprintf("external id %s appears %d times; resolve manually", externalID, len(group)))
		}

		a, b := group[0], group[1]
		overlap := nameOverlap(a.Name, b.Name)

		var class Classification
		switch {
		case overlap < nameOverlapThreshold:
			class = ClassDifferentPeople
		case a.Bucket() == b.Bucket():
			class = ClassIdentical
		default:
			class = ClassSamePersonDifferentProgram
		}

		dropped := imp.policy[class] == ActionDropSecond && len(group) == 2
		if dropped {
			drop[b.RequestID] = true
		}
		result.Report.Duplicates = append(result.Report.Duplicates, DuplicateFinding{
			ExternalID:     externalID,
			Classification: class,
			Overlap:        overlap,
			FirstID:        a.RequestID,
			SecondID:       b.RequestID,
			Dropped:        dropped,
		})
	}

	if len(drop) == 0 {
		return
	}
	kept := result.Candidates[:0]
	for _, c := range result.Candidates {
		if drop[c.RequestID] {
			result.Report.Dropped++
			continue
		}
		kept = append(kept, c)
	}
	result.Candidates = kept
}

// nameOverlap is the ratio of shared uppercased name tokens to the larger
// name's token count.
func nameOverlap(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 0
	}
	common := 0
	for token := range tokensA {
		if tokensB[token] {
			common++
		}
	}
	larger := len(tokensA)
	if len(tokensB) > larger {
		larger = len(tokensB)
	}
	return float64(common) / float64(larger)
}

func tokenSet(name string) map[string]bool {
	out := make(map[string]bool)
	for _, token := range strings.Fields(strings.ToUpper(name)) {
		out[token] = true
	}
	return out
}
