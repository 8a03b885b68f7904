// Package export renders the session's decision state into the documents the
// commission publishes: sectioned decision lists and the per-bucket quota
// sheet. Rows are grouped by level in canonical order, then program, then
// application number.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"bursa/internal/session/models"
)

// Section is one block of a decision list document.
type Section struct {
	Title      string
	Decision   models.Decision
	Candidates []models.Candidate
}

// sectionsOrder fixes the published document layout: awarded first, then
// alternates, then candidates not retained.
var sectionsOrder = []struct {
	title    string
	decision models.Decision
}{
	{"AWARDED", models.DecisionFavorable},
	{"ALTERNATES", models.DecisionAlternate},
	{"NOT RETAINED", models.DecisionUnfavorable},
}

// BuildSections splits candidates into the published sections, each sorted
// by the canonical ordering contract.
func BuildSections(candidates []models.Candidate) []Section {
	out := make([]Section, 0, len(sectionsOrder))
	for _, def := range sectionsOrder {
		var members []models.Candidate
		for _, c := range candidates {
			if c.Decision == def.decision {
				members = append(members, c)
			}
		}
		sortCandidates(members)
		out = append(out, Section{Title: def.title, Decision: def.decision, Candidates: members})
	}
	return out
}

func sortCandidates(list []models.Candidate) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if ra, rb := a.Level.Rank(), b.Level.Rank(); ra != rb {
			return ra < rb
		}
		if a.Program != b.Program {
			return a.Program < b.Program
		}
		return a.ApplicationNumber < b.ApplicationNumber
	})
}

// DecisionListCSV writes the sectioned decision list as CSV.
func DecisionListCSV(w io.Writer, candidates []models.Candidate) error {
	cw := csv.NewWriter(w)
	header := []string{"section", "level", "program", "number", "name", "note"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, section := range BuildSections(candidates) {
		for _, c := range section.Candidates {
			record := []string{
				section.Title,
				string(c.Level),
				c.Program,
				strconv.Itoa(c.ApplicationNumber),
				c.Name,
				c.Note,
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecisionListText renders the decision list as bordered tables, one per
// section, with level separator rows the way the printed lists look.
func DecisionListText(w io.Writer, candidates []models.Candidate) error {
	for _, section := range BuildSections(candidates) {
		if _, err := fmt.Fprintf(w, "\n%s (%d)\n", section.Title, len(section.Candidates)); err != nil {
			return err
		}
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"No", "Program", "Name", "Note"})

		var currentLevel models.Level
		for _, c := range section.Candidates {
			if c.Level != currentLevel {
				currentLevel = c.Level
				table.Append([]string{"", string(currentLevel), "", ""})
			}
			table.Append([]string{
				strconv.Itoa(c.ApplicationNumber),
				c.Program,
				c.Name,
				c.Note,
			})
		}
		table.Render()
	}
	return nil
}

// QuotaSheetCSV writes capacity, favorable and remaining per bucket with a
// totals row.
func QuotaSheetCSV(w io.Writer, statuses []models.QuotaStatus) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"level", "program", "capacity", "favorable", "remaining"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var totalCapacity, totalFavorable, totalRemaining int
	for _, q := range statuses {
		totalFavorable += q.Favorable
		capacity, remaining := "", ""
		if q.Constrained {
			totalCapacity += q.Capacity
			totalRemaining += q.Remaining
			capacity = strconv.Itoa(q.Capacity)
			remaining = strconv.Itoa(q.Remaining)
		}
		record := []string{
			string(q.Level),
			q.Program,
			capacity,
			strconv.Itoa(q.Favorable),
			remaining,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	totals := []string{
		"", "TOTAL",
		strconv.Itoa(totalCapacity),
		strconv.Itoa(totalFavorable),
		strconv.Itoa(totalRemaining),
	}
	if err := cw.Write(totals); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// QuotaSheetText renders the quota sheet as a bordered table.
func QuotaSheetText(w io.Writer, statuses []models.QuotaStatus) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Level", "Program", "Capacity", "Favorable", "Remaining"})

	var totalCapacity, totalFavorable, totalRemaining int
	for _, q := range statuses {
		totalFavorable += q.Favorable
		capacity, remaining := "", ""
		if q.Constrained {
			totalCapacity += q.Capacity
			totalRemaining += q.Remaining
			capacity = strconv.Itoa(q.Capacity)
			remaining = strconv.Itoa(q.Remaining)
		}
		table.Append([]string{
			string(q.Level),
			q.Program,
			capacity,
			strconv.Itoa(q.Favorable),
			remaining,
		})
	}
	table.SetFooter([]string{"", "TOTAL",
		strconv.Itoa(totalCapacity),
		strconv.Itoa(totalFavorable),
		strconv.Itoa(totalRemaining),
	})
	table.Render()
	return nil
}
