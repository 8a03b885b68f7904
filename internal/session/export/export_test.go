package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bursa/internal/session/models"
)

func fixtureCandidates() []models.Candidate {
	return []models.Candidate{
		{RequestID: "0005", ApplicationNumber: 5, Name: "Cheikh Ndiaye",
			Program: "Law", Level: models.LevelGraduate, Decision: models.DecisionFavorable},
		{RequestID: "0002", ApplicationNumber: 2, Name: "Moussa Traore",
			Program: "Medicine", Level: models.LevelUndergraduate, Decision: models.DecisionFavorable},
		{RequestID: "0001", ApplicationNumber: 1, Name: "Amina Diallo",
			Program: "Medicine", Level: models.LevelUndergraduate, Decision: models.DecisionFavorable, Note: "priority"},
		{RequestID: "0003", ApplicationNumber: 3, Name: "Fatou Sow",
			Program: "Medicine", Level: models.LevelUndergraduate, Decision: models.DecisionAlternate},
		{RequestID: "0004", ApplicationNumber: 4, Name: "Omar Ba",
			Program: "Arts", Level: models.LevelUndergraduate, Decision: models.DecisionUnfavorable},
		{RequestID: "0006", ApplicationNumber: 6, Name: "Aicha Sarr",
			Program: "Arts", Level: models.LevelUndergraduate, Decision: models.DecisionPending},
	}
}

func TestBuildSections(t *testing.T) {
	sections := BuildSections(fixtureCandidates())
	require.Len(t, sections, 3)

	t.Run("sections follow the published order", func(t *testing.T) {
		assert.Equal(t, "AWARDED", sections[0].Title)
		assert.Equal(t, "ALTERNATES", sections[1].Title)
		assert.Equal(t, "NOT RETAINED", sections[2].Title)
	})

	t.Run("awarded sorts by level then program then number", func(t *testing.T) {
		awarded := sections[0].Candidates
		require.Len(t, awarded, 3)
		assert.Equal(t, "0001", awarded[0].RequestID)
		assert.Equal(t, "0002", awarded[1].RequestID)
		// Graduate level comes after undergraduate regardless of number.
		assert.Equal(t, "0005", awarded[2].RequestID)
	})

	t.Run("pending candidates appear in no section", func(t *testing.T) {
		total := 0
		for _, s := range sections {
			total += len(s.Candidates)
		}
		assert.Equal(t, 5, total)
	})
}

func TestDecisionListCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DecisionListCSV(&buf, fixtureCandidates()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6) // header + 5 decided candidates

	assert.Equal(t, []string{"section", "level", "program", "number", "name", "note"}, records[0])
	assert.Equal(t, []string{"AWARDED", "Undergraduate", "Medicine", "1", "Amina Diallo", "priority"}, records[1])
	assert.Equal(t, "NOT RETAINED", records[5][0])
}

func TestDecisionListText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DecisionListText(&buf, fixtureCandidates()))

	out := buf.String()
	assert.Contains(t, out, "AWARDED (3)")
	assert.Contains(t, out, "ALTERNATES (1)")
	assert.Contains(t, out, "NOT RETAINED (1)")
	assert.Contains(t, out, "Amina Diallo")
}

func quotaFixture() []models.QuotaStatus {
	return []models.QuotaStatus{
		{Bucket: models.Bucket{Level: models.LevelUndergraduate, Program: "Medicine"},
			Capacity: 10, Favorable: 2, Remaining: 8, Constrained: true},
		{Bucket: models.Bucket{Level: models.LevelGraduate, Program: "Law"},
			Capacity: 4, Favorable: 1, Remaining: 3, Constrained: true},
		{Bucket: models.Bucket{Level: models.LevelGraduate, Program: "History"},
			Favorable: 1},
	}
}

func TestQuotaSheetCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, QuotaSheetCSV(&buf, quotaFixture()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5) // header + 3 buckets + totals

	assert.Equal(t, []string{"Undergraduate", "Medicine", "10", "2", "8"}, records[1])

	// An unconstrained bucket shows its awards with a blank capacity.
	assert.Equal(t, []string{"Graduate", "History", "", "1", ""}, records[3])

	// Totals cover constrained buckets only, favorable covers all.
	assert.Equal(t, []string{"", "TOTAL", "14", "4", "11"}, records[4])
}

func TestQuotaSheetText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, QuotaSheetText(&buf, quotaFixture()))

	out := buf.String()
	assert.Contains(t, out, "Medicine")
	assert.Contains(t, out, "TOTAL")
	// Footer carries the conserved capacity sum.
	assert.True(t, strings.Contains(out, "14"))
}
