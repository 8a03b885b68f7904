package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlatRows(t *testing.T, imp *Importer, rows ...string) *Result {
	t.Helper()
	input := "number,external_id,name,program,level\n" + strings.Join(rows, "\n") + "\n"
	result, err := imp.Parse(strings.NewReader(input))
	require.NoError(t, err)
	return result
}

func TestDuplicateClassification(t *testing.T) {
	imp := New(Options{})

	t.Run("same name and bucket is identical", func(t *testing.T) {
		result := parseFlatRows(t, imp,
			"1,EXT-9,Amina Diallo,Medicine,Licence",
			"2,EXT-9,Amina Diallo,Medicine,Licence",
		)
		require.Len(t, result.Report.Duplicates, 1)
		finding := result.Report.Duplicates[0]
		assert.Equal(t, ClassIdentical, finding.Classification)
		assert.Equal(t, "0001", finding.FirstID)
		assert.Equal(t, "0002", finding.SecondID)
		assert.False(t, finding.Dropped)
		// Default policy keeps both.
		assert.Len(t, result.Candidates, 2)
	})

	t.Run("same name, different bucket is same person", func(t *testing.T) {
		result := parseFlatRows(t, imp,
			"1,EXT-9,Amina Diallo,Medicine,Licence",
			"2,EXT-9,Amina Diallo,Law,Licence",
		)
		require.Len(t, result.Report.Duplicates, 1)
		assert.Equal(t, ClassSamePersonDifferentProgram, result.Report.Duplicates[0].Classification)
	})

	t.Run("low name overlap is different people", func(t *testing.T) {
		result := parseFlatRows(t, imp,
			"1,EXT-9,Amina Diallo,Medicine,Licence",
			"2,EXT-9,Omar Ba,Medicine,Licence",
		)
		require.Len(t, result.Report.Duplicates, 1)
		finding := result.Report.Duplicates[0]
		assert.Equal(t, ClassDifferentPeople, finding.Classification)
		assert.Less(t, finding.Overlap, nameOverlapThreshold)
	})

	t.Run("shared family name clears the threshold", func(t *testing.T) {
		result := parseFlatRows(t, imp,
			"1,EXT-9,Amina Diallo,Medicine,Licence",
			"2,EXT-9,Amina Sarr Diallo,Medicine,Licence",
		)
		require.Len(t, result.Report.Duplicates, 1)
		assert.Equal(t, ClassIdentical, result.Report.Duplicates[0].Classification)
	})

	t.Run("unique external ids produce no findings", func(t *testing.T) {
		result := parseFlatRows(t, imp,
			"1,EXT-1,Amina Diallo,Medicine,Licence",
			"2,EXT-2,Omar Ba,Medicine,Licence",
		)
		assert.Empty(t, result.Report.Duplicates)
	})

	t.Run("blank external ids never group", func(t *testing.T) {
		result := parseFlatRows(t, imp,
			"1,,Amina Diallo,Medicine,Licence",
			"2,,Amina Diallo,Medicine,Licence",
		)
		assert.Empty(t, result.Report.Duplicates)
	})
}

func TestDuplicateDropPolicy(t *testing.T) {
	imp := New(Options{Policy: Policy{
		ClassIdentical:                  ActionDropSecond,
		ClassSamePersonDifferentProgram: ActionKeep,
		ClassDifferentPeople:            ActionKeep,
	}})

	t.Run("drops the second record of an identical pair", func(t *testing.T) {
		result := parseFlatRows(t, imp,
			"1,EXT-9,Amina Diallo,Medicine,Licence",
			"2,EXT-9,Amina Diallo,Medicine,Licence",
			"3,EXT-3,Omar Ba,Law,Licence",
		)
		require.Len(t, result.Candidates, 2)
		assert.Equal(t, "0001", result.Candidates[0].RequestID)
		assert.Equal(t, "0003", result.Candidates[1].RequestID)
		assert.Equal(t, 1, result.Report.Dropped)
		assert.True(t, result.Report.Duplicates[0].Dropped)
	})

	t.Run("other classifications keep both under this policy", func(t *testing.T) {
		result := parseFlatRows(t, imp,
			"1,EXT-9,Amina Diallo,Medicine,Licence",
			"2,EXT-9,Amina Diallo,Law,Licence",
		)
		assert.Len(t, result.Candidates, 2)
		assert.Zero(t, result.Report.Dropped)
	})
}

func TestDuplicateGroupsOfThree(t *testing.T) {
	imp := New(Options{Policy: Policy{
		ClassIdentical:                  ActionDropSecond,
		ClassSamePersonDifferentProgram: ActionDropSecond,
		ClassDifferentPeople:            ActionDropSecond,
	}})

	result := parseFlatRows(t, imp,
		"1,EXT-9,Amina Diallo,Medicine,Licence",
		"2,EXT-9,Amina Diallo,Medicine,Licence",
		"3,EXT-9,Amina Diallo,Medicine,Licence",
	)

	// Larger groups are flagged for a human and never auto-dropped, even
	// under an aggressive policy.
	assert.Len(t, result.Candidates, 3)
	assert.Zero(t, result.Report.Dropped)
	require.Len(t, result.Report.NeedsReview, 1)
	assert.Contains(t, result.Report.NeedsReview[0], "EXT-9")
	assert.Contains(t, result.Report.NeedsReview[0], "3 times")
}

func TestNameOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, nameOverlap("Amina Diallo", "amina diallo"), 0.001)
	assert.InDelta(t, 2.0/3.0, nameOverlap("Amina Diallo", "Amina Sarr Diallo"), 0.001)
	assert.Zero(t, nameOverlap("Amina Diallo", "Omar Ba"))
	assert.Zero(t, nameOverlap("", ""))
}
