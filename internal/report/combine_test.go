package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineJoinsByJob(t *testing.T) {
	t.Parallel()

	aoi := []map[string]any{
		{"Job Number": "J1", "Operator": "Alice", "Quantity Inspected": "100"},
		{"Job Number": "J1", "Operator": "Bob", "Quantity Inspected": "50"},
		{"Job Number": "J9", "Operator": "Cara", "Quantity Inspected": "10"},
	}
	fi := []map[string]any{
		{"Job Number": "J1", "Date": "2024-07-03", "Quantity Inspected": "80", "Quantity Rejected": "1", "Additional Information": "Solder Bridge (1)"},
		{"Job Number": "J1", "Date": "2024-07-05", "Quantity Inspected": "70", "Quantity Rejected": "2", "Additional Information": "Tombstone (2)"},
	}

	combined := Combine(aoi, fi, "")
	require.Len(t, combined, 3)

	first := combined[0]
	assert.Equal(t, "Alice", first["aoi_Operator"])
	assert.Equal(t, "J1", first["aoi_Job Number"])
	assert.InDelta(t, 150, first["fi_Quantity Inspected"].(float64), 1e-9)
	assert.InDelta(t, 3, first["fi_Quantity Rejected"].(float64), 1e-9)
	assert.Equal(t, "2024-07-05", first["fi_Date"])
	assert.Equal(t, "Solder Bridge (1), Tombstone (2)", first["fi_Additional Information"])

	// Both J1 rows carry the same job-level FI totals.
	assert.Equal(t, first["fi_Quantity Rejected"], combined[1]["fi_Quantity Rejected"])

	// J9 has no FI record: AOI columns only.
	last := combined[2]
	assert.Equal(t, "Cara", last["aoi_Operator"])
	_, hasFI := last["fi_Quantity Rejected"]
	assert.False(t, hasFI)
}

func TestCombineUnparseableFIDateKeptVerbatim(t *testing.T) {
	t.Parallel()

	aoi := []map[string]any{{"Job Number": "J1"}}
	fi := []map[string]any{{"Job Number": "J1", "Date": "week 32"}}

	combined := Combine(aoi, fi, "")
	require.Len(t, combined, 1)
	assert.Equal(t, "week 32", combined[0]["fi_Date"])
}

func TestCombineCustomJobColumn(t *testing.T) {
	t.Parallel()

	aoi := []map[string]any{{"WO": "A7", "Operator": "Dan"}}
	fi := []map[string]any{{"WO": "A7", "Quantity Rejected": "4"}}

	combined := Combine(aoi, fi, "WO")
	require.Len(t, combined, 1)
	assert.InDelta(t, 4, combined[0]["fi_Quantity Rejected"].(float64), 1e-9)
}

func TestColumnsOf(t *testing.T) {
	t.Parallel()

	records := []map[string]any{
		{"b": 1, "a": 2},
		{"c": 3},
	}
	assert.Equal(t, []string{"a", "b", "c"}, ColumnsOf(records))
}
