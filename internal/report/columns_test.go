package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDefaults(t *testing.T) {
	t.Parallel()

	records := []map[string]any{
		{
			"aoi_Job Number":         "J1",
			"aoi_Operator":           "Alice",
			"aoi_Date":               "2024-07-01",
			"aoi_Program":            "Alpha",
			"aoi_Quantity Inspected": 100,
			"aoi_Quantity Rejected":  "5",
			"fi_Date":                "2024-07-03",
			"fi_Quantity Inspected":  "150",
			"fi_Quantity Rejected":   2,
		},
	}

	rows := Decode(records, DecodeOptions{})
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "J1", r.Job)
	assert.Equal(t, "Alice", r.Operator)
	require.NotNil(t, r.AOIDate)
	assert.Equal(t, 1, r.AOIDate.Day())
	assert.InDelta(t, 100, r.AOIInspected, 1e-9)
	assert.InDelta(t, 5, r.AOIRejected, 1e-9)
	require.NotNil(t, r.FIDate)
	assert.InDelta(t, 150, r.FIInspected, 1e-9)
	assert.InDelta(t, 2, r.FIRejected, 1e-9)
	assert.Equal(t, "Alpha", r.Extra["aoi_Program"])
}

func TestDecodeMissingColumnsDegrade(t *testing.T) {
	t.Parallel()

	records := []map[string]any{
		{"aoi_Quantity Inspected": "garbage"},
	}

	rows := Decode(records, DecodeOptions{})
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Empty(t, r.Job)
	assert.Empty(t, r.Operator)
	assert.Nil(t, r.AOIDate)
	assert.Nil(t, r.FIDate)
	assert.Zero(t, r.AOIInspected)
	assert.Zero(t, r.FIRejected)
}

func TestDecodeCustomColumns(t *testing.T) {
	t.Parallel()

	records := []map[string]any{
		{"work_order": "WO-9", "inspector": "Bob", "qty_in": 30},
	}

	rows := Decode(records, DecodeOptions{
		Columns: Columns{Job: "work_order", Operator: "inspector", AOIInspected: "qty_in"},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "WO-9", rows[0].Job)
	assert.Equal(t, "Bob", rows[0].Operator)
	assert.InDelta(t, 30, rows[0].AOIInspected, 1e-9)
}

func TestDecodeIgnorePhrasesRecomputeFIRejects(t *testing.T) {
	t.Parallel()

	records := []map[string]any{
		{
			"aoi_Job Number":            "J1",
			"fi_Quantity Rejected":      6,
			"fi_Additional Information": "Missing Coating (5), Solder Bridge (1)",
		},
		{
			// No reason text: the reported count stands.
			"aoi_Job Number":       "J2",
			"fi_Quantity Rejected": 3,
		},
	}

	rows := Decode(records, DecodeOptions{IgnorePhrases: []string{"Missing Coating"}})
	require.Len(t, rows, 2)
	assert.InDelta(t, 1, rows[0].FIRejected, 1e-9)
	assert.InDelta(t, 3, rows[1].FIRejected, 1e-9)
}
