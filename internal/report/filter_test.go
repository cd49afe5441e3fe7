package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		info   string
		ignore []string
		want   int
	}{
		{
			name: "empty info",
			info: "", ignore: []string{"missing coating"},
			want: 0,
		},
		{
			name: "no ignore phrases sums everything",
			info: "Missing Coating (5), Solder Bridge (1)",
			want: 6,
		},
		{
			name:   "ignored entry dropped",
			info:   "Missing Coating (5), Solder Bridge (1)",
			ignore: []string{"Missing Coating"},
			want:   1,
		},
		{
			name:   "case insensitive match",
			info:   "MISSING COATING (5), Solder Bridge (1)",
			ignore: []string{"missing coating"},
			want:   1,
		},
		{
			name:   "entry without count contributes nothing",
			info:   "Solder Bridge, Tombstone (2)",
			ignore: []string{"missing coating"},
			want:   2,
		},
		{
			name:   "all entries ignored",
			info:   "Missing Coating (5), Masking (3)",
			ignore: []string{"missing coating", "masking"},
			want:   0,
		},
		{
			name:   "blank entries skipped",
			info:   " , Solder Bridge (4), ",
			ignore: nil,
			want:   4,
		},
		{
			name:   "empty ignore phrase matches nothing",
			info:   "Solder Bridge (4)",
			ignore: []string{""},
			want:   4,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CountRejections(tt.info, tt.ignore))
		})
	}
}
