package analytics

import (
	"math"
	"testing"
)

func TestHeatmapToEntityRejectsInvalidCounts(t *testing.T) {
	tests := []struct {
		name  string
		count float64
	}{
		{name: "negative", count: -1},
		{name: "fractional", count: 2.5},
		{name: "beyond int range", count: 1e20},
		{name: "max int as float", count: math.MaxInt},
		{name: "infinite", count: math.Inf(1)},
		{name: "nan", count: math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := heatmapToEntity([]heatmapWire{{Failure: "F42", Count: tt.count}}); err == nil {
				t.Fatalf("expected error for count %v", tt.count)
			}
		})
	}
}

func TestHeatmapToEntityAcceptsWholeCounts(t *testing.T) {
	rows, err := heatmapToEntity([]heatmapWire{{Failure: "F42", Count: 0}, {Failure: "F7", Count: 1e9}})
	if err != nil {
		t.Fatalf("heatmapToEntity() error = %v", err)
	}
	if rows[0].Count != 0 || rows[1].Count != 1_000_000_000 {
		t.Fatalf("unexpected rows %+v", rows)
	}
}
