package jobs

import (
	"testing"
	"time"
)

func TestParseOffsets(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []time.Duration
	}{
		{"typical", "1440,60", []time.Duration{24 * time.Hour, time.Hour}},
		{"whitespace and trailing comma", " 30 , 15,", []time.Duration{30 * time.Minute, 15 * time.Minute}},
		{"invalid entries dropped", "abc,-5,0,45", []time.Duration{45 * time.Minute}},
		{"empty falls back", "", []time.Duration{DefaultOffset}},
		{"all invalid falls back", "x,y", []time.Duration{DefaultOffset}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseOffsets(tc.raw)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("offset %d: expected %s, got %s", i, tc.want[i], got[i])
				}
			}
		})
	}
}
