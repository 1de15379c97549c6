package incidence

import (
	"testing"
	"time"

	"github.com/ivlev/mapvideo/internal/datasource"
)

func history(start time.Time, cases ...int) []datasource.DayCount {
	out := make([]datasource.DayCount, len(cases))
	for i, c := range cases {
		out[i] = datasource.DayCount{Date: start.AddDate(0, 0, i), Cases: c}
	}
	return out
}

func TestColorForValue(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "#2D81B8"},
		{0.9, "#2D81B8"},
		{1, "#7FD38D"},
		{84, "#EB1A1D"},
		{350, "#5B189B"},
		{999.9, "#543D35"},
		{123456, "#020003"},
	}
	for _, tt := range tests {
		if got := ColorForValue(tt.value, WeekIncidenceColorRanges); got != tt.want {
			t.Errorf("ColorForValue(%v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestBuildSevenDayWindow(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	histories := map[string][]datasource.DayCount{
		"1": history(start, 10, 12, 9, 11, 14, 13, 15, 20),
	}
	infos := map[string]datasource.RegionInfo{
		"1": {Name: "Testland", Population: 100000},
	}

	colors, err := Build(histories, infos)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Days 0-5 have no 7-day window yet.
	if len(colors) != 2 {
		t.Fatalf("Expected 2 classified days, got %d", len(colors))
	}

	// Day index 6: sum(10..15) = 84 per 100k -> 50-100 band.
	day6 := colors["2023-01-07"]
	if day6 == nil {
		t.Fatal("Missing classification for 2023-01-07")
	}
	if day6["1"].Color != "#EB1A1D" {
		t.Errorf("Day 6 color = %s, want #EB1A1D", day6["1"].Color)
	}

	// Day index 7: sum(12..20) = 94, still the 50-100 band.
	day7 := colors["2023-01-08"]
	if day7["1"].Color != "#EB1A1D" {
		t.Errorf("Day 7 color = %s, want #EB1A1D", day7["1"].Color)
	}

	// A single region is its own min, avg and max.
	for _, key := range []string{KeyMin, KeyAvg, KeyMax} {
		if day6[key].Color != "#EB1A1D" {
			t.Errorf("Aggregate %s = %s, want #EB1A1D", key, day6[key].Color)
		}
	}
}

func TestBuildAggregates(t *testing.T) {
	start := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	flat := func(cases int) []datasource.DayCount {
		return history(start, cases, cases, cases, cases, cases, cases, cases)
	}
	// Weekly incidences: 7*2=14, 7*8=56, 7*80=560 per 100k.
	histories := map[string][]datasource.DayCount{
		"low":  flat(2),
		"mid":  flat(8),
		"high": flat(80),
	}
	infos := map[string]datasource.RegionInfo{
		"low":  {Population: 100000},
		"mid":  {Population: 100000},
		"high": {Population: 100000},
	}

	colors, err := Build(histories, infos)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	day := colors["2023-03-07"]
	if day == nil {
		t.Fatal("Missing classification for 2023-03-07")
	}

	if day[KeyMin].Color != ColorForValue(14, WeekIncidenceColorRanges) {
		t.Errorf("min color = %s", day[KeyMin].Color)
	}
	if day[KeyMax].Color != ColorForValue(560, WeekIncidenceColorRanges) {
		t.Errorf("max color = %s", day[KeyMax].Color)
	}
	// avg = (14+56+560)/3 = 210 -> 200-350 band.
	if day[KeyAvg].Color != ColorForValue(210, WeekIncidenceColorRanges) {
		t.Errorf("avg color = %s", day[KeyAvg].Color)
	}
}

func TestBuildOrderIndependent(t *testing.T) {
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	histories := map[string][]datasource.DayCount{
		"a": history(start, 5, 6, 7, 8, 9, 10, 11, 12),
		"b": history(start, 50, 60, 70, 80, 90, 100, 110, 120),
		"c": history(start, 1, 1, 1, 1, 1, 1, 1, 1),
	}
	infos := map[string]datasource.RegionInfo{
		"a": {Population: 90000},
		"b": {Population: 250000},
		"c": {Population: 12000},
	}

	// Map iteration order varies between runs; two builds over the same
	// input must agree anyway.
	first, err := Build(histories, infos)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Build(histories, infos)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		for date, day := range first {
			for key, entry := range day {
				if again[date][key] != entry {
					t.Fatalf("Run %d: %s/%s = %v, want %v", i, date, key, again[date][key], entry)
				}
			}
		}
	}
}

func TestBuildMissingRegionInfo(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	histories := map[string][]datasource.DayCount{
		"1": history(start, 1, 1, 1, 1, 1, 1, 1),
	}
	if _, err := Build(histories, map[string]datasource.RegionInfo{}); err == nil {
		t.Error("Expected error for missing region info")
	}
	infos := map[string]datasource.RegionInfo{"1": {Population: 0}}
	if _, err := Build(histories, infos); err == nil {
		t.Error("Expected error for zero population")
	}
}

func TestSortedDates(t *testing.T) {
	c := ColorsPerDay{
		"2023-01-03": {},
		"2023-01-01": {},
		"2023-01-02": {},
	}
	dates := c.SortedDates()
	want := []string{"2023-01-01", "2023-01-02", "2023-01-03"}
	for i, d := range want {
		if dates[i] != d {
			t.Errorf("dates[%d] = %s, want %s", i, dates[i], d)
		}
	}
}
