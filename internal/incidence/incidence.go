package incidence

import (
	"fmt"
	"math"
	"sort"

	"github.com/ivlev/mapvideo/internal/datasource"
)

// ColorRange is one band of the week-incidence legend. Max is exclusive;
// the top band uses +Inf.
type ColorRange struct {
	Min   float64
	Max   float64
	Color string
}

// WeekIncidenceColorRanges orders the legend from harmless to severe.
var WeekIncidenceColorRanges = []ColorRange{
	{0, 1, "#2D81B8"},
	{1, 15, "#7FD38D"},
	{15, 25, "#FEFFB1"},
	{25, 35, "#FECA81"},
	{35, 50, "#F08A4B"},
	{50, 100, "#EB1A1D"},
	{100, 200, "#AB1316"},
	{200, 350, "#B374DD"},
	{350, 500, "#5B189B"},
	{500, 1000, "#543D35"},
	{1000, math.Inf(1), "#020003"},
}

// ColorForValue maps an incidence value to its band color. The first
// band whose upper bound is not exceeded wins; the unbounded top band
// catches everything else.
func ColorForValue(value float64, ranges []ColorRange) string {
	for _, r := range ranges {
		if value < r.Max {
			return r.Color
		}
	}
	return ranges[len(ranges)-1].Color
}

// RangeIndex returns the position of a band color within the ordered
// legend, or -1 if the color is not part of it.
func RangeIndex(color string, ranges []ColorRange) int {
	for i, r := range ranges {
		if r.Color == color {
			return i
		}
	}
	return -1
}

// Entry is a single color classification inside a day's map.
type Entry struct {
	Color string `json:"color"`
}

// DayColors maps region keys, plus the reserved aggregate keys
// KeyMin/KeyAvg/KeyMax, to their band color for one day.
type DayColors map[string]Entry

// ColorsPerDay is the full classification of all known days, keyed by
// "2006-01-02" date strings. It is what the snapshot store persists.
type ColorsPerDay map[string]DayColors

// Reserved aggregate keys stored alongside region keys in each day.
const (
	KeyMin = "min"
	KeyAvg = "avg"
	KeyMax = "max"
)

// DateFormat is the key format of ColorsPerDay.
const DateFormat = "2006-01-02"

// dayAggregate accumulates cross-region statistics for one day. It is
// copied by value before mutation, so accumulation never aliases a
// previously stored entry.
type dayAggregate struct {
	sum      float64
	count    int
	min      float64
	minColor string
	max      float64
	maxColor string
}

// Build derives the per-day color classification from raw case
// histories. For every day index >= 6 the trailing 7-day case sum per
// 100k population is classified into a band; the same pass maintains
// the cross-region min/avg/max aggregates. Region iteration order does
// not affect the result: min/max are pure comparisons and avg is
// recomputed from a running sum and count.
func Build(histories map[string][]datasource.DayCount, infos map[string]datasource.RegionInfo) (ColorsPerDay, error) {
	colors := ColorsPerDay{}
	aggregates := map[string]dayAggregate{}

	for key, history := range histories {
		info, ok := infos[key]
		if !ok {
			return nil, fmt.Errorf("no region data for key %q", key)
		}
		if info.Population <= 0 {
			return nil, fmt.Errorf("region %q has no population", key)
		}
		for i := 6; i < len(history); i++ {
			date := history[i].Date.Format(DateFormat)
			sum := 0
			for offset := i; offset > i-7; offset-- {
				sum += history[offset].Cases
			}
			value := float64(sum) / float64(info.Population) * 100000
			color := ColorForValue(value, WeekIncidenceColorRanges)

			day, ok := colors[date]
			if !ok {
				day = DayColors{}
				colors[date] = day
			}
			day[key] = Entry{Color: color}

			agg, ok := aggregates[date]
			if !ok {
				aggregates[date] = dayAggregate{
					sum:      value,
					count:    1,
					min:      value,
					minColor: color,
					max:      value,
					maxColor: color,
				}
				continue
			}
			agg.sum += value
			agg.count++
			if value > agg.max {
				agg.max = value
				agg.maxColor = color
			}
			if value < agg.min {
				agg.min = value
				agg.minColor = color
			}
			aggregates[date] = agg
		}
	}

	for date, agg := range aggregates {
		avg := agg.sum / float64(agg.count)
		colors[date][KeyMin] = Entry{Color: agg.minColor}
		colors[date][KeyAvg] = Entry{Color: ColorForValue(avg, WeekIncidenceColorRanges)}
		colors[date][KeyMax] = Entry{Color: agg.maxColor}
	}

	return colors, nil
}

// SortedDates returns the snapshot's date keys in chronological order.
func (c ColorsPerDay) SortedDates() []string {
	dates := make([]string, 0, len(c))
	for date := range c {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}
