package regions

import "fmt"

// Region selects one of the two map granularities the service renders.
type Region string

const (
	Districts Region = "districts"
	States    Region = "states"
)

// All returns every supported region set.
func All() []Region {
	return []Region{Districts, States}
}

// Parse validates a region path parameter.
func Parse(s string) (Region, error) {
	switch Region(s) {
	case Districts:
		return Districts, nil
	case States:
		return States, nil
	default:
		return "", fmt.Errorf("unknown region %q (expected %q or %q)", s, Districts, States)
	}
}

// Headline returns the map title drawn on every frame of the region.
func (r Region) Headline() string {
	if r == Districts {
		return "7-Tage-Inzidenz der Landkreise"
	}
	return "7-Tage-Inzidenz der Bundesländer"
}

var stateAbbreviations = map[int]string{
	1:  "SH",
	2:  "HH",
	3:  "NI",
	4:  "HB",
	5:  "NW",
	6:  "HE",
	7:  "RP",
	8:  "BW",
	9:  "BY",
	10: "SL",
	11: "BE",
	12: "BB",
	13: "MV",
	14: "SN",
	15: "ST",
	16: "TH",
}

var stateIDs = func() map[string]int {
	m := make(map[string]int, len(stateAbbreviations))
	for id, abbr := range stateAbbreviations {
		m[abbr] = id
	}
	return m
}()

// StateAbbreviationByID maps a numeric state id to its two-letter code.
// Returns "" for unknown ids.
func StateAbbreviationByID(id int) string {
	return stateAbbreviations[id]
}

// StateIDByAbbreviation maps a two-letter state code to its numeric id.
// Returns 0 for unknown codes.
func StateIDByAbbreviation(abbr string) int {
	return stateIDs[abbr]
}
