// Package routing orders an employee's stops for a day.
//
// Ordering is a greedy nearest-neighbor chain within each county group. It is not
// an optimal tour; it trades some distance for predictable, fast output.
package routing

import (
	"math"
	"sort"
	"strings"

	"github.com/jonathan/bin-crew/internal/types"
)

// EarthRadiusMiles is the mean Earth radius used for great-circle distances.
const EarthRadiusMiles = 3959.0

// UnknownGroup is the group key for stops with neither county nor city.
const UnknownGroup = "Unknown"

// Haversine returns the great-circle distance in miles between two points given
// in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMiles * c
}

// GroupKey returns the county, falling back to the city, then UnknownGroup.
func GroupKey(a types.Address) string {
	if c := strings.TrimSpace(a.County); c != "" {
		return c
	}
	if c := strings.TrimSpace(a.City); c != "" {
		return c
	}
	return UnknownGroup
}

// OptimizeRoute returns the stops reordered and numbered from 1. The input slice
// is not modified.
//
// Stops are grouped by GroupKey (case-insensitive) and groups are emitted in
// sorted key order. Within a group, stops with coordinates come first: the first
// one encountered starts the chain and each next stop is the nearest unplaced one
// to the previous. Stops without coordinates follow in input order.
func OptimizeRoute(stops []types.Stop) []types.Stop {
	groups := make(map[string][]types.Stop)
	var keys []string
	for _, s := range stops {
		key := strings.ToLower(GroupKey(s.Address))
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], s)
	}
	sort.Strings(keys)

	out := make([]types.Stop, 0, len(stops))
	for _, key := range keys {
		out = append(out, orderGroup(groups[key])...)
	}
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

func orderGroup(group []types.Stop) []types.Stop {
	var located, unlocated []types.Stop
	for _, s := range group {
		if s.Address.HasCoordinates() {
			located = append(located, s)
		} else {
			unlocated = append(unlocated, s)
		}
	}

	ordered := make([]types.Stop, 0, len(group))
	if len(located) > 0 {
		placed := make([]bool, len(located))
		current := located[0]
		placed[0] = true
		ordered = append(ordered, current)

		for n := 1; n < len(located); n++ {
			best := -1
			bestDist := math.Inf(1)
			for i, candidate := range located {
				if placed[i] {
					continue
				}
				d := distance(current, candidate)
				if d < bestDist {
					best, bestDist = i, d
				}
			}
			if best < 0 {
				// No comparable distance remains; keep the rest in input order.
				for i, candidate := range located {
					if !placed[i] {
						ordered = append(ordered, candidate)
					}
				}
				break
			}
			placed[best] = true
			current = located[best]
			ordered = append(ordered, current)
		}
	}
	return append(ordered, unlocated...)
}

// TotalMiles sums legs between consecutive stops that have coordinates, skipping
// stops without them.
func TotalMiles(stops []types.Stop) float64 {
	var total float64
	var prev *types.Stop
	for i := range stops {
		if !stops[i].Address.HasCoordinates() {
			continue
		}
		if prev != nil {
			total += distance(*prev, stops[i])
		}
		prev = &stops[i]
	}
	return total
}

func distance(a, b types.Stop) float64 {
	return Haversine(*a.Address.Latitude, *a.Address.Longitude, *b.Address.Latitude, *b.Address.Longitude)
}
