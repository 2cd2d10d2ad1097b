package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/jonathan/bin-crew/internal/geocode"
	"github.com/jonathan/bin-crew/internal/store/memory"
	"github.com/jonathan/bin-crew/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stop(id, county, city string, coords ...float64) types.Stop {
	s := types.Stop{JobID: id, Address: types.Address{County: county, City: city}}
	if len(coords) == 2 {
		lat, lon := coords[0], coords[1]
		s.Address.Latitude = &lat
		s.Address.Longitude = &lon
	}
	return s
}

func ids(stops []types.Stop) []string {
	out := make([]string, len(stops))
	for i, s := range stops {
		out[i] = s.JobID
	}
	return out
}

func TestHaversine(t *testing.T) {
	assert.Equal(t, 0.0, Haversine(33.749, -84.388, 33.749, -84.388))

	// Atlanta to Marietta is roughly 16 miles.
	d := Haversine(33.7490, -84.3880, 33.9526, -84.5499)
	assert.InDelta(t, 16.7, d, 0.5)

	// One degree of latitude along a meridian.
	assert.InDelta(t, EarthRadiusMiles*math.Pi/180, Haversine(0, 0, 1, 0), 1e-9)
	assert.InDelta(t, Haversine(1, 2, 3, 4), Haversine(3, 4, 1, 2), 1e-12)
}

func TestOptimizeRoute_GroupsSortedByCounty(t *testing.T) {
	in := []types.Stop{
		stop("f1", "Fulton", "Atlanta"),
		stop("c1", "Cobb", "Marietta"),
		stop("u1", "", ""),
		stop("d1", "", "Decatur"),
		stop("f2", "fulton", "Atlanta"),
		stop("c2", "Cobb", "Kennesaw"),
	}

	out := OptimizeRoute(in)
	assert.Equal(t, []string{"c1", "c2", "d1", "f1", "f2", "u1"}, ids(out))
	for i, s := range out {
		assert.Equal(t, i+1, s.Position)
	}
	assert.Equal(t, 0, in[0].Position, "input is not modified")
}

func TestOptimizeRoute_NearestNeighborWithinCounty(t *testing.T) {
	in := []types.Stop{
		stop("start", "Fulton", "", 33.70, -84.40),
		stop("far", "Fulton", "", 34.10, -84.40),
		stop("near", "Fulton", "", 33.72, -84.40),
		stop("nocoords", "Fulton", ""),
		stop("mid", "Fulton", "", 33.90, -84.40),
	}

	out := OptimizeRoute(in)
	assert.Equal(t, []string{"start", "near", "mid", "far", "nocoords"}, ids(out))
}

func TestOptimizeRoute_Empty(t *testing.T) {
	assert.Empty(t, OptimizeRoute(nil))
}

func TestOptimizeRoute_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	counties := []string{"Fulton", "Cobb", "DeKalb", "Gwinnett", ""}

	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(25)
		in := make([]types.Stop, n)
		for i := range in {
			county := counties[rng.Intn(len(counties))]
			if rng.Intn(4) == 0 {
				in[i] = stop(fmt.Sprintf("s%d", i), county, "")
			} else {
				in[i] = stop(fmt.Sprintf("s%d", i), county, "", 33+rng.Float64(), -85+rng.Float64())
			}
		}

		out := OptimizeRoute(in)

		// Permutation.
		assert.ElementsMatch(t, ids(in), ids(out))

		// County contiguity.
		seen := map[string]bool{}
		prev := ""
		for _, s := range out {
			key := GroupKey(s.Address)
			if key != prev {
				assert.False(t, seen[key], "group %q split", key)
				seen[key] = true
				prev = key
			}
		}

		// Each located stop after the first in its group is the nearest remaining.
		for start := 0; start < len(out); {
			end := start
			for end < len(out) && GroupKey(out[end].Address) == GroupKey(out[start].Address) {
				end++
			}
			group := out[start:end]
			for i := 1; i < len(group) && group[i].Address.HasCoordinates(); i++ {
				chosen := distance(group[i-1], group[i])
				for j := i + 1; j < len(group); j++ {
					if group[j].Address.HasCoordinates() {
						assert.LessOrEqual(t, chosen, distance(group[i-1], group[j])+1e-12)
					}
				}
			}
			start = end
		}
	}
}

func TestTotalMiles_SkipsStopsWithoutCoordinates(t *testing.T) {
	stops := []types.Stop{
		stop("a", "X", "", 0, 0),
		stop("b", "X", ""),
		stop("c", "X", "", 1, 0),
	}
	assert.InDelta(t, Haversine(0, 0, 1, 0), TotalMiles(stops), 1e-9)
	assert.Equal(t, 0.0, TotalMiles(nil))
}

func TestOptimizeRoute_NaNCoordinateIsTreatedAsUnlocated(t *testing.T) {
	stops := []types.Stop{
		stop("a", "Fulton", "", 33.7, -84.3),
		stop("b", "Fulton", "", math.NaN(), -84.4),
		stop("c", "Fulton", "", 33.8, -84.3),
	}

	var ordered []types.Stop
	require.NotPanics(t, func() { ordered = OptimizeRoute(stops) })
	assert.Equal(t, []string{"a", "c", "b"}, ids(ordered))
	assert.InDelta(t, Haversine(33.7, -84.3, 33.8, -84.3), TotalMiles(ordered), 1e-9)
}

func TestHaversine_AntipodalIsFinite(t *testing.T) {
	d := Haversine(0, 0, 0, 180)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusMiles, d, 1e-6)
}

type fakeGeocoder struct {
	results map[string]*geocode.Result
}

func (f fakeGeocoder) Geocode(_ context.Context, address string) (*geocode.Result, error) {
	if r, ok := f.results[address]; ok {
		return r, nil
	}
	return nil, geocode.ErrNotFound
}

func TestPlanRoute(t *testing.T) {
	s := memory.New()
	s.PutEmployee(types.Employee{ID: "E1", Name: "Erin"})
	lat, lon := 33.70, -84.40
	s.PutJob(types.Job{ID: "J1", ScheduledDate: "2024-03-10", AssignedEmployeeID: "E1", Status: types.JobStatusPending,
		Address: types.Address{Street: "1 Peach St", City: "Atlanta", County: "Fulton", Latitude: &lat, Longitude: &lon}})
	s.PutJob(types.Job{ID: "J2", ScheduledDate: "2024-03-10", AssignedEmployeeID: "E1", Status: types.JobStatusCompleted,
		Address: types.Address{Street: "9 Oak Ave", City: "Atlanta", County: "Fulton"}})
	s.PutJob(types.Job{ID: "J3", ScheduledDate: "2024-03-10", AssignedEmployeeID: "E1", Status: types.JobStatusPending,
		Address: types.Address{Street: "0 Nowhere Rd", City: "Marietta", County: "Cobb"}})
	s.PutJob(types.Job{ID: "J4", ScheduledDate: "2024-03-10", AssignedEmployeeID: "E1", Status: types.JobStatusCancelled,
		Address: types.Address{County: "Fulton"}})
	s.PutJob(types.Job{ID: "J5", ScheduledDate: "2024-03-11", AssignedEmployeeID: "E1", Status: types.JobStatusPending})

	geo := fakeGeocoder{results: map[string]*geocode.Result{
		"9 Oak Ave, Atlanta": {Latitude: 33.80, Longitude: -84.40},
	}}
	p := NewPlanner(s, s, geo, nil)

	route, err := p.PlanRoute(context.Background(), "E1", "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"J3", "J1", "J2"}, ids(route.Stops))
	assert.Equal(t, 1, route.Geocoded)
	assert.InDelta(t, Haversine(33.70, -84.40, 33.80, -84.40), route.TotalMiles, 1e-9)

	j2, _ := s.GetJob(context.Background(), "J2")
	require.True(t, j2.Address.HasCoordinates(), "geocoded coordinates are persisted")
	assert.Equal(t, 33.80, *j2.Address.Latitude)

	j3, _ := s.GetJob(context.Background(), "J3")
	assert.False(t, j3.Address.HasCoordinates())
}

func TestPlanRoute_ReplacesUnusableCoordinates(t *testing.T) {
	s := memory.New()
	s.PutEmployee(types.Employee{ID: "E1", Name: "Erin"})
	nan, lon := math.NaN(), -84.40
	s.PutJob(types.Job{ID: "J1", ScheduledDate: "2024-03-10", AssignedEmployeeID: "E1", Status: types.JobStatusPending,
		Address: types.Address{Street: "1 Peach St", City: "Atlanta", County: "Fulton", Latitude: &nan, Longitude: &lon}})
	s.PutJob(types.Job{ID: "J2", ScheduledDate: "2024-03-10", AssignedEmployeeID: "E1", Status: types.JobStatusPending,
		Address: types.Address{Street: "9 Oak Ave", City: "Atlanta", County: "Fulton"}})

	geo := fakeGeocoder{results: map[string]*geocode.Result{
		"1 Peach St, Atlanta": {Latitude: 33.70, Longitude: -84.40},
		"9 Oak Ave, Atlanta":  {Latitude: math.Inf(1), Longitude: -84.40},
	}}
	p := NewPlanner(s, s, geo, nil)

	route, err := p.PlanRoute(context.Background(), "E1", "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"J1", "J2"}, ids(route.Stops))
	assert.Equal(t, 1, route.Geocoded)

	j1, _ := s.GetJob(context.Background(), "J1")
	require.True(t, j1.Address.HasCoordinates())
	assert.Equal(t, 33.70, *j1.Address.Latitude)

	j2, _ := s.GetJob(context.Background(), "J2")
	assert.False(t, j2.Address.HasCoordinates(), "unusable geocoder output is not persisted")
}

func TestPlanRoute_Errors(t *testing.T) {
	s := memory.New()
	p := NewPlanner(s, s, nil, nil)

	_, err := p.PlanRoute(context.Background(), "E1", "2024-03-10")
	assert.True(t, types.IsNotFound(err))

	_, err = p.PlanRoute(context.Background(), "E1", "tomorrow")
	var ve *types.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = p.PlanRoute(context.Background(), "", "2024-03-10")
	assert.True(t, errors.As(err, &ve))
}
