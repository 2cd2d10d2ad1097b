package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jonathan/bin-crew/internal/routing"
	"github.com/jonathan/bin-crew/internal/schedule"
	"github.com/jonathan/bin-crew/internal/types"
)

// maxOccurrences caps how many service dates one request may list.
const maxOccurrences = 52

// nextDateResponse lists upcoming service dates.
type nextDateResponse struct {
	TrashDay  string             `json:"trash_day"`
	Frequency schedule.Frequency `json:"frequency"`
	From      string             `json:"from"`
	NextDate  string             `json:"next_date"`
	Dates     []string           `json:"dates"`
}

// handleNextDate handles GET /schedule/next-date?trash_day=&frequency=&from=&count=
func (s *Server) handleNextDate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	trashDay := q.Get("trash_day")
	if _, err := schedule.ParseWeekday(trashDay); err != nil {
		s.writeError(w, err)
		return
	}
	frequency, err := schedule.ParseFrequency(q.Get("frequency"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	from := q.Get("from")
	if from == "" {
		from = s.today()
	}
	reference, err := schedule.ParseDate(from)
	if err != nil {
		s.writeError(w, &types.ValidationError{Field: "from", Message: "must be YYYY-MM-DD"})
		return
	}

	count := 1
	if raw := q.Get("count"); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil || count < 1 || count > maxOccurrences {
			s.writeError(w, &types.ValidationError{Field: "count", Message: "must be between 1 and " + strconv.Itoa(maxOccurrences)})
			return
		}
	}

	dates, err := schedule.Occurrences(trashDay, frequency, reference, count)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := nextDateResponse{
		TrashDay:  trashDay,
		Frequency: frequency,
		From:      schedule.FormatDate(reference),
		Dates:     make([]string, len(dates)),
	}
	for i, d := range dates {
		resp.Dates[i] = schedule.FormatDate(d)
	}
	resp.NextDate = resp.Dates[0]

	s.jsonResponse(w, http.StatusOK, resp)
}

// handleGeocode handles POST /geocode
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if s.deps.Geocoder == nil {
		s.writeError(w, &types.UnavailableError{Service: "geocoder"})
		return
	}

	var req types.GeocodeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, types.FromValidator(err))
		return
	}

	result, err := s.deps.Geocoder.Geocode(r.Context(), req.Address)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"address":   req.Address,
		"latitude":  result.Latitude,
		"longitude": result.Longitude,
		"cached":    result.Cached,
	})
}

// handleCoverageCheck handles GET /coverage/check?county=&city=&employee_id=
// The employee's areas may instead be given as comma-separated zones and counties.
func (s *Server) handleCoverageCheck(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	county, city := q.Get("county"), q.Get("city")
	if county == "" && city == "" {
		s.writeError(w, &types.ValidationError{Field: "county", Message: "county or city is required"})
		return
	}

	zones, counties := splitList(q.Get("zones")), splitList(q.Get("counties"))
	if employeeID := q.Get("employee_id"); employeeID != "" {
		emp, err := s.deps.Employees.GetEmployee(r.Context(), employeeID)
		if err != nil {
			s.writeError(w, &types.UnavailableError{Service: "employee store", Err: err})
			return
		}
		if emp == nil {
			s.writeError(w, &types.NotFoundError{Entity: "employee", ID: employeeID})
			return
		}
		zones, counties = emp.Zones, emp.Counties
	}

	matching := s.deps.Coverage.ZonesForAddress(county, city)
	if matching == nil {
		matching = []string{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"county":      county,
		"city":        city,
		"in_coverage": s.deps.Coverage.IsInCoverage(county, city, zones, counties),
		"zones":       matching,
	})
}

// handleListZones handles GET /zones
func (s *Server) handleListZones(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{"zones": s.deps.Coverage.Zones()})
}

// handleOptimizeRoute handles POST /route/optimize
func (s *Server) handleOptimizeRoute(w http.ResponseWriter, r *http.Request) {
	var req types.OptimizeRouteRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, types.FromValidator(err))
		return
	}

	ordered := routing.OptimizeRoute(req.Stops)
	s.jsonResponse(w, http.StatusOK, &types.Route{
		Stops:      ordered,
		TotalMiles: routing.TotalMiles(ordered),
	})
}

// splitList parses a comma-separated query value.
func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
