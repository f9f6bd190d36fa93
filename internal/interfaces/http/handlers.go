package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/vedicwatch/internal/application"
	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/dasha"
	"github.com/sawpanic/vedicwatch/internal/ephemeris"
	"github.com/sawpanic/vedicwatch/internal/events"
	"github.com/sawpanic/vedicwatch/internal/infrastructure/db"
	"github.com/sawpanic/vedicwatch/internal/persistence"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

// writeJSON writes JSON response with proper error handling
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes standardized error response
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ephemeris.ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: RequestID(r.Context()),
	})
}

// errorStatus maps service errors onto a status and error code
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ephemeris.ErrEphemerisUnavailable):
		return http.StatusUnprocessableEntity, ephemeris.CodeUnavailable
	case errors.Is(err, dasha.ErrNoActivePeriod):
		return http.StatusNotFound, ephemeris.CodeNoActive
	case errors.Is(err, application.ErrNoAnchor):
		return http.StatusNotFound, ephemeris.CodeNotFound
	case errors.Is(err, db.ErrJournalDisabled):
		return http.StatusServiceUnavailable, ephemeris.CodeNoJournal
	case errors.Is(err, application.ErrInvalidRequest),
		errors.Is(err, events.ErrInvalidWindow),
		errors.Is(err, dasha.ErrInvalidDepth),
		errors.Is(err, zodiac.ErrInvalidLongitude):
		return http.StatusBadRequest, ephemeris.CodeBadRequest
	default:
		return http.StatusInternalServerError, ephemeris.CodeInternalError
	}
}

// fail writes err with its mapped status
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeError(w, r, status, code, err.Error())
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", application.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// notFound handles 404 responses
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, ephemeris.CodeNotFound, "the requested endpoint does not exist")
}

// instant parses ?at= as RFC3339; empty or "now" is the current time
func (s *Server) instant(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("at"))
	if raw == "" || strings.EqualFold(raw, "now") {
		return s.svc.Now(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, badRequest("at must be RFC3339 or now, got %q", raw)
	}
	return t.UTC(), nil
}

// site resolves ?lat&lon, then ?location, then the configured observer
func (s *Server) site(r *http.Request) (application.Site, error) {
	q := r.URL.Query()
	latRaw, lonRaw := q.Get("lat"), q.Get("lon")

	switch {
	case latRaw != "" || lonRaw != "":
		if latRaw == "" || lonRaw == "" {
			return application.Site{}, badRequest("lat and lon must be given together")
		}
		lat, err := parseFloat("lat", latRaw)
		if err != nil {
			return application.Site{}, err
		}
		lon, err := parseFloat("lon", lonRaw)
		if err != nil {
			return application.Site{}, err
		}
		site := application.Site{Name: "custom", Lat: lat, Lon: lon}
		return site, site.Validate()
	case q.Get("location") != "":
		name := strings.ToLower(q.Get("location"))
		loc, ok := s.config.Locations[name]
		if !ok {
			return application.Site{}, badRequest("unknown location %q", q.Get("location"))
		}
		if loc.Name == "" {
			loc.Name = name
		}
		return application.Site{Name: loc.Name, Lat: loc.Latitude, Lon: loc.Longitude}, nil
	default:
		return s.svc.Settings().Site, nil
	}
}

func parseFloat(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, badRequest("%s must be a finite number, got %q", name, raw)
	}
	return v, nil
}

func parseInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("%s must be a non-negative integer, got %q", name, raw)
	}
	return v, nil
}

func parseBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// handleSnapshot handles GET /v1/snapshot
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	t, err := s.instant(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	site, err := s.site(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	snap, err := s.svc.Snapshot(r.Context(), t, site)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handlePositions handles GET /v1/positions
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	t, err := s.instant(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	ps, err := s.svc.Positions(r.Context(), t)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PositionsResponse{
		Instant:   t,
		Ayanamsa:  ps.Ayanamsa(),
		Positions: application.ViewPositions(ps),
		Groups:    ps.Groups(),
	})
}

// handleChart handles GET /v1/chart/{varga}
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	varga, err := zodiac.ParseVarga(mux.Vars(r)["varga"])
	if err != nil {
		fail(w, r, badRequest("%v", err))
		return
	}
	t, err := s.instant(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	site, err := s.site(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	c, err := s.svc.Chart(r.Context(), t, site, varga)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChartResponse{Instant: t, Site: site, Chart: c, Houses: houses(c)})
}

// handleStrength handles GET /v1/strength
func (s *Server) handleStrength(w http.ResponseWriter, r *http.Request) {
	t, err := s.instant(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	site, err := s.site(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	st, err := s.svc.Strength(r.Context(), t, site)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StrengthResponse{Instant: t, Site: site, Strength: st})
}

// handleEvents handles GET /v1/events. Scans are read-only here; recording
// is a CLI concern.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := application.EventsRequest{Kind: q.Get("kind")}

	if raw := q.Get("start"); raw != "" {
		start, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			fail(w, r, badRequest("start must be RFC3339, got %q", raw))
			return
		}
		req.Start = start
	}
	if raw := q.Get("days"); raw != "" {
		days, err := parseFloat("days", raw)
		if err != nil {
			fail(w, r, err)
			return
		}
		if days <= 0 || days > s.config.EventsMaxDays {
			fail(w, r, badRequest("days must be in (0, %g], got %g", s.config.EventsMaxDays, days))
			return
		}
		req.Days = days
	}
	step, err := parseInt(r, "step")
	if err != nil {
		fail(w, r, err)
		return
	}
	req.StepMinutes = step

	res, err := s.svc.Events(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleEventsJournal handles GET /v1/events/journal, reading back what
// earlier recorded scans stored
func (s *Server) handleEventsJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var tr persistence.TimeRange
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &tr.From}, {"to", &tr.To}} {
		raw := q.Get(p.name)
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			fail(w, r, badRequest("%s must be RFC3339, got %q", p.name, raw))
			return
		}
		*p.dst = t
	}
	limit, err := parseInt(r, "limit")
	if err != nil {
		fail(w, r, err)
		return
	}

	records, err := s.svc.JournalHistory(r.Context(), tr, q.Get("kind"), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, JournalResponse{From: tr.From.UTC(), To: tr.To.UTC(), Kind: q.Get("kind"), Events: records})
}

// handleDashaAnchor handles GET /v1/dasha/anchor. Without ?at the most
// recently journaled anchor is returned.
func (s *Server) handleDashaAnchor(w http.ResponseWriter, r *http.Request) {
	var at time.Time
	if raw := r.URL.Query().Get("at"); raw != "" {
		t, err := s.instant(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		at = t
	}
	rec, err := s.svc.LastAnchor(r.Context(), at)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDasha handles GET /v1/dasha
func (s *Server) handleDasha(w http.ResponseWriter, r *http.Request) {
	t, err := s.instant(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	depth, err := parseInt(r, "depth")
	if err != nil {
		fail(w, r, err)
		return
	}
	if depth > s.config.MaxDashaDepth {
		fail(w, r, badRequest("depth %d exceeds the server limit %d", depth, s.config.MaxDashaDepth))
		return
	}
	res, err := s.svc.Dasha(r.Context(), t, depth, parseBool(r, "tree"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleEphemerisPosition serves the configured adapter over the same
// protocol the remote provider speaks
func (s *Server) handleEphemerisPosition(w http.ResponseWriter, r *http.Request) {
	t, err := s.instant(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	body, err := catalog.ParseBody(r.URL.Query().Get("body"))
	if err != nil {
		fail(w, r, badRequest("%v", err))
		return
	}
	if body.Derived() {
		fail(w, r, badRequest("%s is derived from %s and cannot be queried", body, catalog.Rahu))
		return
	}

	mode := r.URL.Query().Get("mode")
	var raw ephemeris.Raw
	switch mode {
	case "", ephemeris.ModeApparent:
		mode = ephemeris.ModeApparent
		raw, err = s.svc.Adapter().RawPosition(r.Context(), t, body)
	case ephemeris.ModeTrue:
		raw, err = s.svc.Adapter().TruePosition(r.Context(), t, body)
	default:
		fail(w, r, badRequest("mode must be %s or %s", ephemeris.ModeApparent, ephemeris.ModeTrue))
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ephemeris.PositionResponse{
		At:        t,
		Body:      body.String(),
		Mode:      mode,
		Longitude: raw.Longitude,
		Speed:     raw.Speed,
	})
}

// handleEphemerisAyanamsa handles GET /v1/ephemeris/ayanamsa
func (s *Server) handleEphemerisAyanamsa(w http.ResponseWriter, r *http.Request) {
	t, err := s.instant(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	v, err := s.svc.Adapter().Ayanamsa(r.Context(), t)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ephemeris.AyanamsaResponse{At: t, Mode: "lahiri", Ayanamsa: v})
}

// handleEphemerisAscendant handles GET /v1/ephemeris/ascendant
func (s *Server) handleEphemerisAscendant(w http.ResponseWriter, r *http.Request) {
	t, err := s.instant(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	site, err := s.site(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	asc, err := s.svc.Adapter().Ascendant(r.Context(), t, site.Lat, site.Lon)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ephemeris.AscendantResponse{
		At:        t,
		Latitude:  site.Lat,
		Longitude: site.Lon,
		Ascendant: asc,
	})
}
