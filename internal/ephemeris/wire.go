package ephemeris

import "time"

// Query modes accepted by the ephemeris service position endpoint
const (
	ModeApparent = "apparent"
	ModeTrue     = "true"
)

// PositionResponse is the body returned by GET /v1/ephemeris/position
type PositionResponse struct {
	At        time.Time `json:"at"`
	Body      string    `json:"body"`
	Mode      string    `json:"mode"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`
}

// AyanamsaResponse is the body returned by GET /v1/ephemeris/ayanamsa
type AyanamsaResponse struct {
	At       time.Time `json:"at"`
	Mode     string    `json:"mode"`
	Ayanamsa float64   `json:"ayanamsa"`
}

// AscendantResponse is the body returned by GET /v1/ephemeris/ascendant
type AscendantResponse struct {
	At        time.Time `json:"at"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Ascendant float64   `json:"ascendant"`
}

// ErrorResponse is returned with any non-2xx status
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes carried in ErrorResponse.Code
const (
	CodeUnavailable   = "ephemeris_unavailable"
	CodeBadRequest    = "bad_request"
	CodeNotFound      = "not_found"
	CodeNoActive      = "no_active_period"
	CodeNoJournal     = "journal_disabled"
	CodeInternalError = "internal_error"
)
