package server

import "github.com/agbru/mandelarea/internal/sampling"

// Response is the JSON body of a successful estimate.
type Response struct {
	Method sampling.Method `json:"method"`
	// Size is the point count (pure, LHS) or grid side (ortho) requested.
	Size       int     `json:"size"`
	NumSamples int     `json:"num_samples"`
	MaxIter    int     `json:"max_iter"`
	Members    int     `json:"members"`
	Area       float64 `json:"area"`
	// Rounded is the area rounded to six decimals for display.
	Rounded  float64 `json:"area_rounded"`
	Duration string  `json:"duration"`
	Error    string  `json:"error,omitempty"`
}

// ErrorResponse represents the standardized JSON response for an API error.
type ErrorResponse struct {
	// Error is the short error code or status text.
	Error string `json:"error"`
	// Message is a descriptive error message.
	Message string `json:"message,omitempty"`
}

// EstimateParseError represents a parameter parsing error with HTTP status.
type EstimateParseError struct {
	Message    string
	StatusCode int
}

// Error implements the error interface.
func (e EstimateParseError) Error() string {
	return e.Message
}
