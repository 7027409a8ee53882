package http

import "time"

// Envelope wraps every JSON body the API writes.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Limit   string `json:"limit,omitempty"`
}

// Page is a list payload.
type Page struct {
	Rows  any   `json:"rows"`
	Total int64 `json:"total"`
}

// TimeRange is a half-open [From, To) query window.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Valid reports whether From precedes To.
func (r TimeRange) Valid() bool { return r.From.Before(r.To) }
