package models

// Requests for chart HTTP endpoints. Defined in domain for consistency and reuse.

type ChartRequest struct {
	ID int64 `param:"id" json:"id" validate:"required,gt=0"`
}

type ForecastRequest struct {
	ID       int64 `param:"id" json:"id" validate:"required,gt=0"`
	SourceID int64 `query:"source" json:"source" validate:"required,gt=0"`
}

type StreamRequest struct {
	ID     int64 `param:"id" json:"id" validate:"required,gt=0"`
	Buffer int   `query:"buffer" json:"buffer" default:"64" validate:"gte=1,lte=4096"`
}
