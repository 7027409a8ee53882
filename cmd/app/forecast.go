package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"SensorPull/internal/domain/models"
	"SensorPull/internal/services/forecast"
	"SensorPull/pkg/util"
)

type inputSample struct {
	X json.RawMessage `json:"x"`
	Y float64         `json:"y"`
}

// readPoints decodes samples; x is unix milliseconds or an RFC3339 timestamp.
func readPoints(r io.Reader) ([]models.Point, error) {
	var in []inputSample
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}

	points := make([]models.Point, 0, len(in))
	for i, s := range in {
		var x float64
		if err := json.Unmarshal(s.X, &x); err != nil {
			var str string
			if err := json.Unmarshal(s.X, &str); err != nil {
				return nil, fmt.Errorf("sample %d: x must be a number or a string", i)
			}
			if v, err := strconv.ParseFloat(str, 64); err == nil {
				x = v
			} else if t, ok := util.ParseTime(str); ok {
				x = float64(t.UnixMilli())
			} else {
				return nil, fmt.Errorf("sample %d: invalid x %q", i, str)
			}
		}
		points = append(points, models.Point{X: x, Y: s.Y})
	}
	return points, nil
}

func runForecast(r io.Reader, w io.Writer, cfg forecast.Config, pretty bool) error {
	points, err := readPoints(r)
	if err != nil {
		return err
	}

	stats, predicted, err := forecast.NewEngine(cfg).Run(points)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(models.ForecastState{
		Stats:      stats,
		Forecast:   predicted,
		ComputedAt: time.Now().UTC(),
	})
}
