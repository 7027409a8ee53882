package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"SensorPull/internal/domain/models"
	"SensorPull/internal/services/forecast"
)

func TestReadPointsMixedX(t *testing.T) {
	in := `[{"x":1000,"y":1},{"x":"2000","y":2},{"x":"1970-01-01T00:00:03Z","y":3}]`
	points, err := readPoints(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []float64{1000, 2000, 3000}
	for i, p := range points {
		if p.X != want[i] || p.Y != float64(i+1) {
			t.Fatalf("point %d = %+v", i, p)
		}
	}

	if _, err := readPoints(strings.NewReader(`[{"x":true,"y":1}]`)); err == nil {
		t.Fatalf("expected error for boolean x")
	}
}

func TestRunForecastPrintsState(t *testing.T) {
	var in strings.Builder
	in.WriteString("[")
	for i := 0; i < 30; i++ {
		if i > 0 {
			in.WriteString(",")
		}
		in.WriteString(`{"x":` + itoa(i*100) + `,"y":` + itoa(i%5) + `}`)
	}
	in.WriteString("]")

	var out bytes.Buffer
	if err := runForecast(strings.NewReader(in.String()), &out, forecast.DefaultConfig(), false); err != nil {
		t.Fatalf("run: %v", err)
	}
	var state models.ForecastState
	if err := json.Unmarshal(out.Bytes(), &state); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(state.Forecast) != 15 || state.Stats.Count != 30 {
		t.Fatalf("forecast=%d count=%d", len(state.Forecast), state.Stats.Count)
	}
	if state.Forecast[0].X != 3000 {
		t.Fatalf("first forecast x = %v, want 3000", state.Forecast[0].X)
	}
}

func TestRunForecastTooFewSamples(t *testing.T) {
	err := runForecast(strings.NewReader(`[{"x":0,"y":1},{"x":1,"y":2}]`), &bytes.Buffer{}, forecast.DefaultConfig(), false)
	if !errors.Is(err, forecast.ErrNotEnoughSamples) {
		t.Fatalf("err = %v", err)
	}
}

func itoa(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}
