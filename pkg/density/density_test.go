package density

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodmap/pkg/model"
)

func TestResolutionForZoom(t *testing.T) {
	tests := []struct {
		zoom float64
		want int
	}{
		{0, 1},
		{2, 2},
		{8, 5},
		{12, 7},
		{20, 10},
		{30, 10},
	}
	for _, tc := range tests {
		if got := ResolutionForZoom(tc.zoom); got != tc.want {
			t.Errorf("ResolutionForZoom(%v) = %d, want %d", tc.zoom, got, tc.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	reports := []model.Report{
		{ID: "a", Lat: 16.05, Lon: 108.2, HasCoords: true, CreatedAt: time.Unix(0, 0)},
		{ID: "b", Lat: 16.0501, Lon: 108.2001, HasCoords: true, CreatedAt: time.Unix(0, 0)},
		{ID: "c", Lat: 21.0, Lon: 105.8, HasCoords: true, CreatedAt: time.Unix(0, 0)},
		{ID: "d", Category: model.CategorySOS, CreatedAt: time.Unix(0, 0)},
	}
	flags := map[string]model.UrgencyFlags{
		"a": {IsUrgent: true, IsAlertOrSOS: true},
	}

	// Resolution 5 cells are ~8 km across: a and b share one, c is far
	// away in another, d has no coordinates and is skipped.
	cells, err := Summarize(reports, flags, 5)
	require.NoError(t, err)
	require.Len(t, cells, 2)

	total, urgent := 0, 0
	for _, c := range cells {
		total += c.Count
		urgent += c.UrgentCount
		assert.NotEmpty(t, c.ID)
	}
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, urgent)
	assert.Less(t, cells[0].ID, cells[1].ID, "cells are sorted by id")
}

func TestSummarizeNilFlags(t *testing.T) {
	reports := []model.Report{
		{ID: "a", Lat: 16.05, Lon: 108.2, HasCoords: true, CreatedAt: time.Unix(0, 0)},
	}
	cells, err := Summarize(reports, nil, 5)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, 1, cells[0].Count)
	assert.Equal(t, 0, cells[0].UrgentCount)
	assert.InDelta(t, 16.05, cells[0].Lat, 0.1)
	assert.InDelta(t, 108.2, cells[0].Lon, 0.1)
}

func TestSummarizeEmpty(t *testing.T) {
	cells, err := Summarize(nil, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, cells)
}
