//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
)

func TestFormatAnalysesList_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatAnalysesList(&buf, nil)

	output := buf.String()
	// Header prints even with no rows.
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "COUNTY")
	assert.Contains(t, output, "STATUS")
}

func TestFormatAnalysesList_Rows(t *testing.T) {
	created := time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC)
	analyses := []model.Analysis{
		{
			ID:            "2f1c9a77-0000-0000-0000-000000000000",
			County:        "King County",
			TravelType:    model.TravelDriving,
			TravelMinutes: 15,
			Status:        model.AnalysisStatusComplete,
			Result:        &model.CoverageSummary{WithinShare: 0.753},
			CreatedAt:     created,
		},
		{
			ID:            "8b2d4e11-0000-0000-0000-000000000000",
			County:        "Pierce County",
			TravelType:    model.TravelWalking,
			TravelMinutes: 30,
			Status:        model.AnalysisStatusRunning,
			CreatedAt:     created,
		},
	}

	var buf bytes.Buffer
	formatAnalysesList(&buf, analyses)

	output := buf.String()
	assert.Contains(t, output, "2f1c9a77")
	assert.NotContains(t, output, "2f1c9a77-0000")
	assert.Contains(t, output, "King County")
	assert.Contains(t, output, "15 min driving")
	assert.Contains(t, output, "75.3%")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2026-08-15 10:30")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "2f1c9a77", truncateID("2f1c9a77-1234-5678"))
	assert.Equal(t, "short", truncateID("short"))
}
