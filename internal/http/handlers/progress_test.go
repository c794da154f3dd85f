package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stenograf/stenograf/internal/progress"
)

func newTestBus(t *testing.T) *progress.Bus {
	t.Helper()
	return progress.NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestListJobs(t *testing.T) {
	bus := newTestBus(t)
	handler := NewProgressHandler(bus, slog.New(slog.NewTextHandler(io.Discard, nil)))

	output, err := handler.ListJobs(context.Background(), &ListJobsInput{})
	require.NoError(t, err)
	assert.Empty(t, output.Body.Jobs)

	bus.StartJob(progress.KindIngest, "trump")
	bus.StartJob(progress.KindSync, "")

	output, err = handler.ListJobs(context.Background(), &ListJobsInput{})
	require.NoError(t, err)
	assert.Len(t, output.Body.Jobs, 2)
}

func TestGetJob(t *testing.T) {
	bus := newTestBus(t)
	handler := NewProgressHandler(bus, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tracker := bus.StartJob(progress.KindIngest, "tweede_kamer")
	tracker.SetTotal(7)

	output, err := handler.GetJob(context.Background(), &GetJobInput{JobID: tracker.JobID()})
	require.NoError(t, err)
	assert.Equal(t, tracker.JobID(), output.Body.JobID)
	assert.Equal(t, 7, output.Body.TotalFiles)
}

func TestGetJobUnknownID(t *testing.T) {
	handler := NewProgressHandler(newTestBus(t), slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := handler.GetJob(context.Background(), &GetJobInput{JobID: "no-such-job"})
	require.Error(t, err)

	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.GetStatus())
}

func TestLatestJobDefaultsToIngest(t *testing.T) {
	bus := newTestBus(t)
	handler := NewProgressHandler(bus, slog.New(slog.NewTextHandler(io.Discard, nil)))

	first := bus.StartJob(progress.KindIngest, "trump")
	first.Complete("done")
	second := bus.StartJob(progress.KindIngest, "trump")
	bus.StartJob(progress.KindSync, "")

	output, err := handler.LatestJob(context.Background(), &LatestJobInput{})
	require.NoError(t, err)
	assert.Equal(t, second.JobID(), output.Body.JobID)

	output, err = handler.LatestJob(context.Background(), &LatestJobInput{Kind: "reindex"})
	assert.Error(t, err, "no reindex job has run")
	_ = output
}
