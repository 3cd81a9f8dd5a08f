package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reclaim/config"
	"reclaim/infra/journal"
)

func TestServeRunsCyclesUntilCancelled(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.CollectInterval = 5 * time.Millisecond
	cfg.JournalDir = t.TempDir()
	cfg.Workers = 2
	cfg.WorkerDelay = time.Millisecond
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, serve(ctx, cfg))

	j, err := journal.Open(cfg.Journal())
	require.NoError(t, err)
	defer j.Close()
	last, err := j.Last()
	require.NoError(t, err)
	assert.Positive(t, last)
}
