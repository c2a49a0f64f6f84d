// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/dimensiongate/internal/clock"
	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/state"
)

func TestSyncer_ReloadsOnInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	backend := &recordingBackend{}
	adopted := make(chan dimension.Dimension, 1)
	daemon := state.NewStore(backend, state.WithExternalHook(func(d dimension.Dimension, _ bool) {
		adopted <- d
	}))
	require.NoError(t, daemon.Load(ctx, nil))

	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	syncer := state.NewSyncer(daemon, state.SyncerConfig{Clock: clk})
	syncer.Start()
	defer syncer.Close()

	cli := state.NewStore(backend)
	require.NoError(t, cli.Load(ctx, nil))
	require.True(t, cli.SetOpen(ctx, dimension.End, false))

	clk.Advance(state.DefaultSyncInterval)
	select {
	case d := <-adopted:
		assert.Equal(t, dimension.End, d)
	case <-time.After(5 * time.Second):
		t.Fatal("syncer did not adopt the external change")
	}
	assert.False(t, daemon.IsOpen(dimension.End))
}

func TestSyncer_CloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	syncer := state.NewSyncer(state.NewStore(nil), state.SyncerConfig{Interval: time.Hour})
	syncer.Start()
	syncer.Start()

	syncer.Close()
	syncer.Close()
}

func TestSyncer_CloseWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	state.NewSyncer(state.NewStore(nil), state.SyncerConfig{}).Close()
}
