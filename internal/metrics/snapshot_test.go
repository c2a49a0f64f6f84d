// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package metrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/metrics"
)

func TestSnapshot_AddAndSub(t *testing.T) {
	steve := metrics.ActorKey{Actor: "steve", Dimension: dimension.Nether}
	alex := metrics.ActorKey{Actor: "alex", Dimension: dimension.End}

	base := metrics.NewSnapshot(epoch)
	base.Dimensions[dimension.Nether] = metrics.DimensionStats{Opens: 1, Uptime: time.Minute}
	base.Actors[steve] = metrics.ActorStats{Attempts: 2}

	current := metrics.NewSnapshot(epoch.Add(time.Hour))
	current.Dimensions[dimension.Nether] = metrics.DimensionStats{Opens: 3, Closes: 1, Uptime: 3 * time.Minute}
	current.Dimensions[dimension.End] = metrics.DimensionStats{}
	current.Actors[steve] = metrics.ActorStats{Attempts: 2}
	current.Actors[alex] = metrics.ActorStats{Attempts: 1, Denied: 1}

	delta := current.Sub(base)
	assert.Equal(t, epoch.Add(time.Hour), delta.TakenAt)
	assert.Equal(t, map[dimension.Dimension]metrics.DimensionStats{
		dimension.Nether: {Opens: 2, Closes: 1, Uptime: 2 * time.Minute},
	}, delta.Dimensions, "unchanged dimensions are dropped")
	assert.Equal(t, map[metrics.ActorKey]metrics.ActorStats{
		alex: {Attempts: 1, Denied: 1},
	}, delta.Actors, "unchanged actors are dropped")

	sum := base.Add(delta)
	assert.Equal(t, current.Dimensions[dimension.Nether], sum.Dimensions[dimension.Nether])
	assert.Equal(t, current.Actors[alex], sum.Actors[alex])
	assert.Equal(t, current.Actors[steve], sum.Actors[steve])
	assert.Equal(t, metrics.ActorStats{Attempts: 2}, base.Actors[steve], "Add does not mutate its receiver")
}

func TestSnapshot_SubAfterReset(t *testing.T) {
	key := metrics.ActorKey{Actor: "steve", Dimension: dimension.End}
	base := metrics.NewSnapshot(epoch)
	base.Actors[key] = metrics.ActorStats{Attempts: 5}
	current := metrics.NewSnapshot(epoch)
	current.Actors[key] = metrics.ActorStats{Attempts: 2}

	assert.Equal(t, int64(2), current.Sub(base).Actors[key].Attempts)
}

func TestSnapshot_IsZero(t *testing.T) {
	s := metrics.NewSnapshot(epoch)
	assert.True(t, s.IsZero())
	s.Dimensions[dimension.End] = metrics.DimensionStats{}
	assert.True(t, s.IsZero())
	s.Actors[metrics.ActorKey{Actor: "steve"}] = metrics.ActorStats{Denied: 1}
	assert.False(t, s.IsZero())
}
