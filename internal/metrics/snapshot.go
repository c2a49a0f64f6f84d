// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package metrics

import (
	"time"

	"github.com/holomush/dimensiongate/internal/dimension"
)

// NewSnapshot returns an empty snapshot taken at t.
func NewSnapshot(t time.Time) Snapshot {
	return Snapshot{
		TakenAt:    t,
		Dimensions: make(map[dimension.Dimension]DimensionStats, dimension.Count),
		Actors:     make(map[ActorKey]ActorStats),
	}
}

// IsZero reports whether every counter in s is zero.
func (s Snapshot) IsZero() bool {
	for _, ds := range s.Dimensions {
		if ds != (DimensionStats{}) {
			return false
		}
	}
	for _, as := range s.Actors {
		if as != (ActorStats{}) {
			return false
		}
	}
	return true
}

// Add returns s plus other. TakenAt is taken from s.
func (s Snapshot) Add(other Snapshot) Snapshot {
	out := s.Clone()
	for d, ds := range other.Dimensions {
		cur := out.Dimensions[d]
		out.Dimensions[d] = DimensionStats{
			Opens:  cur.Opens + ds.Opens,
			Closes: cur.Closes + ds.Closes,
			Uptime: cur.Uptime + ds.Uptime,
		}
	}
	for k, as := range other.Actors {
		cur := out.Actors[k]
		out.Actors[k] = ActorStats{
			Attempts: cur.Attempts + as.Attempts,
			Denied:   cur.Denied + as.Denied,
		}
	}
	return out
}

// Sub returns the growth of s since base, dropping zero entries. Counters
// that shrank (after a Reset) count from zero.
func (s Snapshot) Sub(base Snapshot) Snapshot {
	out := NewSnapshot(s.TakenAt)
	for d, ds := range s.Dimensions {
		prev := base.Dimensions[d]
		diff := DimensionStats{
			Opens:  growth(ds.Opens, prev.Opens),
			Closes: growth(ds.Closes, prev.Closes),
			Uptime: time.Duration(growth(int64(ds.Uptime), int64(prev.Uptime))),
		}
		if diff != (DimensionStats{}) {
			out.Dimensions[d] = diff
		}
	}
	for k, as := range s.Actors {
		prev := base.Actors[k]
		diff := ActorStats{
			Attempts: growth(as.Attempts, prev.Attempts),
			Denied:   growth(as.Denied, prev.Denied),
		}
		if diff != (ActorStats{}) {
			out.Actors[k] = diff
		}
	}
	return out
}

func growth(cur, prev int64) int64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := NewSnapshot(s.TakenAt)
	for d, ds := range s.Dimensions {
		out.Dimensions[d] = ds
	}
	for k, as := range s.Actors {
		out.Actors[k] = as
	}
	return out
}
