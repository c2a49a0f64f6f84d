// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package dimension_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/pkg/errutil"
)

func TestParse(t *testing.T) {
	tests := []struct {
		token string
		want  dimension.Dimension
	}{
		{"world", dimension.Overworld},
		{"overworld", dimension.Overworld},
		{"NORMAL", dimension.Overworld},
		{"Nether", dimension.Nether},
		{" nether ", dimension.Nether},
		{"end", dimension.End},
		{"the_end", dimension.End},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := dimension.Parse(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Unknown(t *testing.T) {
	for _, token := range []string{"", "aether", "nether2"} {
		_, err := dimension.Parse(token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, dimension.CodeUnknownDimension)
	}
}

func TestDimension_Names(t *testing.T) {
	assert.Equal(t, "overworld", dimension.Overworld.String())
	assert.Equal(t, "End", dimension.End.DisplayName())
	assert.Equal(t, "unknown", dimension.Count.String())
	assert.Equal(t, "Unknown", dimension.Dimension(42).DisplayName())
	assert.False(t, dimension.Count.Valid())
	assert.Len(t, dimension.All(), int(dimension.Count))
}

func TestDimension_TextRoundTripAsMapKey(t *testing.T) {
	in := map[dimension.Dimension]bool{dimension.Nether: false, dimension.End: true}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nether":false,"end":true}`, string(data))

	var out map[dimension.Dimension]bool
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Open", dimension.StatusText(true))
	assert.Equal(t, "Closed", dimension.StatusText(false))
}
