package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStepOverrides(t *testing.T) {
	overrides, err := parseStepOverrides(`[{"role":"BATTALION","module_id":4,"step":2}]`)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, "BATTALION", overrides[0].Role)
	assert.Equal(t, int64(4), overrides[0].ModuleID)
	assert.Equal(t, 2, overrides[0].Step)
}

func TestParseStepOverridesEmpty(t *testing.T) {
	overrides, err := parseStepOverrides("[]")
	require.NoError(t, err)
	assert.Empty(t, overrides)

	overrides, err = parseStepOverrides("")
	require.NoError(t, err)
	assert.Empty(t, overrides)
}

func TestParseStepOverridesRejectsMalformed(t *testing.T) {
	_, err := parseStepOverrides("{not json")
	assert.Error(t, err)

	// an override without a role or with a zero step cannot be applied
	_, err = parseStepOverrides(`[{"module_id":4,"step":2}]`)
	assert.Error(t, err)
	_, err = parseStepOverrides(`[{"role":"DSP","module_id":4,"step":0}]`)
	assert.Error(t, err)
}

func TestParseIDMap(t *testing.T) {
	m, err := parseIDMap(`{"664":1078,"665":1079}`)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{664: 1078, 665: 1079}, m)

	_, err = parseIDMap(`{"abc":1}`)
	assert.Error(t, err)
}
