package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveTarget_DecodeDefaultTable(t *testing.T) {
	var req SimulationRequest
	require.NoError(t, json.Unmarshal([]byte(`{"save":{"database":"sims"}}`), &req))
	require.NotNil(t, req.Save)
	assert.Equal(t, "sims", req.Save.Database)
	assert.Equal(t, "STOCK_PRICE_SIMULATIONS", req.Save.Table)

	require.NoError(t, json.Unmarshal([]byte(`{"save":{"database":"sims","table":"OUT"}}`), &req))
	assert.Equal(t, "OUT", req.Save.Table)

	req = SimulationRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"n_days":5}`), &req))
	assert.Nil(t, req.Save)
}
