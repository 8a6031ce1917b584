package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keysOf returns the top-level JSON keys of a marshaled payload
func keysOf(t *testing.T, data []byte) map[string]json.RawMessage {
	t.Helper()
	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &keys))
	return keys
}

func TestBuildAddPayload(t *testing.T) {
	t.Run("exact field casing", func(t *testing.T) {
		data, err := buildAddPayload([]string{"hello"}, "docs", "", nil)
		require.NoError(t, err)

		keys := keysOf(t, data)
		assert.Contains(t, keys, "data")
		assert.Contains(t, keys, "datasetName")

		// The documented incident: snake_case is silently ignored by the
		// server, so it must never appear in the payload.
		assert.NotContains(t, keys, "dataset_name")
		assert.NotContains(t, keys, "content")

		var decoded struct {
			Data        []string `json:"data"`
			DatasetName string   `json:"datasetName"`
		}
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, []string{"hello"}, decoded.Data)
		assert.Equal(t, "docs", decoded.DatasetName)
	})

	t.Run("optional fields omitted when empty", func(t *testing.T) {
		data, err := buildAddPayload([]string{"x"}, "docs", "", nil)
		require.NoError(t, err)

		keys := keysOf(t, data)
		assert.NotContains(t, keys, "datasetId")
		assert.NotContains(t, keys, "nodeSet")
	})

	t.Run("optional fields present when set", func(t *testing.T) {
		data, err := buildAddPayload([]string{"x"}, "docs", "col-1", []string{"n1"})
		require.NoError(t, err)

		keys := keysOf(t, data)
		assert.Contains(t, keys, "datasetId")
		assert.Contains(t, keys, "nodeSet")
	})

	t.Run("empty content is a contract error", func(t *testing.T) {
		_, err := buildAddPayload(nil, "docs", "", nil)
		require.Error(t, err)
		assert.True(t, IsContractError(err))
	})

	t.Run("empty collection is a contract error", func(t *testing.T) {
		_, err := buildAddPayload([]string{"x"}, "", "", nil)
		require.Error(t, err)
		assert.True(t, IsContractError(err))
	})
}

func TestBuildSearchPayload(t *testing.T) {
	t.Run("exact field casing", func(t *testing.T) {
		data, err := buildSearchPayload("query", "CHUNKS", 5, []string{"docs"})
		require.NoError(t, err)

		keys := keysOf(t, data)
		assert.Contains(t, keys, "query")
		assert.Contains(t, keys, "searchType")
		assert.Contains(t, keys, "topK")
		assert.Contains(t, keys, "datasets")
		assert.NotContains(t, keys, "search_type")
		assert.NotContains(t, keys, "top_k")
	})

	t.Run("validation", func(t *testing.T) {
		_, err := buildSearchPayload("", "CHUNKS", 5, nil)
		assert.True(t, IsContractError(err))

		_, err = buildSearchPayload("q", "", 5, nil)
		assert.True(t, IsContractError(err))

		_, err = buildSearchPayload("q", "CHUNKS", 0, nil)
		assert.True(t, IsContractError(err))
	})
}

func TestBuildProcessPayload(t *testing.T) {
	data, err := buildProcessPayload([]string{"docs"}, true)
	require.NoError(t, err)

	keys := keysOf(t, data)
	assert.Contains(t, keys, "datasets")
	assert.Contains(t, keys, "runInBackground")
	assert.NotContains(t, keys, "run_in_background")

	_, err = buildProcessPayload(nil, false)
	assert.True(t, IsContractError(err))
}

func TestBuildStatusPayload(t *testing.T) {
	data, err := buildStatusPayload([]string{"id-1", "id-2"})
	require.NoError(t, err)

	keys := keysOf(t, data)
	assert.Contains(t, keys, "datasetIds")
	assert.NotContains(t, keys, "dataset_ids")

	_, err = buildStatusPayload(nil)
	assert.True(t, IsContractError(err))
}

func TestMarshalChecked(t *testing.T) {
	// A payload type that loses a required key must fail closed
	_, err := marshalChecked("add", struct {
		Other string `json:"other"`
	}{Other: "x"}, "data")

	require.Error(t, err)
	assert.True(t, IsContractError(err))
	assert.Contains(t, err.Error(), "data")
}
