package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amora-realtime/pkg/constants"
)

func TestParseParams_Defaults(t *testing.T) {
	params, err := ParseParams("", "")
	require.NoError(t, err)

	assert.Equal(t, DefaultPage, params.Page)
	assert.Equal(t, constants.DefaultPageSize, params.Limit)
	assert.Equal(t, 0, params.Offset)
}

func TestParseParams_ClampsLimit(t *testing.T) {
	params, err := ParseParams("3", "10000")
	require.NoError(t, err)

	assert.Equal(t, 3, params.Page)
	assert.Equal(t, constants.MaxPageSize, params.Limit)
	assert.Equal(t, 2*constants.MaxPageSize, params.Offset)
}

func TestParseParams_RejectsGarbage(t *testing.T) {
	_, err := ParseParams("abc", "")
	assert.Error(t, err)

	_, err = ParseParams("", "xyz")
	assert.Error(t, err)
}

func TestBuildResponse(t *testing.T) {
	params := &Params{Page: 2, Limit: 20, Offset: 20}
	resp := BuildResponse(params, 45, []string{"a", "b"})

	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, int64(45), resp.Total)
	assert.Equal(t, 3, resp.TotalPages)
}
