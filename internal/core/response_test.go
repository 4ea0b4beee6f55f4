package core

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsignup/internal/types"
)

func TestText(t *testing.T) {
	headers := MinimalCORSHeaders()
	resp := Text(http.StatusOK, "Only POST requests are allowed", headers)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Only POST requests are allowed", resp.Body)
	assert.Equal(t, ContentTypeText, resp.Headers["Content-Type"])
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	_, mutated := headers["Content-Type"]
	assert.False(t, mutated, "input headers must not be modified")
}

func TestPrettyJSON_FourSpaceIndent(t *testing.T) {
	resp, err := PrettyJSON(http.StatusOK, map[string]any{"plan": "sub_1"}, FullCORSHeaders())
	require.NoError(t, err)

	assert.Equal(t, "{\n    \"plan\": \"sub_1\"\n}", resp.Body)
	assert.Equal(t, ContentTypeJSON, resp.Headers["Content-Type"])
	assert.Equal(t, "3600", resp.Headers["Access-Control-Max-Age"])
}

func TestPrettyJSON_SerializationError(t *testing.T) {
	_, err := PrettyJSON(http.StatusOK, math.Inf(1), nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeInternalSerialization, types.CodeOf(err))
}

func TestResponse_Write(t *testing.T) {
	rec := httptest.NewRecorder()
	Text(http.StatusBadGateway, ErrorBody, FullCORSHeaders()).Write(rec)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, ErrorBody, rec.Body.String())
	assert.Equal(t, "GET", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, ContentTypeText, rec.Header().Get("Content-Type"))
}

func TestResponse_WriteDefaultsTo200(t *testing.T) {
	rec := httptest.NewRecorder()
	Response{Body: "x"}.Write(rec)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSHeaderSets(t *testing.T) {
	minimal := MinimalCORSHeaders()
	assert.Equal(t, map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type",
	}, minimal)

	full := FullCORSHeaders()
	assert.Len(t, full, 4)
	assert.Equal(t, "GET", full["Access-Control-Allow-Methods"])
	assert.Equal(t, "3600", full["Access-Control-Max-Age"])
}
