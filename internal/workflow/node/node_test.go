package node

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

type scorePayload struct {
	BinaryScore *string `json:"binary_score"`
}

func TestDecodeStrictJSON(t *testing.T) {
	var p scorePayload
	require.NoError(t, DecodeStrictJSON(`{"binary_score":"yes"}`, &p))
	require.NotNil(t, p.BinaryScore)
	assert.Equal(t, "yes", *p.BinaryScore)

	p = scorePayload{}
	require.NoError(t, DecodeStrictJSON("```json\n{\"binary_score\": \"no\"}\n```", &p))
	assert.Equal(t, "no", *p.BinaryScore)
}

func TestDecodeStrictJSONRejects(t *testing.T) {
	cases := map[string]string{
		"empty":          "  ",
		"prose":          "The document is relevant.",
		"unknown field":  `{"binary_score":"yes","reason":"x"}`,
		"trailing":       `{"binary_score":"yes"} extra`,
		"array":          `["yes"]`,
		"wrong type":     `{"binary_score":true}`,
		"leading prose":  `Sure: {"binary_score":"yes"}`,
		"two objects":    `{"binary_score":"yes"}{"binary_score":"no"}`,
		"truncated json": `{"binary_score":`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			var p scorePayload
			assert.Error(t, DecodeStrictJSON(in, &p))
		})
	}
	var p scorePayload
	assert.True(t, errors.Is(DecodeStrictJSON("", &p), ErrEmptyOutput))
}

func TestFormatDocuments(t *testing.T) {
	docs := []wfmodel.Passage{
		wfmodel.NewPassage("1", " agents plan ", map[string]any{wfmodel.MetaSource: "https://a", wfmodel.MetaTitle: "Agents"}),
		wfmodel.NewPassage("2", "web text", map[string]any{wfmodel.MetaSource: wfmodel.WebSearchSource}),
	}
	out := FormatDocuments(docs)
	assert.Equal(t, "Source: https://a\nTitle: Agents\n\nagents plan"+PassageDelimiter+"Source: web_search\n\nweb text", out)
	assert.Equal(t, "", FormatDocuments(nil))
}

func TestIsResponseFormatUnsupportedError(t *testing.T) {
	assert.True(t, IsResponseFormatUnsupportedError(errors.New("400: response_format is not supported")))
	assert.True(t, IsResponseFormatUnsupportedError(errors.New("Unknown parameter: 'response'")))
	assert.False(t, IsResponseFormatUnsupportedError(errors.New("connection refused")))
	assert.False(t, IsResponseFormatUnsupportedError(nil))
}

func TestTruncateByRunes(t *testing.T) {
	assert.Equal(t, "héll", TruncateByRunes("héllo", 4))
	assert.Equal(t, "hi", TruncateByRunes("hi", 10))
	assert.Equal(t, "", TruncateByRunes("hi", 0))
}
