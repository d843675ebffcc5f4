package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePhrases(t *testing.T) {
	payload := []byte(`{"language":"en","phrases":[{"value":"Hello there.","ts":0.5},{"value":"Second line","ts":2.25,"duration":1.5},{"value":"  "}]}`)

	doc, ok := Normalize(payload)
	require.True(t, ok)
	require.Equal(t, "Hello there. Second line", doc.PlainText)
	require.Equal(t, []Segment{
		{Text: "Hello there.", Start: 0.5, End: 2.25},
		{Text: "Second line", Start: 2.25, End: 3.75},
	}, doc.Sentences)
	require.Nil(t, doc.Words)
	require.JSONEq(t, string(payload), string(doc.Raw))
}

func TestNormalizeWordsOnly(t *testing.T) {
	payload := []byte(`{"words":[{"text":"one","start":0,"end":0.4},{"text":"two","start":0.4,"end":0.9}]}`)

	doc, ok := Normalize(payload)
	require.True(t, ok)
	require.Equal(t, "one two", doc.PlainText)
	require.Len(t, doc.Words, 2)
	require.Empty(t, doc.Sentences)
}

func TestRenderFallsBackToRawPayload(t *testing.T) {
	for _, payload := range [][]byte{
		[]byte(`{"status":"processing"}`),
		[]byte("WEBVTT\n\n00:00.000 --> 00:01.000\nhi\n"),
	} {
		out, err := Render(payload)
		require.NoError(t, err)
		require.Equal(t, payload, out)
	}
}

func TestRenderNormalizedShape(t *testing.T) {
	out, err := Render([]byte(`{"sentences":["a","b"]}`))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, "a b", decoded["plainText"])
	require.Contains(t, decoded, "sentences")
	require.Contains(t, decoded, "words")
	require.Contains(t, decoded, "raw")
}
