// Package transcript normalizes transcript payloads into a flat
// {plainText, sentences, words, raw} document.
package transcript

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	sentencePaths = []string{"sentences", "phrases", "transcript.sentences", "transcript.phrases", "data.phrases"}
	wordPaths     = []string{"words", "transcript.words", "data.words"}
)

// Segment is one timed span of text. Times are in seconds.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Document is the normalized transcript.
type Document struct {
	PlainText string          `json:"plainText"`
	Sentences []Segment       `json:"sentences"`
	Words     []Segment       `json:"words"`
	Raw       json.RawMessage `json:"raw"`
}

// Normalize extracts sentence and word arrays from payload. It reports false
// when payload is not JSON or exposes neither array.
func Normalize(payload []byte) (*Document, bool) {
	if !gjson.ValidBytes(payload) {
		return nil, false
	}
	root := gjson.ParseBytes(payload)
	sentences, foundSentences := segmentsAt(root, sentencePaths)
	words, foundWords := segmentsAt(root, wordPaths)
	if !foundSentences && !foundWords {
		return nil, false
	}

	doc := &Document{
		Sentences: sentences,
		Words:     words,
		Raw:       json.RawMessage(payload),
	}
	source := sentences
	if len(source) == 0 {
		source = words
	}
	texts := make([]string, 0, len(source))
	for _, s := range source {
		texts = append(texts, s.Text)
	}
	doc.PlainText = strings.Join(texts, " ")
	return doc, true
}

// Render returns the normalized document as indented JSON, or payload
// unchanged when it cannot be normalized.
func Render(payload []byte) ([]byte, error) {
	doc, ok := Normalize(payload)
	if !ok {
		return payload, nil
	}
	return json.MarshalIndent(doc, "", "  ")
}

func segmentsAt(root gjson.Result, paths []string) ([]Segment, bool) {
	for _, p := range paths {
		arr := root.Get(p)
		if !arr.IsArray() {
			continue
		}
		out := make([]Segment, 0, len(arr.Array()))
		arr.ForEach(func(_, item gjson.Result) bool {
			if seg, ok := segmentOf(item); ok {
				out = append(out, seg)
			}
			return true
		})
		fillEnds(out)
		return out, true
	}
	return nil, false
}

func segmentOf(item gjson.Result) (Segment, bool) {
	if item.Type == gjson.String {
		text := strings.TrimSpace(item.String())
		return Segment{Text: text}, text != ""
	}
	if !item.IsObject() {
		return Segment{}, false
	}
	text := strings.TrimSpace(firstOf(item, "text", "value", "sentence", "word").String())
	if text == "" {
		return Segment{}, false
	}
	seg := Segment{Text: text}
	seg.Start = firstOf(item, "start", "ts", "startTime", "start_time").Float()
	if end := firstOf(item, "end", "endTime", "end_time"); end.Exists() {
		seg.End = end.Float()
	} else if d := firstOf(item, "duration", "dur"); d.Exists() {
		seg.End = seg.Start + d.Float()
	}
	return seg, true
}

// fillEnds closes open segments at the next segment's start.
func fillEnds(segs []Segment) {
	for i := range segs {
		if segs[i].End > segs[i].Start {
			continue
		}
		if i+1 < len(segs) && segs[i+1].Start > segs[i].Start {
			segs[i].End = segs[i+1].Start
		}
	}
}

func firstOf(item gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := item.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
