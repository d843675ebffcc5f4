package resolver

import (
	"sort"
	"strings"

	"github.com/famomatic/loomdl/internal/types"
)

const transcriptTypename = "VideoTranscriptDetails"

type walkResult struct {
	title      string
	stream     *types.StreamDescriptor
	transcript types.TranscriptLocator
}

// walkState classifies every top-level entry. Later entries overwrite
// earlier ones for each slot.
func walkState(doc *stateDocument) walkResult {
	var res walkResult
	if doc == nil {
		return res
	}
	for _, entry := range doc.entries {
		obj, ok := entry.Value.(map[string]any)
		if !ok {
			continue
		}
		typename := stringField(obj, "__typename")

		if strings.Contains(typename, "Video") {
			if title := firstStringField(obj, "name", "title"); title != "" {
				res.title = title
			}
		}
		if typename == transcriptTypename {
			loc := types.TranscriptLocator{
				TranscriptURL: stringField(obj, "source_url"),
				CaptionsURL:   stringField(obj, "captions_source_url"),
			}
			if !loc.Empty() {
				res.transcript = loc
			}
		}
		if stream := segmentedStream(obj); stream != nil {
			res.stream = stream
		}
	}
	return res
}

// segmentedStream returns the last M3U8-keyed payload in obj, visiting keys
// in sorted order so the result is stable.
func segmentedStream(obj map[string]any) *types.StreamDescriptor {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		if strings.Contains(k, "M3U8") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out *types.StreamDescriptor
	for _, k := range keys {
		payload, ok := obj[k].(map[string]any)
		if !ok {
			continue
		}
		u := stringField(payload, "url")
		if u == "" {
			continue
		}
		out = &types.StreamDescriptor{
			Kind:        types.StreamSegmented,
			URL:         u,
			Credentials: signedCredentials(payload["credentials"]),
		}
	}
	return out
}

func signedCredentials(raw any) *types.SignedCredentials {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	creds := &types.SignedCredentials{
		Policy:    firstStringField(obj, "Policy", "policy"),
		Signature: firstStringField(obj, "Signature", "signature"),
		KeyPairID: firstStringField(obj, "KeyPairId", "keyPairId", "KeyPairID", "key_pair_id"),
	}
	if !creds.Valid() {
		return nil
	}
	return creds
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func firstStringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringField(obj, k); s != "" {
			return s
		}
	}
	return ""
}

// visitStrings calls fn for every string reachable from the state document,
// in document order for top-level entries and sorted key order below that.
func visitStrings(doc *stateDocument, fn func(string) bool) {
	if doc == nil {
		return
	}
	for _, entry := range doc.entries {
		if !visitValue(entry.Value, fn) {
			return
		}
	}
}

func visitValue(v any, fn func(string) bool) bool {
	switch t := v.(type) {
	case string:
		return fn(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !visitValue(t[k], fn) {
				return false
			}
		}
	case []any:
		for _, item := range t {
			if !visitValue(item, fn) {
				return false
			}
		}
	}
	return true
}
