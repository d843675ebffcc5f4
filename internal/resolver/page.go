package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"

	"github.com/famomatic/loomdl/internal/types"
)

const stateMarker = "__APOLLO_STATE__"

var (
	errStateMissing  = errors.New("embedded state document not found")
	stateAssignRegex = regexp.MustCompile(`__APOLLO_STATE__\s*=\s*`)
	literalEvalLimit = 2 * time.Second
)

// sharePage is one fetched share page with its decoded state document.
type sharePage struct {
	id     types.AssetID
	markup string
	doc    *goquery.Document
	state  *stateDocument
}

// stateEntry is one top-level key of the state document.
type stateEntry struct {
	Key   string
	Value any
}

// stateDocument keeps the top-level entries in the order they appear in the page.
type stateDocument struct {
	entries []stateEntry
}

func (r *Resolver) loadPage(ctx context.Context, id types.AssetID) (*sharePage, error) {
	markup, err := r.fetchPage(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	state, err := extractState(doc, markup)
	if err != nil {
		return nil, err
	}
	return &sharePage{id: id, markup: markup, doc: doc, state: state}, nil
}

func (r *Resolver) fetchPage(ctx context.Context, id types.AssetID) (string, error) {
	req, err := r.newRequest(ctx, http.MethodGet, r.ShareURL(id), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch share page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(body), nil
}

func (p *sharePage) ogTitle() string {
	if p == nil || p.doc == nil {
		return ""
	}
	content, _ := p.doc.Find(`meta[property="og:title"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

// extractState finds the state assignment, preferring a script element and
// falling back to the raw markup when the element cannot be isolated.
func extractState(doc *goquery.Document, markup string) (*stateDocument, error) {
	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, stateMarker) {
			script = text
			return false
		}
		return true
	})

	for _, source := range []string{script, markup} {
		if source == "" {
			continue
		}
		loc := stateAssignRegex.FindStringIndex(source)
		if loc == nil {
			continue
		}
		return decodeState(source[loc[1]:])
	}
	return nil, errStateMissing
}

// decodeState reads one object from the start of src. Strict JSON is tried
// first; a JavaScript object literal is evaluated when that fails.
func decodeState(src string) (*stateDocument, error) {
	state, jsonErr := decodeStateJSON(src)
	if jsonErr == nil {
		return state, nil
	}
	literal, ok := objectLiteralSpan(src)
	if !ok {
		return nil, fmt.Errorf("state document: %w", jsonErr)
	}
	state, jsErr := decodeStateLiteral(literal)
	if jsErr != nil {
		return nil, fmt.Errorf("state document: %w", errors.Join(jsonErr, jsErr))
	}
	return state, nil
}

func decodeStateJSON(src string) (*stateDocument, error) {
	dec := json.NewDecoder(strings.NewReader(src))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("state document is not an object (got %v)", tok)
	}

	state := &stateDocument{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected state key %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("state entry %q: %w", key, err)
		}
		state.entries = append(state.entries, stateEntry{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return state, nil
}

func decodeStateLiteral(literal string) (*stateDocument, error) {
	vm := goja.New()
	timer := time.AfterFunc(literalEvalLimit, func() {
		vm.Interrupt("state literal evaluation timed out")
	})
	defer timer.Stop()

	value, err := vm.RunString("(" + literal + ")")
	if err != nil {
		return nil, err
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, errors.New("state literal evaluated to nothing")
	}
	obj := value.ToObject(vm)

	state := &stateDocument{}
	for _, key := range obj.Keys() {
		v := obj.Get(key)
		if v == nil || goja.IsUndefined(v) {
			state.entries = append(state.entries, stateEntry{Key: key})
			continue
		}
		state.entries = append(state.entries, stateEntry{Key: key, Value: v.Export()})
	}
	return state, nil
}

// objectLiteralSpan returns the balanced {...} prefix of src, honoring
// quoted strings and escapes.
func objectLiteralSpan(src string) (string, bool) {
	start := strings.IndexByte(src, '{')
	if start < 0 || strings.TrimSpace(src[:start]) != "" {
		return "", false
	}
	depth := 0
	var quote byte
	for i := start; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[start : i+1], true
			}
		}
	}
	return "", false
}
