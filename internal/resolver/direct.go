package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/famomatic/loomdl/internal/types"
)

var markupEscapes = strings.NewReplacer(`\u0026`, "&", `\u002F`, "/", `\/`, "/")

func unescapeMarkup(s string) string {
	return markupEscapes.Replace(s)
}

// directFilePattern matches a progressive media file under the CDN sessions path.
func directFilePattern(cdnBase string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(cdnBase) +
		`/sessions/(?:raw|transcoded)/[^\s"'<>?\\]{1,512}?\.(?:mp4|webm|mov)(?:\?[^\s"'<>\\]*)?`)
}

func (r *Resolver) scanDirectFile(markup string) *types.StreamDescriptor {
	match := r.directFile.FindString(unescapeMarkup(markup))
	if match == "" {
		return nil
	}
	return &types.StreamDescriptor{Kind: types.StreamProgressive, URL: match}
}

// fetchTranscodedURL asks the sessions API for a signed progressive URL.
func (r *Resolver) fetchTranscodedURL(ctx context.Context, id types.AssetID) (*types.StreamDescriptor, error) {
	endpoint := r.config.BaseURL + "/api/campaigns/sessions/" + url.PathEscape(string(id)) + "/transcoded-url"
	req, err := r.newRequest(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBytes))
	if err != nil {
		return nil, err
	}
	u := strings.TrimSpace(gjson.GetBytes(body, "url").String())
	if u == "" {
		return nil, fmt.Errorf("transcoded-url response has no url")
	}
	return &types.StreamDescriptor{Kind: types.StreamProgressive, URL: u}, nil
}
