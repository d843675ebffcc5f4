package client

import (
	"context"
	"net/http"
	"time"

	"github.com/famomatic/loomdl/internal/cookies"
	"github.com/famomatic/loomdl/internal/downloader"
	"github.com/famomatic/loomdl/internal/resolver"
	"github.com/famomatic/loomdl/internal/types"
)

func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// buildMediaRequestHeaders returns the headers sent to the media host: the
// configured headers, a browser User-Agent, the share page as Referer, and
// the signed cookie triple when the stream carries one.
func buildMediaRequestHeaders(headers http.Header, userAgent, referer string, creds *types.SignedCredentials) http.Header {
	merged := downloader.CloneHeader(headers)
	if merged == nil {
		merged = make(http.Header)
	}
	if merged.Get("User-Agent") == "" {
		if userAgent == "" {
			userAgent = resolver.DefaultUserAgent
		}
		merged.Set("User-Agent", userAgent)
	}
	if merged.Get("Referer") == "" && referer != "" {
		merged.Set("Referer", referer)
	}
	if cookie := cookies.SignedCookieHeader(creds); cookie != "" && merged.Get("Cookie") == "" {
		merged.Set("Cookie", cookie)
	}
	return merged
}
