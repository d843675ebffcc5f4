package client

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/famomatic/loomdl/internal/resolver"
	"github.com/famomatic/loomdl/internal/types"
)

func TestWithDefaultTimeout(t *testing.T) {
	ctx, cancel := withDefaultTimeout(context.Background(), 0)
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatalf("zero timeout must not set a deadline")
	}

	ctx, cancel = withDefaultTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("expected a deadline")
	}

	parent, parentCancel := context.WithTimeout(context.Background(), time.Hour)
	defer parentCancel()
	want, _ := parent.Deadline()
	ctx, cancel = withDefaultTimeout(parent, time.Second)
	defer cancel()
	if got, _ := ctx.Deadline(); !got.Equal(want) {
		t.Fatalf("existing deadline overridden: got %v want %v", got, want)
	}
}

func TestBuildMediaRequestHeaders(t *testing.T) {
	base := http.Header{"X-Extra": {"1"}}
	creds := &types.SignedCredentials{Policy: "p", Signature: "s", KeyPairID: "k"}

	got := buildMediaRequestHeaders(base, "", "https://www.loom.com/share/abc", creds)
	if got.Get("User-Agent") != resolver.DefaultUserAgent {
		t.Fatalf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Referer") != "https://www.loom.com/share/abc" {
		t.Fatalf("Referer = %q", got.Get("Referer"))
	}
	if !strings.Contains(got.Get("Cookie"), "CloudFront-Key-Pair-Id=k") {
		t.Fatalf("Cookie = %q", got.Get("Cookie"))
	}
	if got.Get("X-Extra") != "1" {
		t.Fatalf("configured header dropped")
	}
	if base.Get("User-Agent") != "" {
		t.Fatalf("input headers mutated")
	}

	plain := buildMediaRequestHeaders(nil, "custom/1.0", "", nil)
	if plain.Get("User-Agent") != "custom/1.0" || plain.Get("Referer") != "" || plain.Get("Cookie") != "" {
		t.Fatalf("unexpected headers: %v", plain)
	}
}
