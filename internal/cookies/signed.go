package cookies

import (
	"strings"

	"github.com/famomatic/loomdl/internal/types"
)

// SignedCookieHeader renders CloudFront signed-cookie credentials as a Cookie
// header value. It returns "" when any part is missing.
func SignedCookieHeader(creds *types.SignedCredentials) string {
	if !creds.Valid() {
		return ""
	}
	return strings.Join([]string{
		"CloudFront-Policy=" + creds.Policy,
		"CloudFront-Signature=" + creds.Signature,
		"CloudFront-Key-Pair-Id=" + creds.KeyPairID,
	}, "; ")
}
