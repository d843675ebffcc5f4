package downloader

import (
	"net/http"

	"github.com/famomatic/loomdl/internal/types"
)

func statusError(resp *http.Response) error {
	host := ""
	if resp.Request != nil && resp.Request.URL != nil {
		host = resp.Request.URL.Host
	}
	return &types.TransferError{StatusCode: resp.StatusCode, URLHost: host}
}
