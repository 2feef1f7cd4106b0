package http

import (
	nethttp "net/http"

	"golang.org/x/net/http2"

	"github.com/fedesuarez16/opting-sub000/internal/config"
	"github.com/fedesuarez16/opting-sub000/internal/constants"
)

// CreateDownloadClient creates the HTTP client used to fetch document bodies from
// download links. It shares the proxy configuration of the drive client but has no
// overall timeout; each download bounds itself through its context.
func CreateDownloadClient(cfg *config.Config) (*nethttp.Client, error) {
	baseClient, err := ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	baseClient.Timeout = 0

	// NTLM wraps the transport in a negotiator; leave it untouched
	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		return baseClient, nil
	}

	tr.MaxIdleConnsPerHost = constants.DownloadWorkers * 2
	tr.MaxConnsPerHost = constants.DownloadWorkers * 4
	tr.DisableCompression = true // documents are mostly pdf/xlsx, already compressed

	// HTTP/2 through proxies tends to fail mid-transfer
	if cfg.Proxy.Mode == "" || cfg.Proxy.Mode == "no-proxy" {
		tr.ForceAttemptHTTP2 = true
		_ = http2.ConfigureTransport(tr)
	}

	baseClient.Transport = tr
	return baseClient, nil
}
