package client

import (
	"net/http"
	"net/url"
	"strings"
)

func defaultHTTPClient(proxyURL string, jar http.CookieJar) *http.Client {
	parsed, ok := parseProxyURL(proxyURL)
	if !ok {
		if jar == nil {
			return http.DefaultClient
		}
		return &http.Client{Jar: jar}
	}
	baseTransport, isTransport := http.DefaultTransport.(*http.Transport)
	if !isTransport {
		return &http.Client{Jar: jar}
	}
	transport := baseTransport.Clone()
	transport.Proxy = http.ProxyURL(parsed)
	return &http.Client{Transport: transport, Jar: jar}
}

func parseProxyURL(raw string) (*url.URL, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, false
	}
	return parsed, true
}
