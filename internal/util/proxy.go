package util

import (
	"net/http"
	"net/url"
)

// NewProxyFunc picks the configured proxy per scheme and falls back to the
// HTTP_PROXY/HTTPS_PROXY/NO_PROXY environment when neither is set.
func NewProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		switch {
		case req.URL.Scheme == "https" && httpsProxy != "":
			return url.Parse(httpsProxy)
		case httpProxy != "":
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}
