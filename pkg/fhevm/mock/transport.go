package mock

import (
	"net/http"
	"net/url"
	"strings"
)

type transport struct {
	relayer *relayer
	prefix  string
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.prefix != "" && strings.HasPrefix(req.URL.Path, t.prefix) {
		req = req.Clone(req.Context())
		req.URL.Path = strings.TrimPrefix(req.URL.Path, t.prefix)
		req.RequestURI = ""
	}
	return t.relayer.app.Test(req, -1)
}

// Transport routes requests straight into the relayer app without a
// listener, whatever the request host. The path of the configured relayer
// url is stripped first.
func (r *relayer) Transport() http.RoundTripper {
	t := transport{relayer: r}
	if u, err := url.Parse(r.config.RelayerURL); err == nil {
		t.prefix = strings.TrimSuffix(u.Path, "/")
	}
	return &t
}

func (r *relayer) HTTPClient() *http.Client {
	return &http.Client{Transport: r.Transport()}
}
