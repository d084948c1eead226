package cloud

import (
	"net"
	"net/http"
	"time"
)

// Contractual timeouts for every call to the cloud.
const (
	ConnectTimeout = 10 * time.Second
	ReadTimeout    = 30 * time.Second
	TotalTimeout   = 60 * time.Second
)

// mobileHeaders identify requests as coming from the official mobile app.
var mobileHeaders = map[string]string{
	"app-version":     "4.2.5",
	"Accept-Language": "es-ES;q=1.0",
	"Accept":          "*/*",
	"phone-os":        "26.1",
	"User-Agent":      "Blue/4.2.5 (com.fermax.bluefermax; build:2; iOS 26.1.0) Alamofire/5.10.2",
	"phone-model":     "iPhone 15 Pro",
	"app-build":       "2",
}

type mobileTransport struct {
	base http.RoundTripper
}

func (t *mobileTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for key, value := range mobileHeaders {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	return t.base.RoundTrip(req)
}

func newHTTPClient() *http.Client {
	var transport *http.Transport
	if defaultTransport, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = defaultTransport.Clone()
	} else {
		transport = &http.Transport{Proxy: http.ProxyFromEnvironment}
	}
	transport.DialContext = (&net.Dialer{
		Timeout:   ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = ConnectTimeout
	transport.ResponseHeaderTimeout = ReadTimeout

	return &http.Client{
		Timeout:   TotalTimeout,
		Transport: &mobileTransport{base: transport},
	}
}

func wrapHTTPClient(hc *http.Client) *http.Client {
	if hc == nil {
		return newHTTPClient()
	}
	client := *hc
	if client.Timeout == 0 {
		client.Timeout = TotalTimeout
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = &mobileTransport{base: base}
	return &client
}
