package observability

import (
	"net/http"
	"net/url"
	"time"

	sentryhttpclient "github.com/getsentry/sentry-go/httpclient"
)

// StorageClient returns the HTTP client used for bill uploads. Requests to
// AWS, and to endpoint when it names a custom S3-compatible host, carry
// sentry trace headers so uploads show up inside the order span.
func StorageClient(endpoint string, timeout time.Duration) *http.Client {
	targets := []string{"amazonaws.com"}
	if host := endpointHost(endpoint); host != "" {
		targets = append(targets, host)
	}
	return &http.Client{
		Timeout: timeout,
		Transport: sentryhttpclient.NewSentryRoundTripper(
			http.DefaultTransport,
			sentryhttpclient.WithTracePropagationTargets(targets),
		),
	}
}

func endpointHost(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
