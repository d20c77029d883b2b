package discovery

import (
	"context"
	"fmt"
	"net/url"
)

// StaticResolver keeps fixed analytics URLs for non-cluster environments.
type StaticResolver struct {
	rcaURL  *url.URL
	uebaURL *url.URL
}

func NewStaticResolver(rcaURL, uebaURL string) (*StaticResolver, error) {
	parsedRCA, err := parseBaseURL(rcaURL)
	if err != nil {
		return nil, fmt.Errorf("parse RCA_API_BASE_URL: %w", err)
	}
	parsedUEBA, err := parseBaseURL(uebaURL)
	if err != nil {
		return nil, fmt.Errorf("parse UEBA_API_BASE_URL: %w", err)
	}

	return &StaticResolver{
		rcaURL:  parsedRCA,
		uebaURL: parsedUEBA,
	}, nil
}

func (r *StaticResolver) Resolve(_ context.Context) (Snapshot, error) {
	return Snapshot{
		RCAURL:  r.rcaURL,
		UEBAURL: r.uebaURL,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	return u, nil
}
