package listings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Compile-time interface check.
var _ Provider = (*HTTPProvider)(nil)

// DefaultRequestTimeout bounds a single upstream HTTP request.
const DefaultRequestTimeout = 15 * time.Second

// HTTPProvider calls the live third-party listings API over HTTP.
// It performs no retries or caching of its own: a 404 maps to
// ErrNotFound, 5xx-class responses and transport failures are wrapped
// as transient, and everything else is a terminal call failure.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient overrides the HTTP client (e.g. for custom transports).
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.client = client }
}

// WithRequestTimeout sets the per-request timeout on the default client.
func WithRequestTimeout(d time.Duration) HTTPOption {
	return func(p *HTTPProvider) { p.client.Timeout = d }
}

// NewHTTPProvider creates a live provider against baseURL.
func NewHTTPProvider(baseURL, apiKey string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *HTTPProvider) Name() string { return "http" }

// searchResponse is the provider's wire envelope.
type searchResponse struct {
	Listings []Listing `json:"listings"`
}

// SearchByAddress implements Provider.
func (p *HTTPProvider) SearchByAddress(ctx context.Context, q AddressQuery) ([]Listing, error) {
	return p.get(ctx, "/v1/listings/search", url.Values{
		"address": {q.Street},
		"city":    {q.City},
		"state":   {q.Region},
	})
}

// SearchByCity implements Provider.
func (p *HTTPProvider) SearchByCity(ctx context.Context, q CityQuery) ([]Listing, error) {
	days := int(q.Lookback.Hours() / 24)
	if days < 1 {
		days = 1
	}
	return p.get(ctx, "/v1/listings", url.Values{
		"city":  {q.City},
		"state": {q.Region},
		"days":  {strconv.Itoa(days)},
	})
}

// SearchByRegion implements Provider.
func (p *HTTPProvider) SearchByRegion(ctx context.Context, q RegionQuery) ([]Listing, error) {
	return p.get(ctx, "/v1/listings", url.Values{
		"state": {q.Region},
	})
}

// SearchByRegionSince implements Provider.
func (p *HTTPProvider) SearchByRegionSince(ctx context.Context, q RegionSinceQuery) ([]Listing, error) {
	return p.get(ctx, "/v1/listings", url.Values{
		"state": {q.Region},
		"since": {q.Since.UTC().Format(time.RFC3339)},
	})
}

// get performs one GET and classifies the outcome.
func (p *HTTPProvider) get(ctx context.Context, path string, params url.Values) ([]Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("listings: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-Api-Key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// Timeouts and connection failures are worth retrying.
		return nil, Transient(fmt.Errorf("listings: %s: %w", path, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		return nil, Transient(fmt.Errorf("listings: %s: upstream status %d", path, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("listings: %s: unexpected status %d", path, resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("listings: %s: decode response: %w", path, err)
	}
	return body.Listings, nil
}
