package services

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"golang.org/x/net/http/httpguts"

	"github.com/justbri/moviesync/config"
)

// StatusError is returned when TMDB answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status %d", e.URL, e.StatusCode)
}

// bearerTransport adds the TMDB read access token to every request.
type bearerTransport struct {
	header string
	base   http.RoundTripper
}

func newBearerTransport(token config.Secret, base http.RoundTripper) (*bearerTransport, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	header := "Bearer " + token.Reveal()
	if !httpguts.ValidHeaderFieldValue(header) {
		return nil, fmt.Errorf("%w: token contains characters not allowed in a header", ErrInvalidToken)
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &bearerTransport{header: header, base: base}, nil
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", t.header)
	r.Header.Set("Accept", "application/json")
	return t.base.RoundTrip(r)
}

// makeRequest performs a GET and returns the response if the status is 2xx
func makeRequest(ctx context.Context, client *http.Client, apiURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", apiURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{URL: apiURL, StatusCode: resp.StatusCode}
	}

	return resp, nil
}

func decodeJSONResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// getJSON fetches apiURL and decodes the body into v
func getJSON(ctx context.Context, client *http.Client, apiURL string, v any) error {
	resp, err := makeRequest(ctx, client, apiURL)
	if err != nil {
		return err
	}
	return decodeJSONResponse(resp, v)
}
