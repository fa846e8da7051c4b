package fields

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the CRM API root used when none is configured.
const DefaultBaseURL = "https://api.pipedrive.com"

const pageLimit = 500

// ErrUnauthorized is returned when the API rejects the token.
var ErrUnauthorized = errors.New("field definition request unauthorized")

// HTTPProvider fetches field definitions from the v2 REST API.
type HTTPProvider struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTPProvider returns a provider with a client bounded by timeout.
func NewHTTPProvider(baseURL, token string, timeout time.Duration) *HTTPProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &HTTPProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
	}
}

type fieldsPage struct {
	Success        bool         `json:"success"`
	Error          string       `json:"error"`
	Data           []Definition `json:"data"`
	AdditionalData struct {
		NextCursor *string `json:"next_cursor"`
	} `json:"additional_data"`
}

// Fields implements Provider. It follows the cursor until the last page.
func (p *HTTPProvider) Fields(ctx context.Context, category string) ([]Definition, error) {
	var (
		all    []Definition
		cursor string
	)

	for {
		page, err := p.fetchPage(ctx, category, cursor)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Data...)

		if page.AdditionalData.NextCursor == nil || *page.AdditionalData.NextCursor == "" {
			return all, nil
		}

		cursor = *page.AdditionalData.NextCursor
	}
}

func (p *HTTPProvider) fetchPage(ctx context.Context, category, cursor string) (*fieldsPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageLimit))

	if cursor != "" {
		q.Set("cursor", cursor)
	}

	endpoint := fmt.Sprintf("%s/api/v2/%sFields?%s", p.BaseURL, category, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if p.Token != "" {
		req.Header.Set("x-api-token", p.Token)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %sFields: %w", category, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%sFields: unexpected status %d", category, resp.StatusCode)
	}

	var page fieldsPage

	err = json.Unmarshal(body, &page)
	if err != nil {
		return nil, fmt.Errorf("decode %sFields: %w", category, err)
	}

	if !page.Success && page.Error != "" {
		return nil, fmt.Errorf("%sFields: %s", category, page.Error)
	}

	return &page, nil
}
