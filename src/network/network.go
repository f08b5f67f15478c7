package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"marketfeed/src/models"
)

// -----------------------------------------------------------------------------

// Client is the HTTP client used to reach upstream quote sources. Retries and
// failure isolation are layered on top by the ingestion orchestrator, so a
// single request here fails fast.
type Client struct {
	Config     *models.MConfig
	HTTPClient *http.Client
}

// -----------------------------------------------------------------------------

func NewClient(cfg *models.MConfig) *Client {
	return &Client{
		Config: cfg,
		HTTPClient: &http.Client{
			Timeout: time.Duration(cfg.Network.RequestTimeout) * time.Second,
		},
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request and returns the response body. Non-2xx statuses
// are errors so the caller's retry policy can classify them.
func (c *Client) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.Config.Network.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return body, nil
}
