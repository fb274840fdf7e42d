package dash

import (
	"context"
	"dashregiond/internal/logger"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the DASH client responsible for all communication with the origin server.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
	userAgent  string
}

// NewClient creates a new DASH client.
func NewClient(log logger.Logger, userAgent string) *Client {
	transport := &http.Transport{
		ResponseHeaderTimeout: 3 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:    log,
		userAgent: userAgent,
	}
}

// FetchAndParseMPD fetches the MPD from a given URL and parses it into the MPD struct.
// It follows one redirect and returns the final URL alongside the manifest.
func (c *Client) FetchAndParseMPD(ctx context.Context, initialUrl string) (*MPD, string, error) {
	c.logger.Debugf("Fetching MPD from URL: %s", initialUrl)

	resp, err := c.get(ctx, initialUrl)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch MPD from %s: %w", initialUrl, err)
	}
	defer resp.Body.Close()

	finalUrl := initialUrl
	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently {
		location, err := resp.Location()
		if err != nil {
			return nil, "", fmt.Errorf("redirect location error: %w", err)
		}
		finalUrl = location.String()
		c.logger.Debugf("Redirected to: %s", finalUrl)

		resp, err = c.get(ctx, finalUrl)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch redirected MPD from %s: %w", finalUrl, err)
		}
		defer resp.Body.Close()
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch MPD: received status code %d from %s", resp.StatusCode, finalUrl)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read MPD response body: %w", err)
	}

	var mpd MPD
	if err := xml.Unmarshal(data, &mpd); err != nil {
		c.logger.Errorf("Failed to unmarshal MPD XML from %s: %v", finalUrl, err)
		return nil, "", fmt.Errorf("failed to unmarshal MPD XML: %w", err)
	}

	c.logger.Debugf("Successfully fetched and parsed %s MPD with %d periods from %s", mpd.Type, len(mpd.Periods), finalUrl)
	return &mpd, finalUrl, nil
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}
