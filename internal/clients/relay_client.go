package clients

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
)

// RelayClient fetches payment endpoints through an HTTP relay when direct
// access fails. The relay takes the target in a url query parameter and
// forwards the response body unchanged, though some relays strip custom
// request headers; the payment layer compensates with a query fallback.
type RelayClient struct {
	relayURL string
	direct   *HTTPFetcher
}

// NewRelayClient wraps a fetcher with a relay. An empty relayURL disables
// relaying; requests then always go direct.
func NewRelayClient(relayURL string, direct *HTTPFetcher) *RelayClient {
	return &RelayClient{
		relayURL: relayURL,
		direct:   direct,
	}
}

// Get tries the target directly first and falls back to the relay on a
// transport failure. HTTP error statuses from the target are returned as-is;
// only a connection-level failure triggers the relay.
func (c *RelayClient) Get(ctx context.Context, target string, headers map[string]string) (int, []byte, error) {
	status, body, err := c.direct.Get(ctx, target, headers)
	if err == nil {
		return status, body, nil
	}
	if c.relayURL == "" {
		return 0, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"url":   target,
		"error": err.Error(),
	}).Warn("⚠️ Direct fetch failed, retrying through relay")

	relayed := fmt.Sprintf("%s?url=%s", c.relayURL, url.QueryEscape(target))
	status, body, relayErr := c.direct.Get(ctx, relayed, headers)
	if relayErr != nil {
		return 0, nil, fmt.Errorf("relay fetch failed after direct failure (%v): %w", err, relayErr)
	}
	return status, body, nil
}
