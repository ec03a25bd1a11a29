package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPCollector polls a JSON endpoint. It covers the common plugin case
// where a domain (wearable bridge, weather proxy, node exporter shim)
// exposes its current state as a JSON object.
type HTTPCollector struct {
	name   string
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewHTTPCollector(name, url string, timeout time.Duration, logger *zap.Logger) *HTTPCollector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCollector{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (c *HTTPCollector) Name() string { return c.name }

func (c *HTTPCollector) Collect(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		// Source has nothing for us this cycle.
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source %s returned status %d", c.name, resp.StatusCode)
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", c.name, err)
	}

	c.logger.Debug("Collected data",
		zap.String("collector", c.name),
		zap.Int("fields", len(data)),
	)
	return data, nil
}
