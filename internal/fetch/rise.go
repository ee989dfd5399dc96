package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/yield-radar/internal/classify"
	"github.com/yourorg/yield-radar/internal/model"
)

// RiseClient reads the chain-specific rewards index. The index reports
// simple annualized rates per denom, so every entry goes through the
// APR to APY conversion before emission.
type RiseClient struct {
	baseURL    string
	thresholds Thresholds
	httpClient *http.Client
}

// RiseConfig configures the rewards-index adapter.
type RiseConfig struct {
	BaseURL    string
	Thresholds Thresholds
	Timeout    time.Duration
}

// NewRiseClient creates a rewards-index adapter.
func NewRiseClient(cfg RiseConfig) *RiseClient {
	return &RiseClient{
		baseURL:    cfg.BaseURL,
		thresholds: cfg.Thresholds,
		httpClient: newRetryClient(cfg.Timeout),
	}
}

// Name implements Adapter.
func (c *RiseClient) Name() string { return "rise" }

// Fetch implements Adapter.
func (c *RiseClient) Fetch(ctx context.Context) ([]model.YieldRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/rewards", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching rewards: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Rewards []struct {
			Denom    string   `json:"denom"`
			Protocol string   `json:"protocol"`
			APR      *float64 `json:"apr"`
			TVL      *float64 `json:"tvl"`
		} `json:"rewards"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]model.YieldRecord, 0, len(response.Rewards))
	for _, reward := range response.Rewards {
		if reward.Denom == "" || reward.Protocol == "" || reward.APR == nil || reward.TVL == nil {
			continue
		}
		if math.IsNaN(*reward.APR) || math.IsNaN(*reward.TVL) {
			continue
		}
		apy := AprToApy(*reward.APR)
		if !c.thresholds.Meets(apy, *reward.TVL) {
			continue
		}
		records = append(records, model.YieldRecord{
			Category:    classify.Classify(reward.Denom),
			SourceName:  reward.Protocol,
			AssetSymbol: reward.Denom,
			APYBase:     apy,
			APYTotal:    apy,
			TVL:         *reward.TVL,
		})
	}

	logrus.WithFields(logrus.Fields{
		"adapter": c.Name(),
		"records": len(records),
	}).Debug("Rise fetch complete")
	return records, nil
}
