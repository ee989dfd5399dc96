package fetch

import (
	"bytes"
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

// hoverQuery asks the lending subgraph for the current reserve rates.
// Rates come back as simple APR percentages.
const hoverQuery = `{"query":"{ reserves { id symbol supplyAPR rewardAPR totalDepositsUSD } }"}`

// HoverClient reads a lending protocol's GraphQL subgraph. Supply and
// reward APRs are compounded to APY separately so the base/reward split
// survives normalization.
type HoverClient struct {
	graphURL   string
	sourceLink string
	thresholds Thresholds
	httpClient *http.Client
}

// HoverConfig configures the lending-subgraph adapter.
type HoverConfig struct {
	GraphURL   string
	SourceLink string
	Thresholds Thresholds
	Timeout    time.Duration
}

// NewHoverClient creates a lending-subgraph adapter.
func NewHoverClient(cfg HoverConfig) *HoverClient {
	return &HoverClient{
		graphURL:   cfg.GraphURL,
		sourceLink: cfg.SourceLink,
		thresholds: cfg.Thresholds,
		httpClient: newRetryClient(cfg.Timeout),
	}
}

// Name implements Adapter.
func (c *HoverClient) Name() string { return "hover" }

// Fetch implements Adapter.
func (c *HoverClient) Fetch(ctx context.Context) ([]model.YieldRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphURL,
		bytes.NewReader([]byte(hoverQuery)))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying subgraph: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data struct {
			Reserves []struct {
				ID               string   `json:"id"`
				Symbol           string   `json:"symbol"`
				SupplyAPR        *float64 `json:"supplyAPR"`
				RewardAPR        *float64 `json:"rewardAPR"`
				TotalDepositsUSD *float64 `json:"totalDepositsUSD"`
			} `json:"reserves"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(response.Errors) > 0 {
		return nil, fmt.Errorf("subgraph error: %s", response.Errors[0].Message)
	}

	records := make([]model.YieldRecord, 0, len(response.Data.Reserves))
	for _, reserve := range response.Data.Reserves {
		if reserve.Symbol == "" || reserve.SupplyAPR == nil || reserve.TotalDepositsUSD == nil {
			continue
		}
		if math.IsNaN(*reserve.SupplyAPR) || math.IsNaN(*reserve.TotalDepositsUSD) {
			continue
		}

		base := AprToApy(*reserve.SupplyAPR)
		total := base
		var reward *float64
		if reserve.RewardAPR != nil && *reserve.RewardAPR > 0 {
			r := AprToApy(*reserve.RewardAPR)
			reward = &r
			total += r
		}
		if !c.thresholds.Meets(total, *reserve.TotalDepositsUSD) {
			continue
		}

		records = append(records, model.YieldRecord{
			Category:    classify.Classify(reserve.Symbol),
			SourceName:  "hover",
			SourceLink:  c.sourceLink,
			AssetSymbol: reserve.Symbol,
			PoolLabel:   reserve.ID,
			APYBase:     base,
			APYReward:   reward,
			APYTotal:    total,
			TVL:         *reserve.TotalDepositsUSD,
		})
	}

	logrus.WithFields(logrus.Fields{
		"adapter": c.Name(),
		"records": len(records),
	}).Debug("Hover fetch complete")
	return records, nil
}
