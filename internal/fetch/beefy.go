package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/yield-radar/internal/classify"
	"github.com/yourorg/yield-radar/internal/model"
)

// BeefyClient reads a protocol aggregator whose vault listings span several
// underlying networks for the same fungible instrument. Reported APYs for
// one instrument should agree across networks, so per-instrument
// aggregation takes the maximum APY (divergence is provider noise) and
// sums TVL across networks.
type BeefyClient struct {
	baseURL    string
	sourceLink string
	thresholds Thresholds
	httpClient *http.Client
}

// BeefyConfig configures the protocol-aggregator adapter.
type BeefyConfig struct {
	BaseURL    string
	SourceLink string
	Thresholds Thresholds
	Timeout    time.Duration
}

// NewBeefyClient creates a protocol-aggregator adapter.
func NewBeefyClient(cfg BeefyConfig) *BeefyClient {
	return &BeefyClient{
		baseURL:    cfg.BaseURL,
		sourceLink: cfg.SourceLink,
		thresholds: cfg.Thresholds,
		httpClient: newRetryClient(cfg.Timeout),
	}
}

// Name implements Adapter.
func (c *BeefyClient) Name() string { return "beefy" }

// Fetch implements Adapter.
func (c *BeefyClient) Fetch(ctx context.Context) ([]model.YieldRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/vaults", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching vaults: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var vaults []struct {
		Symbol  string   `json:"symbol"`
		Network string   `json:"network"`
		APY     *float64 `json:"apy"`
		TVL     *float64 `json:"tvl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&vaults); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	// Collapse per-network listings of the same instrument.
	type instrument struct {
		maxAPY float64
		sumTVL float64
	}
	bySymbol := make(map[string]*instrument)
	var order []string
	for _, vault := range vaults {
		if vault.Symbol == "" || vault.APY == nil || vault.TVL == nil {
			continue
		}
		if math.IsNaN(*vault.APY) || math.IsNaN(*vault.TVL) {
			continue
		}
		inst, ok := bySymbol[vault.Symbol]
		if !ok {
			inst = &instrument{}
			bySymbol[vault.Symbol] = inst
			order = append(order, vault.Symbol)
		}
		if *vault.APY > inst.maxAPY {
			inst.maxAPY = *vault.APY
		}
		inst.sumTVL += *vault.TVL
	}
	sort.Strings(order)

	records := make([]model.YieldRecord, 0, len(order))
	for _, symbol := range order {
		inst := bySymbol[symbol]
		if !c.thresholds.Meets(inst.maxAPY, inst.sumTVL) {
			continue
		}
		records = append(records, model.YieldRecord{
			Category:    classify.Classify(symbol),
			SourceName:  "beefy",
			SourceLink:  c.sourceLink,
			AssetSymbol: symbol,
			APYBase:     inst.maxAPY,
			APYTotal:    inst.maxAPY,
			TVL:         inst.sumTVL,
		})
	}

	logrus.WithFields(logrus.Fields{
		"adapter": c.Name(),
		"records": len(records),
	}).Debug("Beefy fetch complete")
	return records, nil
}
