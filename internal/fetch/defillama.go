package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/yield-radar/internal/classify"
	"github.com/yourorg/yield-radar/internal/model"
)

// DefiLlamaClient reads the broad multi-protocol yield index and filters it
// down to the configured chain. It is the overlap-prone provider: protocols
// with a richer dedicated adapter are excluded from its output by the
// aggregator's overlap rules, not here.
type DefiLlamaClient struct {
	baseURL         string
	chain           string
	excludedSymbols []string
	thresholds      Thresholds
	httpClient      *http.Client
}

// DefiLlamaConfig configures the DefiLlama adapter.
type DefiLlamaConfig struct {
	BaseURL string
	Chain   string

	// ExcludedSymbols lists symbol fragments to drop before emission:
	// test/placeholder listings and bridged assets of unrelated ecosystems.
	ExcludedSymbols []string

	Thresholds Thresholds
	Timeout    time.Duration
}

// NewDefiLlamaClient creates a DefiLlama yields adapter.
func NewDefiLlamaClient(cfg DefiLlamaConfig) *DefiLlamaClient {
	return &DefiLlamaClient{
		baseURL:         cfg.BaseURL,
		chain:           cfg.Chain,
		excludedSymbols: cfg.ExcludedSymbols,
		thresholds:      cfg.Thresholds,
		httpClient:      newRetryClient(cfg.Timeout),
	}
}

// Name implements Adapter.
func (c *DefiLlamaClient) Name() string { return "defillama" }

// llamaPool mirrors one entry of the /pools response. Pointer fields catch
// the nulls the index is known to emit.
type llamaPool struct {
	Chain     string   `json:"chain"`
	Project   string   `json:"project"`
	Symbol    string   `json:"symbol"`
	Pool      string   `json:"pool"`
	PoolMeta  *string  `json:"poolMeta"`
	TVLUsd    *float64 `json:"tvlUsd"`
	APYBase   *float64 `json:"apyBase"`
	APYReward *float64 `json:"apyReward"`
	APY       *float64 `json:"apy"`
}

// Fetch implements Adapter.
func (c *DefiLlamaClient) Fetch(ctx context.Context) ([]model.YieldRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pools", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching pools: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data []llamaPool `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]model.YieldRecord, 0, 16)
	for _, pool := range response.Data {
		if !strings.EqualFold(pool.Chain, c.chain) {
			continue
		}
		if c.isExcluded(pool.Symbol) {
			continue
		}
		rec, ok := c.normalize(pool)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	logrus.WithFields(logrus.Fields{
		"adapter": c.Name(),
		"chain":   c.chain,
		"records": len(records),
	}).Debug("DefiLlama fetch complete")
	return records, nil
}

// normalize converts one index entry; ok is false for malformed entries,
// which are dropped individually without affecting the rest of the batch.
func (c *DefiLlamaClient) normalize(pool llamaPool) (model.YieldRecord, bool) {
	if pool.Project == "" || pool.Symbol == "" || pool.APY == nil || pool.TVLUsd == nil {
		return model.YieldRecord{}, false
	}
	apy := *pool.APY
	tvl := *pool.TVLUsd
	if math.IsNaN(apy) || math.IsNaN(tvl) || math.IsInf(tvl, 0) {
		return model.YieldRecord{}, false
	}
	if !c.thresholds.Meets(apy, tvl) {
		return model.YieldRecord{}, false
	}

	var base float64
	if pool.APYBase != nil {
		base = *pool.APYBase
	}
	// The index emits multiple pools per (project, symbol) with null
	// poolMeta; the pool id keeps their history identities apart.
	label := pool.Pool
	if pool.PoolMeta != nil && *pool.PoolMeta != "" {
		label = *pool.PoolMeta
	}

	return model.YieldRecord{
		Category:    classify.Classify(pool.Symbol),
		SourceName:  pool.Project,
		SourceLink:  "https://defillama.com/yields/pool/" + pool.Pool,
		AssetSymbol: pool.Symbol,
		PoolLabel:   label,
		APYBase:     base,
		APYReward:   pool.APYReward,
		APYTotal:    apy,
		TVL:         tvl,
	}, true
}

func (c *DefiLlamaClient) isExcluded(symbol string) bool {
	lower := strings.ToLower(symbol)
	for _, excluded := range c.excludedSymbols {
		if strings.Contains(lower, strings.ToLower(excluded)) {
			return true
		}
	}
	return false
}
