// Package fetch provides provider-specific adapters that retrieve raw yield
// data and emit normalized records.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/yield-radar/internal/model"
)

// Adapter is the single contract every provider implements. An adapter owns
// its retrieval, normalization, exclusion lists, and minimum thresholds; the
// caller supplies nothing beyond the context. A returned error is the
// adapter's whole contribution failing; the aggregator collapses it to an
// empty record set, and one provider's outage never aborts a run.
type Adapter interface {
	// Name identifies the adapter in logs, metrics, and overlap rules.
	Name() string

	// Fetch retrieves and normalizes the provider's current opportunities.
	Fetch(ctx context.Context) ([]model.YieldRecord, error)
}

// Thresholds are the adapter-level noise floors: records below either are
// dropped before emission.
type Thresholds struct {
	// MinAPY is the epsilon below which a yield is considered noise,
	// as a percentage (0.1 means 0.1%).
	MinAPY float64

	// MinTVL is the minimum liquidity floor, in the record's TVL unit.
	MinTVL float64
}

// Meets reports whether a candidate record clears both floors.
func (t Thresholds) Meets(apy, tvl float64) bool {
	return apy >= t.MinAPY && tvl >= t.MinTVL
}

// newRetryClient creates an HTTP client with bounded retries for provider
// calls. The retry logger is silenced; adapters do their own structured
// logging.
func newRetryClient(timeout time.Duration) *http.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	return c.StandardClient()
}
