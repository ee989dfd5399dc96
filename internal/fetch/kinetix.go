package fetch

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/yield-radar/internal/classify"
	"github.com/yourorg/yield-radar/internal/model"
)

// vaultABI is the minimal read surface of a Kinetix vault: the current
// yield as a fixed-point percentage and the deposited assets in raw token
// units.
const vaultABI = `[
	{"name":"getApy","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"totalAssets","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// vaultBatchSize is how many vault reads run concurrently before the
// adapter pauses for the inter-batch delay. Kept small as rate-limit
// courtesy toward public RPC endpoints.
const vaultBatchSize = 5

// defaultBatchDelay paces sequential batches when no delay is configured.
// Zero would disable the limiter entirely (rate.Every(0) is an infinite
// rate), so the constructor never accepts it.
const defaultBatchDelay = 500 * time.Millisecond

// contractCaller is the slice of the RPC client the adapter needs;
// *ethclient.Client satisfies it.
type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// VaultConfig describes one on-chain vault to read.
type VaultConfig struct {
	// Address is the vault contract address, hex-encoded.
	Address string

	// Symbol is the asset or pair the vault holds, e.g. "KAVA-stKAVA".
	Symbol string

	// Label disambiguates multiple vaults on the same symbol.
	Label string

	// RateDecimals is the fixed-point scale of getApy's return value.
	RateDecimals int32

	// AssetDecimals is the token decimal count used to turn totalAssets
	// into a whole-token count.
	AssetDecimals int32
}

// KinetixClient reads vault yields directly over JSON-RPC. Rates come back
// as fixed-point integers representing percentages, and TVL is a raw token
// count, so every record is flagged as proxy TVL.
type KinetixClient struct {
	rpcURL     string
	vaults     []VaultConfig
	sourceLink string
	thresholds Thresholds

	batchDelay time.Duration
	vaultAPI   abi.ABI

	// dial is overridable in tests.
	dial func(ctx context.Context) (contractCaller, error)
}

// KinetixConfig configures the on-chain vault adapter.
type KinetixConfig struct {
	RPCURL     string
	Vaults     []VaultConfig
	SourceLink string
	Thresholds Thresholds
	BatchDelay time.Duration
}

// NewKinetixClient creates an on-chain vault adapter.
func NewKinetixClient(cfg KinetixConfig) *KinetixClient {
	parsed, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		// The ABI is a compile-time constant; failing to parse it is a bug.
		panic(fmt.Sprintf("parsing vault ABI: %v", err))
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = defaultBatchDelay
	}
	c := &KinetixClient{
		rpcURL:     cfg.RPCURL,
		vaults:     cfg.Vaults,
		sourceLink: cfg.SourceLink,
		thresholds: cfg.Thresholds,
		batchDelay: cfg.BatchDelay,
		vaultAPI:   parsed,
	}
	c.dial = func(ctx context.Context) (contractCaller, error) {
		return ethclient.DialContext(ctx, c.rpcURL)
	}
	return c
}

// Name implements Adapter.
func (c *KinetixClient) Name() string { return "kinetix" }

// Fetch implements Adapter. Vaults are read in batches of vaultBatchSize;
// reads within a batch run concurrently, batches run sequentially with a
// fixed delay between them. A single vault's failure is logged and skipped
// without dropping the rest of its batch.
func (c *KinetixClient) Fetch(ctx context.Context) ([]model.YieldRecord, error) {
	if len(c.vaults) == 0 {
		return nil, nil
	}

	caller, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialing RPC: %w", err)
	}
	if closer, ok := caller.(interface{ Close() }); ok {
		defer closer.Close()
	}

	limiter := rate.NewLimiter(rate.Every(c.batchDelay), 1)
	records := make([]model.YieldRecord, 0, len(c.vaults))

	for start := 0; start < len(c.vaults); start += vaultBatchSize {
		if err := limiter.Wait(ctx); err != nil {
			return records, err
		}

		end := start + vaultBatchSize
		if end > len(c.vaults) {
			end = len(c.vaults)
		}
		batch := c.vaults[start:end]

		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for _, vault := range batch {
			wg.Add(1)
			go func(v VaultConfig) {
				defer wg.Done()
				rec, err := c.readVault(ctx, caller, v)
				if err != nil {
					logrus.WithFields(logrus.Fields{
						"adapter": c.Name(),
						"vault":   v.Address,
						"symbol":  v.Symbol,
					}).WithError(err).Warn("Vault read failed")
					return
				}
				if !c.thresholds.Meets(rec.APYTotal, rec.TVL) {
					return
				}
				mu.Lock()
				records = append(records, rec)
				mu.Unlock()
			}(vault)
		}
		wg.Wait()
	}

	logrus.WithFields(logrus.Fields{
		"adapter": c.Name(),
		"vaults":  len(c.vaults),
		"records": len(records),
	}).Debug("Kinetix fetch complete")
	return records, nil
}

// readVault performs the two contract reads for one vault and normalizes
// the result.
func (c *KinetixClient) readVault(ctx context.Context, caller contractCaller, v VaultConfig) (model.YieldRecord, error) {
	addr := common.HexToAddress(v.Address)

	rawRate, err := c.callUint(ctx, caller, addr, "getApy")
	if err != nil {
		return model.YieldRecord{}, fmt.Errorf("reading apy: %w", err)
	}
	rawAssets, err := c.callUint(ctx, caller, addr, "totalAssets")
	if err != nil {
		return model.YieldRecord{}, fmt.Errorf("reading assets: %w", err)
	}

	apy := DecodeRate(rawRate, v.RateDecimals)
	tokens, _ := decimal.NewFromBigInt(rawAssets, -v.AssetDecimals).Float64()

	return model.YieldRecord{
		Category:    classify.Classify(v.Symbol),
		SourceName:  "kinetix",
		SourceLink:  c.sourceLink,
		AssetSymbol: v.Symbol,
		PoolLabel:   v.Label,
		APYBase:     apy,
		APYTotal:    apy,
		TVL:         tokens,
		TVLIsProxy:  true,
	}, nil
}

// callUint packs, executes, and unpacks a no-argument view method returning
// a single uint256.
func (c *KinetixClient) callUint(ctx context.Context, caller contractCaller, addr common.Address, method string) (*big.Int, error) {
	input, err := c.vaultAPI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	output, err := caller.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	values, err := c.vaultAPI.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s output arity %d", method, len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", method, values[0])
	}
	return value, nil
}
