package normalizer

import "sync"

const (
	// DefaultCollateralDecimals is the USDC fixed-point exponent.
	DefaultCollateralDecimals int32 = 6

	// DefaultTokenDecimals is the exponent for CTF outcome tokens.
	DefaultTokenDecimals int32 = 6
)

// ScaleRegistry resolves the fixed-point exponent per asset. Raw event
// amounts are integers scaled by a per-token power of ten; assuming one
// global scale silently mis-sizes 18-decimal ERC-20 legs, so lookups go
// through here.
type ScaleRegistry struct {
	mu         sync.RWMutex
	collateral int32
	token      int32
	overrides  map[string]int32
}

// DefaultScales returns a registry with the exchange defaults.
func DefaultScales() *ScaleRegistry {
	return NewScaleRegistry(DefaultCollateralDecimals, DefaultTokenDecimals)
}

func NewScaleRegistry(collateral, token int32) *ScaleRegistry {
	return &ScaleRegistry{
		collateral: collateral,
		token:      token,
		overrides:  make(map[string]int32),
	}
}

// SetTokenDecimals overrides the exponent for one asset id.
func (r *ScaleRegistry) SetTokenDecimals(assetID string, decimals int32) {
	r.mu.Lock()
	r.overrides[assetID] = decimals
	r.mu.Unlock()
}

// TokenExponent returns the exponent for an asset, falling back to the
// registry default.
func (r *ScaleRegistry) TokenExponent(assetID string) int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.overrides[assetID]; ok {
		return d
	}
	return r.token
}

func (r *ScaleRegistry) CollateralExponent() int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collateral
}
