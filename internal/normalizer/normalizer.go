// Package normalizer converts raw OrderFilled event records into
// canonical Trade values. It is pure: no I/O, no shared state, safe to
// call from any number of goroutines.
package normalizer

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ctfradar/radar/internal/models"
)

// Reason categorizes why a raw record was rejected.
type Reason string

const (
	ReasonMissingField Reason = "missing_field"
	ReasonBadAmount    Reason = "bad_amount"
	ReasonBadAddress   Reason = "bad_address"
	ReasonBadAsset     Reason = "bad_asset"
	ReasonBadTimestamp Reason = "bad_timestamp"
)

// Error is a per-record normalization failure. The stream continues
// past it; callers count these instead of aborting.
type Error struct {
	Reason Reason
	Field  string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("normalize: %s (%s)", e.Reason, e.Field)
	}
	return fmt.Sprintf("normalize: %s (%s): %s", e.Reason, e.Field, e.Detail)
}

// ErrNotParticipant is returned when a perspective trader is neither leg
// of the event. It is not a malformed record: callers watching a set of
// addresses skip these silently.
var ErrNotParticipant = errors.New("normalize: perspective trader is not a counterparty")

// Options controls how a raw event is interpreted.
type Options struct {
	// Perspective is the trader address the Trade should be attributed
	// to. Empty means "attribute to the outcome-token buyer", matching
	// fills where no specific wallet is being tracked.
	Perspective string

	// Scales resolves per-token decimal exponents. Nil uses defaults.
	Scales *ScaleRegistry
}

// Amount field fallbacks, in lookup order. Different indexer versions
// name the filled amounts differently.
var (
	makerAmountKeys = []string{"makerAmountFilled", "makerAmount", "makerFillAmount", "makerFilledAmount"}
	takerAmountKeys = []string{"takerAmountFilled", "takerAmount", "takerFillAmount", "takerFilledAmount", "fillAmount", "amount"}
)

// Normalize maps one raw OrderFilled record into a canonical Trade.
//
// A fill has two legs: the maker gives makerAssetId/makerAmount, the
// taker gives takerAssetId/takerAmount. The leg whose asset id is the
// collateral sentinel ("0") is the USDC side; the party giving USDC is
// buying the outcome token. Side is then resolved relative to the
// perspective trader, so the same record yields one Trade per tracked
// counterparty.
func Normalize(ev models.RawEvent, opts Options) (models.Trade, error) {
	scales := opts.Scales
	if scales == nil {
		scales = DefaultScales()
	}

	ts, err := parseBlockTime(ev.Block.Time)
	if err != nil {
		return models.Trade{}, err
	}

	makerAsset := argString(ev, "makerAssetId")
	takerAsset := argString(ev, "takerAssetId")

	var assetID string
	var makerIsBuyer bool
	switch {
	case isCollateralAsset(makerAsset) && takerAsset != "":
		// Maker pays USDC, receives outcome tokens from the taker.
		assetID, makerIsBuyer = takerAsset, true
	case isCollateralAsset(takerAsset) && makerAsset != "":
		assetID, makerIsBuyer = makerAsset, false
	case makerAsset != "":
		// Neither leg is recognizably collateral; assume the taker leg
		// carries it, as the upstream indexer does for legacy events.
		assetID, makerIsBuyer = makerAsset, false
	case takerAsset != "":
		assetID, makerIsBuyer = takerAsset, true
	default:
		return models.Trade{}, &Error{Reason: ReasonMissingField, Field: "makerAssetId/takerAssetId"}
	}

	assetID, ok := normalizeAssetID(assetID)
	if !ok {
		return models.Trade{}, &Error{Reason: ReasonBadAsset, Field: "assetId", Detail: assetID}
	}

	makerAmount, makerOK := argAmount(ev, makerAmountKeys)
	takerAmount, takerOK := argAmount(ev, takerAmountKeys)
	if !makerOK || !takerOK {
		return models.Trade{}, &Error{Reason: ReasonMissingField, Field: "makerAmountFilled/takerAmountFilled"}
	}

	// Collateral exponent applies to the USDC leg, the token exponent
	// to the outcome leg; the two legs swap meaning with direction.
	var usd, size decimal.Decimal
	if makerIsBuyer {
		usd = makerAmount.Shift(-scales.CollateralExponent())
		size = takerAmount.Shift(-scales.TokenExponent(assetID))
	} else {
		usd = takerAmount.Shift(-scales.CollateralExponent())
		size = makerAmount.Shift(-scales.TokenExponent(assetID))
	}
	if size.Sign() <= 0 {
		return models.Trade{}, &Error{Reason: ReasonBadAmount, Field: "size", Detail: size.String()}
	}
	if usd.Sign() <= 0 {
		return models.Trade{}, &Error{Reason: ReasonBadAmount, Field: "usd", Detail: usd.String()}
	}

	maker, err := argAddress(ev, "maker")
	if err != nil {
		return models.Trade{}, err
	}
	taker, err := argAddress(ev, "taker")
	if err != nil {
		return models.Trade{}, err
	}

	buyer, seller := taker, maker
	if makerIsBuyer {
		buyer, seller = maker, taker
	}
	if buyer == "" {
		// Legacy events occasionally omit a leg address; fall back to
		// the transaction sender like the upstream indexer does.
		buyer = strings.ToLower(ev.Transaction.From)
	}
	if buyer == "" {
		return models.Trade{}, &Error{Reason: ReasonMissingField, Field: "maker/taker"}
	}

	trader, side := buyer, models.SideBuy
	if p := strings.ToLower(strings.TrimSpace(opts.Perspective)); p != "" {
		switch p {
		case buyer:
			trader, side = buyer, models.SideBuy
		case seller:
			trader, side = seller, models.SideSell
		default:
			return models.Trade{}, ErrNotParticipant
		}
	}

	role := models.RoleTaker
	if trader == maker {
		role = models.RoleMaker
	}
	counterparty := seller
	if trader == seller {
		counterparty = buyer
	}

	price := usd.Div(size)

	return models.Trade{
		TradeID:      tradeID(ev, trader, assetID),
		Timestamp:    ts,
		Trader:       trader,
		Counterparty: counterparty,
		AssetID:      assetID,
		Side:         side,
		Role:         role,
		Size:         size,
		Price:        price,
		USDValue:     size.Mul(price),
		TxHash:       ev.Transaction.Hash,
		BlockNumber:  ev.Block.Number,
	}, nil
}

// tradeID prefers txHash-logIndex; without a transaction hash it falls
// back to a content hash so replays still deduplicate.
func tradeID(ev models.RawEvent, trader, assetID string) string {
	if ev.Transaction.Hash != "" {
		return fmt.Sprintf("%s-%d", strings.ToLower(ev.Transaction.Hash), ev.Log.Index)
	}
	sum := sha1.Sum(fmt.Appendf(nil, "%d-%s-%s-%d", ev.Block.Number, trader, assetID, ev.Log.Index))
	return hex.EncodeToString(sum[:])
}

func parseBlockTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, &Error{Reason: ReasonMissingField, Field: "Block.Time"}
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &Error{Reason: ReasonBadTimestamp, Field: "Block.Time", Detail: raw}
}

func argString(ev models.RawEvent, name string) string {
	raw, ok := ev.Argument(name)
	if !ok {
		return ""
	}
	s, _ := stringValue(raw)
	return strings.TrimSpace(s)
}

func argAmount(ev models.RawEvent, keys []string) (decimal.Decimal, bool) {
	for _, key := range keys {
		raw, ok := ev.Argument(key)
		if !ok {
			continue
		}
		if d, ok := numericValue(raw); ok {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

// argAddress extracts and validates a hex address argument. A missing
// argument is not an error here (legacy events omit legs); a present
// but malformed one is.
func argAddress(ev models.RawEvent, name string) (string, error) {
	raw, ok := ev.Argument(name)
	if !ok {
		return "", nil
	}
	s, ok := stringValue(raw)
	if !ok || strings.TrimSpace(s) == "" {
		return "", nil
	}
	addr := strings.ToLower(strings.TrimSpace(s))
	if !isHexAddress(addr) {
		return "", &Error{Reason: ReasonBadAddress, Field: name, Detail: addr}
	}
	return addr, nil
}

func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// isCollateralAsset reports whether an asset id denotes the collateral
// (USDC) leg. The exchange encodes it as asset id zero.
func isCollateralAsset(id string) bool {
	switch strings.TrimSpace(id) {
	case "0", "0x0", "0x00":
		return true
	}
	return false
}

// normalizeAssetID lowercases hex ids and verifies that an id is either
// a decimal token id or 0x-prefixed hex.
func normalizeAssetID(id string) (string, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return "", false
	}
	if strings.HasPrefix(id, "0x") {
		body := id[2:]
		if len(body) == 0 || len(body)%2 != 0 {
			return id, false
		}
		if _, err := hex.DecodeString(body); err != nil {
			return id, false
		}
		return id, true
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return id, false
		}
	}
	return id, true
}
