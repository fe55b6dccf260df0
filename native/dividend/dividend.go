// Package dividend implements dividend payments: the issuer of an
// asset distributes a quantity of some other asset to every holder,
// proportional to what each holds.
package dividend

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"aspchain/asset"
	"aspchain/config"
	"aspchain/core/types"
	"aspchain/core/wire"
	"aspchain/ledger"
	"aspchain/native/common"
	"aspchain/protocol"
	"aspchain/storage"
)

// TypeID is the wire tag for dividend messages.
const TypeID uint32 = 50

const (
	legacyBodyLength  = 8 + 8
	currentBodyLength = 8 + 8 + 8
)

// legacyWireCutoff is the last mainnet block at which the two-field
// body form (dividend asset implied) is still accepted.
const legacyWireCutoff = 288150

// perHolderFee is charged in the protocol asset for each distinct
// holder receiving a payout (0.0002 of a unit each).
const perHolderFee = 20000

// Output is one holder payout inside a distribution.
type Output struct {
	Address        string
	HolderQuantity int64
	Quantity       int64
}

// Distribution is the result of pricing a dividend against the current
// holder set.
type Distribution struct {
	Total   int64
	Fee     int64
	Outputs []Output
}

// Handler validates, composes and parses dividend messages.
type Handler struct {
	ledger  *ledger.Ledger
	gate    *protocol.Gate
	testnet bool
}

func NewHandler(l *ledger.Ledger, gate *protocol.Gate, testnet bool) *Handler {
	return &Handler{ledger: l, gate: gate, testnet: testnet}
}

// Validate prices the dividend and collects problems in a fixed order.
// The distribution is nil when the asset or dividend asset does not
// exist.
func (h *Handler) Validate(ctx context.Context, source string, quantityPerUnit int64, assetName, dividendAsset string, blockIndex int64) (*Distribution, []string, error) {
	var problems []string
	store := h.ledger.Store()

	if assetName == config.GasAsset {
		problems = append(problems, fmt.Sprintf("cannot pay dividends to holders of %s", config.GasAsset))
	}
	if assetName == config.ProtocolAsset {
		problems = append(problems, fmt.Sprintf("cannot pay dividends to holders of %s", config.ProtocolAsset))
	}
	if quantityPerUnit <= 0 {
		problems = append(problems, "non-positive quantity per unit")
	}

	issuances, err := store.ValidIssuances(ctx, assetName)
	if err != nil {
		return nil, nil, err
	}
	if len(issuances) == 0 {
		problems = append(problems, fmt.Sprintf("no such asset, %s.", assetName))
		return nil, problems, nil
	}
	divisible := issuances[0].Divisible
	if issuances[len(issuances)-1].Issuer != source {
		problems = append(problems, "only issuer can pay dividends")
	}

	dividendDivisible := true
	if dividendAsset != config.GasAsset && dividendAsset != config.ProtocolAsset {
		dividendIssuances, err := store.ValidIssuances(ctx, dividendAsset)
		if err != nil {
			return nil, nil, err
		}
		if len(dividendIssuances) == 0 {
			problems = append(problems, fmt.Sprintf("no such dividend asset, %s.", dividendAsset))
			return nil, problems, nil
		}
		dividendDivisible = dividendIssuances[0].Divisible
	}

	holders, err := h.ledger.Holders(ctx, assetName)
	if err != nil {
		return nil, nil, err
	}

	divisor := big.NewInt(1)
	unit := big.NewInt(config.Unit)
	if divisible {
		divisor.Mul(divisor, unit)
	}
	if !dividendDivisible {
		divisor.Mul(divisor, unit)
	}
	dustFloor := big.NewInt(config.DefaultMultisigDustSize)

	dist := &Distribution{}
	total := new(big.Int)
	distinct := make(map[string]struct{})
	for _, holder := range holders {
		if holder.Address == source {
			continue
		}
		quantity := new(big.Int).Mul(big.NewInt(holder.Quantity), big.NewInt(quantityPerUnit))
		quantity.Quo(quantity, divisor)
		if dividendAsset == config.GasAsset && quantity.Cmp(dustFloor) < 0 {
			continue
		}
		dist.Outputs = append(dist.Outputs, Output{
			Address:        holder.Address,
			HolderQuantity: holder.Quantity,
			Quantity:       quantity.Int64(),
		})
		distinct[holder.Address] = struct{}{}
		total.Add(total, quantity)
	}
	if total.Sign() == 0 {
		problems = append(problems, "zero dividend")
	}

	if dividendAsset != config.GasAsset {
		balance, _, err := store.Balance(ctx, source, dividendAsset)
		if err != nil {
			return nil, nil, err
		}
		if big.NewInt(balance).Cmp(total) < 0 {
			problems = append(problems, fmt.Sprintf("insufficient funds (%s)", dividendAsset))
		}
	}

	if len(problems) == 0 && dividendAsset != config.GasAsset {
		dist.Fee = perHolderFee * int64(len(distinct))
		balance, _, err := store.Balance(ctx, source, config.ProtocolAsset)
		if err != nil {
			return nil, nil, err
		}
		if balance < dist.Fee {
			problems = append(problems, fmt.Sprintf("insufficient funds (%s)", config.ProtocolAsset))
		}
	}

	if len(problems) == 0 && dividendAsset == config.ProtocolAsset {
		totalCost := new(big.Int).Add(total, big.NewInt(dist.Fee))
		balance, _, err := store.Balance(ctx, source, dividendAsset)
		if err != nil {
			return nil, nil, err
		}
		if big.NewInt(balance).Cmp(totalCost) < 0 {
			problems = append(problems, fmt.Sprintf("insufficient funds (%s)", dividendAsset))
		}
	}

	if total.Cmp(big.NewInt(config.MaxInt)) > 0 {
		problems = append(problems, "integer overflow")
	} else {
		dist.Total = total.Int64()
	}
	return dist, problems, nil
}

// Compose packs a dividend for signing. Subasset longnames are
// resolved to their parent asset names first.
func (h *Handler) Compose(ctx context.Context, source string, quantityPerUnit int64, assetName, dividendAsset string, blockIndex int64) ([]byte, error) {
	store := h.ledger.Store()
	assetName, err := asset.ResolveSubassetLongname(ctx, store, h.gate, assetName, blockIndex)
	if err != nil {
		return nil, fmt.Errorf("dividend: %w", err)
	}
	dividendAsset, err = asset.ResolveSubassetLongname(ctx, store, h.gate, dividendAsset, blockIndex)
	if err != nil {
		return nil, fmt.Errorf("dividend: %w", err)
	}

	// GASP dividends are paid as plain host-chain sends to each holder,
	// never as an embedded message.
	if dividendAsset == config.GasAsset {
		return nil, &common.ComposeError{Problems: []string{"cannot pay GASP dividends within protocol"}}
	}

	_, problems, err := h.Validate(ctx, source, quantityPerUnit, assetName, dividendAsset, blockIndex)
	if err != nil {
		return nil, fmt.Errorf("dividend: %w", err)
	}
	if len(problems) > 0 {
		return nil, &common.ComposeError{Problems: problems}
	}

	assetID, err := asset.ID(ctx, store, h.gate, assetName, blockIndex)
	if err != nil {
		return nil, fmt.Errorf("dividend: %w", err)
	}
	dividendAssetID, err := asset.ID(ctx, store, h.gate, dividendAsset, blockIndex)
	if err != nil {
		return nil, fmt.Errorf("dividend: %w", err)
	}

	body := make([]byte, currentBodyLength)
	binary.BigEndian.PutUint64(body[0:8], uint64(quantityPerUnit))
	binary.BigEndian.PutUint64(body[8:16], assetID)
	binary.BigEndian.PutUint64(body[16:24], dividendAssetID)
	return wire.PackTypeTag(TypeID, body), nil
}

// unpack decodes a dividend body, resolving asset ids to names. ok is
// false when the body has the wrong shape or an id does not resolve.
func (h *Handler) unpack(ctx context.Context, message []byte, blockIndex int64) (quantityPerUnit uint64, assetName, dividendAsset string, ok bool) {
	store := h.ledger.Store()
	switch {
	case (blockIndex > legacyWireCutoff || h.testnet) && len(message) == currentBodyLength:
		quantityPerUnit = binary.BigEndian.Uint64(message[0:8])
		assetID := binary.BigEndian.Uint64(message[8:16])
		dividendAssetID := binary.BigEndian.Uint64(message[16:24])
		name, err := asset.Name(ctx, store, h.gate, assetID, blockIndex)
		if err != nil {
			return 0, "", "", false
		}
		dividendName, err := asset.Name(ctx, store, h.gate, dividendAssetID, blockIndex)
		if err != nil {
			return 0, "", "", false
		}
		return quantityPerUnit, name, dividendName, true
	case len(message) == legacyBodyLength:
		quantityPerUnit = binary.BigEndian.Uint64(message[0:8])
		assetID := binary.BigEndian.Uint64(message[8:16])
		name, err := asset.Name(ctx, store, h.gate, assetID, blockIndex)
		if err != nil {
			return 0, "", "", false
		}
		return quantityPerUnit, name, config.ProtocolAsset, true
	default:
		return 0, "", "", false
	}
}

// Parse applies a confirmed dividend to the ledger and records it.
// Rows whose status mentions an integer overflow are dropped.
func (h *Handler) Parse(ctx context.Context, tx types.TxContext, message []byte) (string, error) {
	rawQuantity, assetName, dividendAsset, ok := h.unpack(ctx, message, tx.BlockIndex)

	status := common.StatusValid
	if !ok {
		status = common.StatusCouldNotUnpack
	}
	if dividendAsset == config.GasAsset {
		status = fmt.Sprintf("invalid: cannot pay %s dividends within protocol", config.GasAsset)
	}

	quantityPerUnit := int64(0)
	if ok {
		if rawQuantity > uint64(config.MaxInt) {
			quantityPerUnit = config.MaxInt
		} else {
			quantityPerUnit = int64(rawQuantity)
		}
	}

	var dist *Distribution
	if status == common.StatusValid {
		var problems []string
		var err error
		dist, problems, err = h.Validate(ctx, tx.Source, quantityPerUnit, assetName, dividendAsset, tx.BlockIndex)
		if err != nil {
			return "", fmt.Errorf("dividend: %w", err)
		}
		if len(problems) > 0 {
			status = common.InvalidStatus(problems)
		}
	}

	if status == common.StatusValid {
		if err := h.ledger.Debit(ctx, tx.BlockIndex, tx.Source, dividendAsset, dist.Total, "dividend", tx.TxHash); err != nil {
			return "", fmt.Errorf("dividend: %w", err)
		}
		if err := h.ledger.Debit(ctx, tx.BlockIndex, tx.Source, config.ProtocolAsset, dist.Fee, "dividend fee", tx.TxHash); err != nil {
			return "", fmt.Errorf("dividend: %w", err)
		}
		for _, output := range dist.Outputs {
			if err := h.ledger.Credit(ctx, tx.BlockIndex, output.Address, dividendAsset, output.Quantity, "dividend", tx.TxHash); err != nil {
				return "", fmt.Errorf("dividend: %w", err)
			}
		}
	}

	row := storage.DividendRow{
		TxIndex:    tx.TxIndex,
		TxHash:     tx.TxHash,
		BlockIndex: tx.BlockIndex,
		Source:     tx.Source,
		Status:     status,
	}
	if ok {
		row.Asset = sql.NullString{String: assetName, Valid: true}
		row.DividendAsset = sql.NullString{String: dividendAsset, Valid: true}
		row.QuantityPerUnit = sql.NullInt64{Int64: quantityPerUnit, Valid: true}
	}
	if dist != nil {
		row.FeePaid = dist.Fee
	}

	if strings.Contains(status, "integer overflow") {
		slog.Warn("not storing dividend", "txHash", tx.TxHash, "status", status)
		return status, nil
	}
	if err := h.ledger.Store().InsertDividend(ctx, row); err != nil {
		return "", fmt.Errorf("dividend: %w", err)
	}
	return status, nil
}
