package config

import "math"

// Consensus constants. These values are part of the protocol and must not be
// made configurable: every node has to agree on them to replay history.
const (
	// Unit is the number of base units in one whole unit of a divisible
	// asset. The same across assets.
	Unit int64 = 100000000

	// MaxInt bounds every quantity the storage engine persists. Computed
	// values above this bound are a validation problem, not a clamp.
	MaxInt int64 = math.MaxInt64

	// GasAsset is the host chain's native currency. It is referenced by
	// messages but never tracked by the ledger.
	GasAsset = "GASP"

	// ProtocolAsset is the protocol's own token, payable via the ledger.
	ProtocolAsset = "ASP"

	// NumericAssetPrefix marks numeric asset names (e.g. ASP95428956661682177).
	NumericAssetPrefix = "ASP"

	// DefaultMultisigDustSize is the host-chain dust threshold in base
	// units. Dividend payouts in GasAsset below it are skipped entirely.
	DefaultMultisigDustSize int64 = 7800

	// DefaultRegularDustSize is the dust threshold for ordinary
	// host-chain outputs. Nothing in the embedded-message engine reads
	// it; it is published for the transaction construction tooling that
	// shares these parameters.
	DefaultRegularDustSize int64 = 5430

	// AddressOptionRequireMemo is the only address option currently defined.
	AddressOptionRequireMemo int64 = 1

	// AddressOptionMaxValue caps the integer accepted by an
	// "options <n>" broadcast.
	AddressOptionMaxValue int64 = AddressOptionRequireMemo

	// UndoLogMaxPastBlocks is how many past blocks of undo journal entries
	// are retained for the external reorg tooling.
	UndoLogMaxPastBlocks int64 = 100
)

// Network names accepted in the node configuration.
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)
