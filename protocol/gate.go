// Package protocol answers whether a named protocol change is active at a
// given block height. Rule changes activate at fixed heights that may differ
// between the production and test networks; old blocks must replay under the
// rules that were active when they were mined, so the gate is consulted with
// the height of the block being processed, never the chain tip.
package protocol

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Names of the protocol changes this build knows about.
const (
	ChangeIssuanceNameFix       = "issuance_name_fix"
	ChangeHotfixNumericAssets   = "hotfix_numeric_assets"
	ChangeSubassets             = "subassets"
	ChangeMaxFeeFraction        = "max_fee_fraction"
	ChangeOptionsRequireMemo    = "options_require_memo"
	ChangeBroadcastInvalidCheck = "broadcast_invalid_check"
	ChangeBroadcastPackText     = "broadcast_pack_text"
)

// ErrUnknownChange is returned when a handler asks about a change that is not
// in the activation table. This is a build configuration error, not a
// validation problem.
var ErrUnknownChange = errors.New("protocol: unknown protocol change")

// Change records the activation heights of one protocol change.
type Change struct {
	MainnetHeight int64 `yaml:"mainnet"`
	TestnetHeight int64 `yaml:"testnet"`
}

// Table maps change names to their activation heights. It is immutable for a
// given build and loaded once at startup.
type Table map[string]Change

//go:embed changes.yaml
var defaultChanges []byte

// DefaultTable returns the activation table shipped with this build.
func DefaultTable() Table {
	table := Table{}
	if err := yaml.Unmarshal(defaultChanges, &table); err != nil {
		panic(fmt.Sprintf("protocol: embedded activation table is invalid: %v", err))
	}
	return table
}

// LoadTable reads an activation table from a YAML file. Entries replace the
// whole table; partial overrides are not supported, since a table missing a
// change the code consults would fail at runtime anyway.
func LoadTable(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("protocol: read activation table %s: %w", path, err)
	}
	table := Table{}
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("protocol: parse activation table %s: %w", path, err)
	}
	return table, nil
}

// Gate reports change activation for one network.
type Gate struct {
	table   Table
	testnet bool
}

// NewGate builds a gate over the given table. A nil table selects the
// default built-in one.
func NewGate(table Table, testnet bool) *Gate {
	if table == nil {
		table = DefaultTable()
	}
	return &Gate{table: table, testnet: testnet}
}

// Enabled reports whether the named change is active at the given height.
// Consulting the gate multiple times within one validate/parse pass with the
// same height always yields the same answer.
func (g *Gate) Enabled(name string, height int64) (bool, error) {
	change, ok := g.table[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownChange, name)
	}
	activation := change.MainnetHeight
	if g.testnet {
		activation = change.TestnetHeight
	}
	return height >= activation, nil
}
