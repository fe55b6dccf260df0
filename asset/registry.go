package asset

import (
	"context"
	"fmt"
	"log/slog"

	"aspchain/protocol"
)

// Registry is the persisted asset registry contract. Assets are generated
// once; after the hotfix_numeric_assets change every subsequent reference is
// a registry lookup rather than a recomputation.
type Registry interface {
	AssetIDByName(ctx context.Context, name string) (uint64, bool, error)
	AssetNameByID(ctx context.Context, id uint64) (string, bool, error)
	AssetNameByLongname(ctx context.Context, longname string) (string, bool, error)
}

// ID resolves an asset name to its numeric id, via the registry once
// hotfix_numeric_assets is active and by recomputation before that.
func ID(ctx context.Context, reg Registry, gate *protocol.Gate, name string, height int64) (uint64, error) {
	hotfix, err := gate.Enabled(protocol.ChangeHotfixNumericAssets, height)
	if err != nil {
		return 0, err
	}
	if !hotfix {
		return GenerateAssetID(gate, name, height)
	}
	id, ok, err := reg.AssetIDByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAsset, name)
	}
	return id, nil
}

// Name resolves a numeric id to its asset name, via the registry once
// hotfix_numeric_assets is active and by recomputation before that.
func Name(ctx context.Context, reg Registry, gate *protocol.Gate, id uint64, height int64) (string, error) {
	hotfix, err := gate.Enabled(protocol.ChangeHotfixNumericAssets, height)
	if err != nil {
		return "", err
	}
	if !hotfix {
		return GenerateAssetName(gate, id, height)
	}
	name, ok, err := reg.AssetNameByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: id %d", ErrAsset, id)
	}
	return name, nil
}

// ResolveSubassetLongname translates an existing subasset longname
// (PARENT.child) to its assigned numeric asset name. This is name
// resolution, not validation: when the subassets change is inactive, the
// name is not a well-formed subasset, or no asset has been assigned to the
// longname yet, the input is returned unchanged.
func ResolveSubassetLongname(ctx context.Context, reg Registry, gate *protocol.Gate, name string, height int64) (string, error) {
	active, err := gate.Enabled(protocol.ChangeSubassets, height)
	if err != nil {
		return "", err
	}
	if !active {
		return name, nil
	}

	_, longname, err := ParseSubassetFromAssetName(name)
	if err != nil {
		slog.Warn("asset: invalid subasset", "name", name, "error", err)
		return name, nil
	}
	if longname == "" {
		return name, nil
	}

	assigned, ok, err := reg.AssetNameByLongname(ctx, longname)
	if err != nil {
		return "", err
	}
	if !ok {
		return name, nil
	}
	return assigned, nil
}
