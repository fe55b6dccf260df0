// Package asset maps human-readable asset identifiers to compact numeric ids
// and back. Two reserved identities cover the host chain's native currency
// and the protocol token; every other asset id is derived from (or parsed out
// of) its name. The mapping is part of consensus: both directions must be
// bit-exact at every block height.
package asset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"aspchain/config"
	"aspchain/protocol"
)

const b26Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// MinNumericID is the smallest id a numeric asset name may carry; anything
// below 26^12 belongs to the alphabetic name space.
const MinNumericID uint64 = 95428956661682177 // 26^12 + 1

// minAssetID is the smallest valid alphabetic asset id (26^3).
const minAssetID uint64 = 17576

var (
	// ErrAssetName marks a malformed or out-of-range asset name.
	ErrAssetName = errors.New("asset: invalid asset name")
	// ErrAssetID marks an asset id outside the valid id space.
	ErrAssetID = errors.New("asset: invalid asset id")
	// ErrAsset marks a reference to an asset the registry does not know.
	ErrAsset = errors.New("asset: no such asset")
)

// GenerateAssetID derives the numeric id for an asset name. The base of the
// alphabetic encoding depends on the issuance_name_fix change at the given
// height: the upgraded scheme shifts every digit by one so that names
// containing 'A' map injectively.
func GenerateAssetID(gate *protocol.Gate, name string, height int64) (uint64, error) {
	switch name {
	case config.GasAsset:
		return 0, nil
	case config.ProtocolAsset:
		return 1, nil
	}

	if len(name) < 4 {
		return 0, fmt.Errorf("%w: too short", ErrAssetName)
	}

	if strings.HasPrefix(name, config.NumericAssetPrefix) {
		id, err := strconv.ParseUint(name[len(config.NumericAssetPrefix):], 10, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return 0, fmt.Errorf("%w: numeric asset name not in range", ErrAssetName)
			}
			return 0, fmt.Errorf("%w: non-numeric asset name starts with %s", ErrAssetName, config.NumericAssetPrefix)
		}
		if id < MinNumericID {
			return 0, fmt.Errorf("%w: numeric asset name not in range", ErrAssetName)
		}
		return id, nil
	}

	if len(name) >= 13 {
		return 0, fmt.Errorf("%w: long asset names must be numeric", ErrAssetName)
	}

	nameFix, err := gate.Enabled(protocol.ChangeIssuanceNameFix, height)
	if err != nil {
		return 0, err
	}

	var id uint64
	for _, c := range name {
		digit := strings.IndexRune(b26Digits, c)
		if digit < 0 {
			return 0, fmt.Errorf("%w: invalid character: %q", ErrAssetName, c)
		}
		if nameFix {
			id = id*27 + uint64(digit) + 1
		} else {
			id = id*26 + uint64(digit)
		}
	}

	if id < minAssetID {
		return 0, fmt.Errorf("%w: too short", ErrAssetName)
	}
	return id, nil
}

// GenerateAssetName derives the asset name for a numeric id. It is the exact
// inverse of GenerateAssetID at a fixed height.
func GenerateAssetName(gate *protocol.Gate, id uint64, height int64) (string, error) {
	switch id {
	case 0:
		return config.GasAsset, nil
	case 1:
		return config.ProtocolAsset, nil
	}

	if id < minAssetID {
		return "", fmt.Errorf("%w: too low", ErrAssetID)
	}
	if id >= MinNumericID {
		return config.NumericAssetPrefix + strconv.FormatUint(id, 10), nil
	}

	nameFix, err := gate.Enabled(protocol.ChangeIssuanceNameFix, height)
	if err != nil {
		return "", err
	}

	var rev []byte
	for n := id; n > 0; {
		if nameFix {
			r := n % 27
			n /= 27
			digit := int(r) - 1
			if digit < 0 {
				digit = len(b26Digits) - 1
			}
			rev = append(rev, b26Digits[digit])
		} else {
			r := n % 26
			n /= 26
			rev = append(rev, b26Digits[r])
		}
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return string(rev), nil
}
