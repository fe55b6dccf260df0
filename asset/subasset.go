package asset

import (
	"fmt"
	"math/big"
	"strings"

	"aspchain/config"
)

// SubassetDigits is the 68-symbol alphabet subasset child names draw from.
// Digit values are 1-indexed so that leading low-value characters survive the
// round trip through the packed integer form.
const SubassetDigits = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789.-_@!"

const maxSubassetLength = 250

var subassetBase = big.NewInt(int64(len(SubassetDigits) + 1)) // 68

// ParseSubassetFromAssetName splits and validates a PARENT.child name. It
// returns empty strings when the name carries no child part at all, and an
// error when either part is syntactically invalid.
func ParseSubassetFromAssetName(name string) (parent, longname string, err error) {
	dot := strings.Index(name, ".")
	if dot < 0 {
		return "", "", nil
	}
	parent = name[:dot]
	child := name[dot+1:]

	if err := validateSubassetParentName(parent); err != nil {
		return "", "", err
	}
	if err := ValidateSubassetLongname(name, child); err != nil {
		return "", "", err
	}
	return parent, name, nil
}

// ValidateSubassetLongname checks the full longname and its child part. An
// empty child selects the part after the first period of longname.
func ValidateSubassetLongname(longname, child string) error {
	if child == "" {
		if dot := strings.Index(longname, "."); dot >= 0 {
			child = longname[dot+1:]
		}
	}
	if len(child) < 1 {
		return fmt.Errorf("%w: subasset name too short", ErrAssetName)
	}
	if len(longname) > maxSubassetLength {
		return fmt.Errorf("%w: subasset name too long", ErrAssetName)
	}

	previous := byte('.')
	for i := 0; i < len(child); i++ {
		c := child[i]
		if strings.IndexByte(SubassetDigits, c) < 0 {
			return fmt.Errorf("%w: subasset name contains invalid character: %q", ErrAssetName, c)
		}
		if c == '.' && previous == '.' {
			return fmt.Errorf("%w: subasset name contains consecutive periods", ErrAssetName)
		}
		previous = c
	}
	if previous == '.' {
		return fmt.Errorf("%w: subasset name ends with a period", ErrAssetName)
	}
	return nil
}

func validateSubassetParentName(name string) error {
	if name == config.GasAsset || name == config.ProtocolAsset {
		return fmt.Errorf("%w: parent asset cannot be %s", ErrAssetName, name)
	}
	if len(name) < 4 {
		return fmt.Errorf("%w: parent asset name too short", ErrAssetName)
	}
	if len(name) >= 13 {
		return fmt.Errorf("%w: parent asset name too long", ErrAssetName)
	}
	if strings.HasPrefix(name, config.NumericAssetPrefix) {
		return fmt.Errorf("%w: parent asset name starts with %s", ErrAssetName, config.NumericAssetPrefix)
	}
	for _, c := range name {
		if !strings.ContainsRune(b26Digits, c) {
			return fmt.Errorf("%w: parent asset name contains invalid character: %q", ErrAssetName, c)
		}
	}
	return nil
}

// CompactSubassetLongname packs a subasset longname into a minimal big-endian
// byte string via base-68 positional encoding. All characters must belong to
// SubassetDigits.
func CompactSubassetLongname(s string) []byte {
	packed := new(big.Int)
	for i := 0; i < len(s); i++ {
		digit := strings.IndexByte(SubassetDigits, s[i]) + 1
		packed.Mul(packed, subassetBase)
		packed.Add(packed, big.NewInt(int64(digit)))
	}
	return packed.Bytes()
}

// ExpandSubassetLongname unpacks the byte form produced by
// CompactSubassetLongname back into the longname string.
func ExpandSubassetLongname(raw []byte) string {
	packed := new(big.Int).SetBytes(raw)
	if packed.Sign() == 0 {
		return ""
	}
	var rev []byte
	mod := new(big.Int)
	for packed.Sign() != 0 {
		packed.DivMod(packed, subassetBase, mod)
		digit := int(mod.Int64()) - 1
		if digit < 0 {
			digit = len(SubassetDigits) - 1
		}
		rev = append(rev, SubassetDigits[digit])
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return string(rev)
}
