package events

import (
	"math/big"
	"strconv"
	"strings"

	"claimdrop/crypto"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func zeroBytes(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func displayAddress(addr [20]byte) string {
	if zeroBytes(addr[:]) {
		return ""
	}
	return crypto.Display(addr)
}
