package types

import (
	"fmt"
	"strings"
)

// BaseAsset is the protocol settlement asset used by payments and circle
// pools. Lending pools accept any registered asset symbol.
const BaseAsset = "CRD"

// NormalizeAsset canonicalises an asset symbol: trimmed, uppercase, one to
// eight ASCII letters or digits.
func NormalizeAsset(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", fmt.Errorf("asset symbol required")
	}
	if len(trimmed) > 8 {
		return "", fmt.Errorf("asset symbol too long: %s", trimmed)
	}
	for _, r := range trimmed {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("invalid asset symbol: %s", trimmed)
		}
	}
	return trimmed, nil
}
