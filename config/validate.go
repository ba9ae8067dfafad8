package config

import (
	"fmt"
	"strings"

	"credchain/crypto"
)

const maxBps = 10_000

// Validate rejects configurations the engines would refuse at runtime.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if c.Lending.MinCollateralRatioBps < maxBps {
		return fmt.Errorf("config: MinCollateralRatioBps %d below 10000 would allow undercollateralized loans", c.Lending.MinCollateralRatioBps)
	}
	if c.Rates.BaseRateBps > maxBps {
		return fmt.Errorf("config: BaseRateBps %d exceeds 10000", c.Rates.BaseRateBps)
	}
	if c.Rates.OptimalUtilizationBps > maxBps {
		return fmt.Errorf("config: OptimalUtilizationBps %d exceeds 10000", c.Rates.OptimalUtilizationBps)
	}
	if c.Rates.Slope1Bps > maxBps || c.Rates.Slope2Bps > maxBps {
		return fmt.Errorf("config: slope parameters exceed 10000")
	}
	if addr := strings.TrimSpace(c.AdminAddress); addr != "" {
		if _, err := crypto.DecodeAddress(addr); err != nil {
			return fmt.Errorf("config: AdminAddress: %w", err)
		}
	}
	return nil
}

// Admin decodes the configured admin address. An empty setting returns the
// zero address and no error; callers decide whether that is acceptable.
func (c *Config) Admin() ([20]byte, error) {
	addr := strings.TrimSpace(c.AdminAddress)
	if addr == "" {
		return [20]byte{}, nil
	}
	decoded, err := crypto.DecodeAddress(addr)
	if err != nil {
		return [20]byte{}, err
	}
	return decoded.Raw(), nil
}
