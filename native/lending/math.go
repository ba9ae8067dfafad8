package lending

import "math/big"

var basisPoints = big.NewInt(10_000)

// requiredCollateral computes debt * ratioBps / 10000 with truncating
// division. The product is widened through big.Int so the check never
// overflows an intermediate accumulator.
func requiredCollateral(debt *big.Int, ratioBps uint64) *big.Int {
	if debt == nil || debt.Sign() <= 0 {
		return big.NewInt(0)
	}
	required := new(big.Int).Mul(debt, new(big.Int).SetUint64(ratioBps))
	return required.Quo(required, basisPoints)
}

// collateralSufficient reports whether collateral covers the required floor
// for the supplied debt. Zero debt is always sufficient.
func collateralSufficient(collateral, debt *big.Int, ratioBps uint64) bool {
	if debt == nil || debt.Sign() == 0 {
		return true
	}
	if collateral == nil {
		return false
	}
	return collateral.Cmp(requiredCollateral(debt, ratioBps)) >= 0
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func minBigInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
