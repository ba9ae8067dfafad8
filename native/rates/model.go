package rates

import "math/big"

// SecondsPerYear is the simple-interest year used for accrual (365 days).
const SecondsPerYear = 31_536_000

// MaxBps is the basis-point representation of 100%.
const MaxBps = 10_000

// Model holds the kinked utilization curve parameters. All parameters are
// integer basis points and bounded by MaxBps.
type Model struct {
	BaseRateBps           uint64
	OptimalUtilizationBps uint64
	Slope1Bps             uint64
	Slope2Bps             uint64
	LastUpdate            uint64
}

// DefaultModel is the starting configuration applied at protocol genesis: a
// 2% base rate with the kink at 80% utilization.
func DefaultModel() *Model {
	return &Model{
		BaseRateBps:           200,
		OptimalUtilizationBps: 8_000,
		Slope1Bps:             1_000,
		Slope2Bps:             3_000,
	}
}

// Clone returns a copy so engine snapshots cannot alias committed state.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// RateBps evaluates the piecewise-linear borrow rate at the supplied
// utilization. The curve is continuous at the kink and non-decreasing in
// utilization; division truncates toward zero.
func (m *Model) RateBps(utilizationBps uint64) uint64 {
	if m == nil {
		return 0
	}
	if utilizationBps > MaxBps {
		utilizationBps = MaxBps
	}
	optimal := m.OptimalUtilizationBps
	if optimal == 0 || utilizationBps <= optimal {
		if optimal == 0 {
			return m.BaseRateBps
		}
		return m.BaseRateBps + utilizationBps*m.Slope1Bps/optimal
	}
	excess := utilizationBps - optimal
	span := uint64(MaxBps) - optimal
	if span == 0 {
		return m.BaseRateBps + m.Slope1Bps
	}
	return m.BaseRateBps + m.Slope1Bps + excess*m.Slope2Bps/span
}

// AccruedInterest computes simple interest over an elapsed window:
// principal * rateBps * seconds / (10000 * SecondsPerYear), truncated. The
// accumulator is widened through big.Int so intermediate products cannot
// overflow.
func AccruedInterest(principal *big.Int, rateBps, seconds uint64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || rateBps == 0 || seconds == 0 {
		return big.NewInt(0)
	}
	interest := new(big.Int).Mul(principal, new(big.Int).SetUint64(rateBps))
	interest.Mul(interest, new(big.Int).SetUint64(seconds))
	denom := new(big.Int).Mul(big.NewInt(MaxBps), big.NewInt(SecondsPerYear))
	return interest.Quo(interest, denom)
}

// Utilization derives the basis-point pool utilization from outstanding
// loans and idle liquidity. An empty pool reads as zero; the result is
// clamped to MaxBps.
func Utilization(totalLoans, availableLiquidity *big.Int) uint64 {
	if totalLoans == nil || totalLoans.Sign() <= 0 {
		return 0
	}
	total := new(big.Int).Set(totalLoans)
	if availableLiquidity != nil && availableLiquidity.Sign() > 0 {
		total.Add(total, availableLiquidity)
	}
	if total.Sign() == 0 {
		return 0
	}
	scaled := new(big.Int).Mul(totalLoans, big.NewInt(MaxBps))
	scaled.Quo(scaled, total)
	if !scaled.IsUint64() || scaled.Uint64() > MaxBps {
		return MaxBps
	}
	return scaled.Uint64()
}
