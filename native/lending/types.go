package lending

import "math/big"

// Pool aggregates the shared liquidity and risk configuration for a single
// asset. Invariant: TotalLoans never exceeds AvailableLiquidity plus
// Reserves once repayments are accounted for.
type Pool struct {
	Asset                 string
	TotalCollateral       *big.Int
	TotalLoans            *big.Int
	AvailableLiquidity    *big.Int
	Reserves              *big.Int
	MinCollateralRatioBps uint64
}

// Clone returns a deep copy of the pool record.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalCollateral = cloneBigInt(p.TotalCollateral)
	clone.TotalLoans = cloneBigInt(p.TotalLoans)
	clone.AvailableLiquidity = cloneBigInt(p.AvailableLiquidity)
	clone.Reserves = cloneBigInt(p.Reserves)
	return &clone
}

// Position is a user's collateral and debt for one asset. Collateral and
// debt are denominated in the same asset; there is no cross-asset pricing.
type Position struct {
	Address           [20]byte
	Asset             string
	Collateral        *big.Int
	Principal         *big.Int
	AccruedInterest   *big.Int
	LiquiditySupplied *big.Int
	LastUpdate        uint64
}

// Debt returns principal plus accrued interest.
func (p *Position) Debt() *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Add(cloneBigInt(p.Principal), cloneBigInt(p.AccruedInterest))
}

// Clone returns a deep copy of the position record.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Collateral = cloneBigInt(p.Collateral)
	clone.Principal = cloneBigInt(p.Principal)
	clone.AccruedInterest = cloneBigInt(p.AccruedInterest)
	clone.LiquiditySupplied = cloneBigInt(p.LiquiditySupplied)
	return &clone
}

// LoanRequest is an open peer-to-peer borrow offer. At most one unfulfilled
// request may exist per borrower.
type LoanRequest struct {
	ID               uint64
	Borrower         [20]byte
	Asset            string
	Amount           *big.Int
	RateBps          uint64
	DurationSeconds  uint64
	CollateralAmount *big.Int
	Fulfilled        bool
	Fulfiller        [20]byte
	CreatedAt        uint64
}

// Clone returns a deep copy of the request record.
func (r *LoanRequest) Clone() *LoanRequest {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Amount = cloneBigInt(r.Amount)
	clone.CollateralAmount = cloneBigInt(r.CollateralAmount)
	return &clone
}

// RiskParameters groups the protocol-wide lending limits applied when pools
// are created lazily.
type RiskParameters struct {
	// MinCollateralRatioBps is the collateral-to-debt floor in basis
	// points (10000 = 100%) applied to new pools.
	MinCollateralRatioBps uint64
}

// DefaultRiskParameters requires 150% collateralization.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{MinCollateralRatioBps: 15_000}
}
