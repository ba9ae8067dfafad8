package circles

import "math/big"

const (
	// MaxMembersCeiling bounds the membership limit a circle may declare.
	MaxMembersCeiling = 100
	// BiddingWindowSeconds is the fixed 7-day bidding round duration.
	BiddingWindowSeconds = 604_800
	// StakeToLoanRatioBps is the 200% stake backing every bid must carry.
	StakeToLoanRatioBps = 20_000
)

// Circle is a bounded-membership pooled lending group. The owner is always
// a member; the pool equals the sum of member stakes minus distributed bids.
type Circle struct {
	ID              uint64
	Owner           [20]byte
	Name            string
	Members         [][20]byte
	MaxMembers      uint64
	TotalPool       *big.Int
	MinContribution *big.Int
	Active          bool
	CreatedAt       uint64
}

// HasMember reports whether the address already belongs to the circle.
// Membership lists stay small (≤ MaxMembersCeiling) so a linear scan keeps
// first-match semantics identical to the distribution path.
func (c *Circle) HasMember(addr [20]byte) bool {
	if c == nil {
		return false
	}
	for _, member := range c.Members {
		if member == addr {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the circle record.
func (c *Circle) Clone() *Circle {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Members = make([][20]byte, len(c.Members))
	copy(clone.Members, c.Members)
	clone.TotalPool = cloneBigInt(c.TotalPool)
	clone.MinContribution = cloneBigInt(c.MinContribution)
	return &clone
}

// Stake records a member's contribution to one circle's pool.
type Stake struct {
	CircleID uint64
	Member   [20]byte
	Amount   *big.Int
	StakedAt uint64
}

// Clone returns a deep copy of the stake record.
func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Amount = cloneBigInt(s.Amount)
	return &clone
}

// Bid is a stake-backed offer to draw from the circle pool.
type Bid struct {
	Bidder   [20]byte
	Amount   *big.Int
	RateBps  uint64
	Accepted bool
}

// BiddingRound is one bidding window for a circle. Starting a new round
// supersedes the previous one, so at most one round is active per circle.
type BiddingRound struct {
	CircleID  uint64
	Round     uint64
	Bids      []Bid
	StartTime uint64
	EndTime   uint64
	Active    bool
}

// Clone returns a deep copy of the round and its bids.
func (r *BiddingRound) Clone() *BiddingRound {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Bids = make([]Bid, len(r.Bids))
	for i, bid := range r.Bids {
		clone.Bids[i] = bid
		clone.Bids[i].Amount = cloneBigInt(bid.Amount)
	}
	return &clone
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
