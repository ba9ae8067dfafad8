package trust

import "math/big"

const (
	// InitialScore is assigned at registration.
	InitialScore = 500
	// MaxScore bounds every score from above; zero bounds it from below.
	MaxScore = 1000

	// SuccessDelta is added on a successful transaction.
	SuccessDelta = 5
	// FailureDelta is subtracted on a failed transaction.
	FailureDelta = 20
	// EndorseDelta is added when a peer endorsement is received.
	EndorseDelta = 10
)

// Score is the per-account reputation record. The score value is bounded to
// [0, MaxScore] by saturating arithmetic: adjustments clamp instead of
// wrapping or aborting.
type Score struct {
	Address       [20]byte
	Value         uint64
	SuccessfulTx  uint64
	FailedTx      uint64
	TotalBorrowed *big.Int
	TotalRepaid   *big.Int
	Endorsers     [][20]byte
	LastUpdate    uint64
}

// Clone returns a deep copy so cached reads cannot alias committed state.
func (s *Score) Clone() *Score {
	if s == nil {
		return nil
	}
	clone := *s
	clone.TotalBorrowed = cloneBigInt(s.TotalBorrowed)
	clone.TotalRepaid = cloneBigInt(s.TotalRepaid)
	clone.Endorsers = make([][20]byte, len(s.Endorsers))
	copy(clone.Endorsers, s.Endorsers)
	return &clone
}

// EndorsedBy reports whether the endorser already appears in the set.
func (s *Score) EndorsedBy(endorser [20]byte) bool {
	if s == nil {
		return false
	}
	for _, existing := range s.Endorsers {
		if existing == endorser {
			return true
		}
	}
	return false
}

func (s *Score) addSaturating(delta uint64) {
	next := s.Value + delta
	if next > MaxScore || next < s.Value {
		next = MaxScore
	}
	s.Value = next
}

func (s *Score) subSaturating(delta uint64) {
	if delta >= s.Value {
		s.Value = 0
		return
	}
	s.Value -= delta
}

// ReputationLevel maps a score onto the protocol's 0-5 reputation tiers.
func ReputationLevel(score uint64) uint8 {
	switch {
	case score >= 900:
		return 5
	case score >= 750:
		return 4
	case score >= 600:
		return 3
	case score >= 400:
		return 2
	case score >= 200:
		return 1
	default:
		return 0
	}
}

// CreditLimit scales a base amount by the score: base * score / MaxScore,
// truncated.
func CreditLimit(base *big.Int, score uint64) *big.Int {
	if base == nil || base.Sign() <= 0 || score == 0 {
		return big.NewInt(0)
	}
	if score > MaxScore {
		score = MaxScore
	}
	limit := new(big.Int).Mul(base, new(big.Int).SetUint64(score))
	return limit.Quo(limit, big.NewInt(MaxScore))
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
