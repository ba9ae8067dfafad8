package rates

import "errors"

// ErrProposalKindInvalid marks submissions with an unsupported kind.
var ErrProposalKindInvalid = errors.New("rates engine: invalid proposal kind")

// ProposalKind names the parameter a proposal targets.
type ProposalKind string

const (
	ProposalKindBaseRate ProposalKind = "base_rate"
	ProposalKindOptimal  ProposalKind = "optimal_utilization"
	ProposalKindSlopes   ProposalKind = "slopes"
)

// Valid reports whether the kind is one of the supported targets.
func (k ProposalKind) Valid() bool {
	switch k {
	case ProposalKindBaseRate, ProposalKindOptimal, ProposalKindSlopes:
		return true
	default:
		return false
	}
}

// ProposalStatus tracks the lifecycle of a rate proposal. Only the pending
// status is reachable: no operation advances a proposal to execution, the
// registry exists so indexers and a future governance surface can consume it.
type ProposalStatus uint8

const (
	ProposalStatusPending ProposalStatus = iota
	ProposalStatusExecuted
	ProposalStatusRejected
)

// Proposal records a requested rate-parameter change.
type Proposal struct {
	ID          uint64
	Proposer    [20]byte
	Kind        ProposalKind
	ValuesBps   []uint64
	SubmittedAt uint64
	Status      ProposalStatus
}

// Clone returns a deep copy of the proposal.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	clone.ValuesBps = append([]uint64(nil), p.ValuesBps...)
	return &clone
}
