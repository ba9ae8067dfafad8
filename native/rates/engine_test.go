package rates

import (
	"errors"
	"testing"
)

type mockState struct {
	model     *Model
	proposals map[uint64]*Proposal
	order     []uint64
	seq       uint64
}

func newMockState() *mockState {
	return &mockState{proposals: make(map[uint64]*Proposal)}
}

func (m *mockState) RatesGetModel() (*Model, error) { return m.model.Clone(), nil }

func (m *mockState) RatesPutModel(model *Model) error {
	m.model = model.Clone()
	return nil
}

func (m *mockState) RatesNextProposalID() (uint64, error) {
	m.seq++
	return m.seq, nil
}

func (m *mockState) RatesPutProposal(p *Proposal) error {
	if _, ok := m.proposals[p.ID]; !ok {
		m.order = append(m.order, p.ID)
	}
	m.proposals[p.ID] = p.Clone()
	return nil
}

func (m *mockState) RatesGetProposal(id uint64) (*Proposal, bool, error) {
	p, ok := m.proposals[id]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (m *mockState) RatesListProposals() ([]*Proposal, error) {
	out := make([]*Proposal, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.proposals[id].Clone())
	}
	return out, nil
}

type mockAdmin struct {
	admin [20]byte
}

func (m mockAdmin) IsAdmin(addr [20]byte) bool { return addr == m.admin }

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func newTestEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	engine.SetAdminView(mockAdmin{admin: addr(1)})
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine, state
}

func TestModelDefaultsWhenUnset(t *testing.T) {
	engine, _ := newTestEngine(t)
	model, err := engine.Model()
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	want := DefaultModel()
	if *model != *want {
		t.Fatalf("expected genesis defaults, got %+v", model)
	}
}

func TestUpdateRequiresAdmin(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.UpdateBaseRate(addr(2), 300); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if err := engine.UpdateBaseRate(addr(1), 300); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	model, _ := engine.Model()
	if model.BaseRateBps != 300 {
		t.Fatalf("base rate not updated: %d", model.BaseRateBps)
	}
	if model.LastUpdate == 0 {
		t.Fatal("expected LastUpdate to be stamped")
	}
}

func TestUpdateBoundsChecked(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.UpdateBaseRate(addr(1), MaxBps+1); !errors.Is(err, ErrRateOutOfRange) {
		t.Fatalf("expected ErrRateOutOfRange, got %v", err)
	}
	if err := engine.UpdateOptimalUtilization(addr(1), MaxBps+1); !errors.Is(err, ErrRateOutOfRange) {
		t.Fatalf("expected ErrRateOutOfRange, got %v", err)
	}
	if err := engine.UpdateSlopes(addr(1), 100, MaxBps+1); !errors.Is(err, ErrRateOutOfRange) {
		t.Fatalf("expected ErrRateOutOfRange, got %v", err)
	}
}

func TestUpdateSlopesAtomic(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.UpdateSlopes(addr(1), 150, 700); err != nil {
		t.Fatalf("update slopes: %v", err)
	}
	model, _ := engine.Model()
	if model.Slope1Bps != 150 || model.Slope2Bps != 700 {
		t.Fatalf("slopes not applied together: %d/%d", model.Slope1Bps, model.Slope2Bps)
	}
}

func TestProposalsStayPending(t *testing.T) {
	engine, _ := newTestEngine(t)
	proposal, err := engine.SubmitProposal(addr(2), ProposalKindBaseRate, []uint64{400})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if proposal.Status != ProposalStatusPending {
		t.Fatalf("expected pending status, got %d", proposal.Status)
	}

	// The proposal never touches the live curve.
	model, _ := engine.Model()
	if model.BaseRateBps != DefaultModel().BaseRateBps {
		t.Fatalf("proposal mutated the model: %d", model.BaseRateBps)
	}

	stored, err := engine.Proposal(proposal.ID)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if stored.Status != ProposalStatusPending {
		t.Fatalf("stored proposal advanced to %d", stored.Status)
	}

	list, err := engine.Proposals()
	if err != nil {
		t.Fatalf("list proposals: %v", err)
	}
	if len(list) != 1 || list[0].ID != proposal.ID {
		t.Fatalf("unexpected proposal list: %+v", list)
	}
}

func TestSubmitProposalValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	if _, err := engine.SubmitProposal(addr(2), ProposalKind("bogus"), []uint64{1}); !errors.Is(err, ErrProposalKindInvalid) {
		t.Fatalf("expected ErrProposalKindInvalid, got %v", err)
	}
	if _, err := engine.SubmitProposal(addr(2), ProposalKindSlopes, []uint64{100, MaxBps + 1}); !errors.Is(err, ErrRateOutOfRange) {
		t.Fatalf("expected ErrRateOutOfRange, got %v", err)
	}
}
