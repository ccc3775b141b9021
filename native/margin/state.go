package margin

import (
	"math/big"
)

// EngineState is the persistence surface the engine mutates. Implementations
// must return deep copies from getters: the engine rolls failed operations
// back by restoring a snapshot, so aliased values would leak partial writes.
type EngineState interface {
	Position(id [32]byte) (*Position, bool)
	PutPosition(p *Position) error
	Status(id [32]byte) PositionStatus
	SetStatus(id [32]byte, status PositionStatus) error

	FilledAmount(hash [32]byte) *big.Int
	SetFilledAmount(hash [32]byte, amount *big.Int) error
	CanceledAmount(hash [32]byte) *big.Int
	SetCanceledAmount(hash [32]byte, amount *big.Int) error

	TotalOwedRepaid(id [32]byte) *big.Int
	AddOwedRepaid(id [32]byte, amount *big.Int) error

	Snapshot() StateSnapshot
	Restore(StateSnapshot) error
}

// StateSnapshot is an opaque restoration token produced by Snapshot.
type StateSnapshot interface{}

// MemoryState is the in-memory EngineState used by the daemon and tests.
type MemoryState struct {
	positions  map[[32]byte]*Position
	statuses   map[[32]byte]PositionStatus
	filled     map[[32]byte]*big.Int
	canceled   map[[32]byte]*big.Int
	owedRepaid map[[32]byte]*big.Int
}

func NewMemoryState() *MemoryState {
	return &MemoryState{
		positions:  make(map[[32]byte]*Position),
		statuses:   make(map[[32]byte]PositionStatus),
		filled:     make(map[[32]byte]*big.Int),
		canceled:   make(map[[32]byte]*big.Int),
		owedRepaid: make(map[[32]byte]*big.Int),
	}
}

func (s *MemoryState) Position(id [32]byte) (*Position, bool) {
	p, ok := s.positions[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

func (s *MemoryState) PutPosition(p *Position) error {
	if p == nil {
		return errInvalidAmount
	}
	s.positions[p.ID] = p.Clone()
	return nil
}

func (s *MemoryState) Status(id [32]byte) PositionStatus {
	return s.statuses[id]
}

func (s *MemoryState) SetStatus(id [32]byte, status PositionStatus) error {
	s.statuses[id] = status
	if status == StatusClosed {
		// Tombstone: the record is gone but the id stays burned.
		delete(s.positions, id)
	}
	return nil
}

func (s *MemoryState) FilledAmount(hash [32]byte) *big.Int {
	return cloneBigInt(s.filled[hash])
}

func (s *MemoryState) SetFilledAmount(hash [32]byte, amount *big.Int) error {
	s.filled[hash] = cloneBigInt(amount)
	return nil
}

func (s *MemoryState) CanceledAmount(hash [32]byte) *big.Int {
	return cloneBigInt(s.canceled[hash])
}

func (s *MemoryState) SetCanceledAmount(hash [32]byte, amount *big.Int) error {
	s.canceled[hash] = cloneBigInt(amount)
	return nil
}

func (s *MemoryState) TotalOwedRepaid(id [32]byte) *big.Int {
	return cloneBigInt(s.owedRepaid[id])
}

func (s *MemoryState) AddOwedRepaid(id [32]byte, amount *big.Int) error {
	s.owedRepaid[id] = new(big.Int).Add(s.TotalOwedRepaid(id), amount)
	return nil
}

type memorySnapshot struct {
	positions  map[[32]byte]*Position
	statuses   map[[32]byte]PositionStatus
	filled     map[[32]byte]*big.Int
	canceled   map[[32]byte]*big.Int
	owedRepaid map[[32]byte]*big.Int
}

func (s *MemoryState) Snapshot() StateSnapshot {
	snap := &memorySnapshot{
		positions:  make(map[[32]byte]*Position, len(s.positions)),
		statuses:   make(map[[32]byte]PositionStatus, len(s.statuses)),
		filled:     make(map[[32]byte]*big.Int, len(s.filled)),
		canceled:   make(map[[32]byte]*big.Int, len(s.canceled)),
		owedRepaid: make(map[[32]byte]*big.Int, len(s.owedRepaid)),
	}
	for id, p := range s.positions {
		snap.positions[id] = p.Clone()
	}
	for id, status := range s.statuses {
		snap.statuses[id] = status
	}
	for hash, v := range s.filled {
		snap.filled[hash] = cloneBigInt(v)
	}
	for hash, v := range s.canceled {
		snap.canceled[hash] = cloneBigInt(v)
	}
	for id, v := range s.owedRepaid {
		snap.owedRepaid[id] = cloneBigInt(v)
	}
	return snap
}

func (s *MemoryState) Restore(snapshot StateSnapshot) error {
	snap, ok := snapshot.(*memorySnapshot)
	if !ok {
		return errNilState
	}
	s.positions = snap.positions
	s.statuses = snap.statuses
	s.filled = snap.filled
	s.canceled = snap.canceled
	s.owedRepaid = snap.owedRepaid
	return nil
}
