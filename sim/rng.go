package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results, for any worker count.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemSetup is the RNG subsystem for initial state construction
	// (placement, network generation). Uses the master seed directly.
	SubsystemSetup = "setup"

	// SubsystemState is the RNG subsystem for state-level per-tick logic.
	SubsystemState = "state"
)

// SubsystemAgent returns the subsystem name for agent id.
// Each agent drawing from its own stream keeps results independent of
// the order in which a parallel bucket happens to execute.
func SubsystemAgent(id AgentID) string {
	return fmt.Sprintf("agent_%d", id)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula:
//   - For SubsystemSetup: uses masterSeed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// ForSubsystem is safe for concurrent use; each returned *rand.Rand is not
// and must stay with the subsystem (agent) it was derived for.
type PartitionedRNG struct {
	key        SimulationKey
	mu         sync.Mutex
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	var derivedSeed int64
	if name == SubsystemSetup {
		derivedSeed = int64(p.key)
	} else {
		derivedSeed = int64(p.key) ^ fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// ForAgent is shorthand for ForSubsystem(SubsystemAgent(id)).
func (p *PartitionedRNG) ForAgent(id AgentID) *rand.Rand {
	return p.ForSubsystem(SubsystemAgent(id))
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
