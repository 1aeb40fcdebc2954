package models

import (
	"fmt"
	"math"
	"math/rand"

	"gopkg.in/yaml.v3"

	"github.com/abm-sim/abm-sim/sim"
	"github.com/abm-sim/abm-sim/sim/field"
	"github.com/abm-sim/abm-sim/sim/monitor"
	"github.com/abm-sim/abm-sim/sim/network"
)

// Health is the epidemic status of one agent.
type Health int

const (
	Susceptible Health = iota
	Infected
	Recovered
)

func (h Health) String() string {
	switch h {
	case Susceptible:
		return "susceptible"
	case Infected:
		return "infected"
	case Recovered:
		return "recovered"
	}
	return fmt.Sprintf("Health(%d)", int(h))
}

// healthRecord is the committed health of an agent and when it last changed.
type healthRecord struct {
	Status Health
	Since  float64
}

// VirusConfig parameterises the SIR model.
type VirusConfig struct {
	Agents          int     `yaml:"agents"`
	Attachment      int     `yaml:"attachment"`       // edges per new node in the contact network
	HouseholdSize   int     `yaml:"household_size"`   // members per household hyperedge
	InitialInfected int     `yaml:"initial_infected"` // seeded infections at t=0
	Contact         float64 `yaml:"contact"`          // per-tick transmission probability per infected contact
	Household       float64 `yaml:"household"`        // per-tick transmission probability per infected housemate
	RecoveryTime    float64 `yaml:"recovery_time"`    // simulated time from infection to recovery
}

// DefaultVirusConfig returns the parameters used when none are given.
func DefaultVirusConfig() VirusConfig {
	return VirusConfig{
		Agents:          300,
		Attachment:      2,
		HouseholdSize:   4,
		InitialInfected: 5,
		Contact:         0.05,
		Household:       0.2,
		RecoveryTime:    10,
	}
}

// Validate checks that all fields are usable.
func (c VirusConfig) Validate() error {
	if c.Agents <= c.Attachment {
		return fmt.Errorf("virus: need more agents (%d) than attachment edges (%d)", c.Agents, c.Attachment)
	}
	if c.Attachment < 1 {
		return fmt.Errorf("virus: attachment must be at least 1, got %d", c.Attachment)
	}
	if c.HouseholdSize < 1 {
		return fmt.Errorf("virus: household_size must be at least 1, got %d", c.HouseholdSize)
	}
	if c.InitialInfected < 0 || c.InitialInfected > c.Agents {
		return fmt.Errorf("virus: initial_infected must be in [0,%d], got %d", c.Agents, c.InitialInfected)
	}
	for name, p := range map[string]float64{"contact": c.Contact, "household": c.Household} {
		if p < 0 || p > 1 {
			return fmt.Errorf("virus: %s must be in [0,1], got %g", name, p)
		}
	}
	if c.RecoveryTime <= 0 || math.IsInf(c.RecoveryTime, 0) {
		return fmt.Errorf("virus: recovery_time must be positive and finite, got %g", c.RecoveryTime)
	}
	return nil
}

func newVirusFactory(params *yaml.Node, env Env) (sim.StateFactory, error) {
	cfg := DefaultVirusConfig()
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mon := env.monitorOf()
	mon.SetDescription("SIR epidemic over a contact network and households")
	return func(rep int) (sim.State, error) {
		return NewVirus(cfg, env.Run.SeedFor(rep), mon)
	}, nil
}

// Virus is the state of the SIR model. Contacts form a preferential-attachment
// network; households are hyperedges with a higher transmission rate.
// Recovered agents leave the schedule.
type Virus struct {
	sim.CommitGroup

	cfg        VirusConfig
	contacts   *network.Network
	households *network.HNetwork
	health     *field.DBMap[sim.AgentID, healthRecord]
	agents     []*virusAgent
	rng        *sim.PartitionedRNG
	monitor    *monitor.Monitor
	sched      *sim.Scheduler

	indexCase sim.AgentID
	hops      map[sim.AgentID]float64 // contact distance from the index case
	counts    [3]int
}

// NewVirus builds the contact network and households and seeds the initial
// infections.
func NewVirus(cfg VirusConfig, seed int64, mon *monitor.Monitor) (*Virus, error) {
	v := &Virus{
		cfg:        cfg,
		contacts:   network.NewNetwork(false),
		households: network.NewHNetwork(),
		health:     field.NewDBMap[sim.AgentID, healthRecord](),
		rng:        sim.NewPartitionedRNG(sim.NewSimulationKey(seed)),
		monitor:    mon,
	}
	v.Register(v.contacts, v.households, v.health)

	ids := sim.NewIDAllocator()
	nodes := make([]sim.AgentID, cfg.Agents)
	for i := range nodes {
		a := &virusAgent{id: ids.Next()}
		a.rng = v.rng.ForAgent(a.id)
		v.agents = append(v.agents, a)
		nodes[i] = a.id
		v.health.Insert(a.id, healthRecord{Status: Susceptible})
	}

	setup := v.rng.ForSubsystem(sim.SubsystemSetup)
	if err := network.PreferentialAttachment(v.contacts, nodes, cfg.Attachment, setup); err != nil {
		return nil, err
	}
	for start := 0; start < len(nodes); start += cfg.HouseholdSize {
		end := min(start+cfg.HouseholdSize, len(nodes))
		if _, err := v.households.AddHyperedge(nodes[start:end], 1, "household"); err != nil {
			return nil, err
		}
	}
	seeded := setup.Perm(len(nodes))[:cfg.InitialInfected]
	for _, i := range seeded {
		v.health.Insert(nodes[i], healthRecord{Status: Infected})
	}
	v.Commit()
	v.recount()
	if len(seeded) > 0 {
		v.indexCase = nodes[seeded[0]]
		v.hops = v.contacts.DistancesFrom(v.indexCase)
	}

	mon.AddPlot("sir", "step", "agents")
	mon.AddPlot("spread", "step", "hops from index case")
	return v, nil
}

// Init enrols every agent every tick.
func (v *Virus) Init(sched *sim.Scheduler) error {
	v.sched = sched
	for _, a := range v.agents {
		if _, err := sched.ScheduleRepeating(a, 0, 0, 1); err != nil {
			return err
		}
	}
	return nil
}

func (v *Virus) recount() {
	v.counts = [3]int{}
	v.health.Range(func(_ sim.AgentID, h healthRecord) bool {
		v.counts[h.Status]++
		return true
	})
}

// Update recounts the compartments after commit.
func (v *Virus) Update(step uint64) {
	v.recount()
	x := float64(step)
	v.monitor.Plot("sir", Susceptible.String(), x, float64(v.counts[Susceptible]))
	v.monitor.Plot("sir", Infected.String(), x, float64(v.counts[Infected]))
	v.monitor.Plot("sir", Recovered.String(), x, float64(v.counts[Recovered]))
	if v.hops != nil {
		v.monitor.Plot("spread", "mean infected", x, v.meanInfectedHops())
	}
	if v.counts[Infected] == 0 {
		v.monitor.Log(monitor.LogInfo, fmt.Sprintf("virus: epidemic over after %d steps, %d recovered", step, v.counts[Recovered]))
	}
}

// EndCondition stops the run when nobody is infected.
func (v *Virus) EndCondition(*sim.Scheduler) bool {
	return v.counts[Infected] == 0
}

// Count returns the committed number of agents in status h.
func (v *Virus) Count(h Health) int { return v.counts[h] }

// HealthOf returns the committed status of agent id.
func (v *Virus) HealthOf(id sim.AgentID) Health {
	rec, _ := v.health.Get(id)
	return rec.Status
}

// IndexCase returns the first seeded infection. ok is false when the run
// seeds none.
func (v *Virus) IndexCase() (id sim.AgentID, ok bool) {
	return v.indexCase, v.hops != nil
}

// HopsFromIndex returns the contact-network distance from the index case
// to agent id.
func (v *Virus) HopsFromIndex(id sim.AgentID) (float64, bool) {
	h, ok := v.hops[id]
	return h, ok
}

// meanInfectedHops averages the index-case distance of the infected agents.
func (v *Virus) meanInfectedHops() float64 {
	sum, n := 0.0, 0
	v.health.Range(func(id sim.AgentID, rec healthRecord) bool {
		if h, ok := v.hops[id]; ok && rec.Status == Infected {
			sum += h
			n++
		}
		return true
	})
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Contacts exposes the contact network.
func (v *Virus) Contacts() *network.Network { return v.contacts }

// Households exposes the household hypergraph.
func (v *Virus) Households() *network.HNetwork { return v.households }

type virusAgent struct {
	id        sim.AgentID
	rng       *rand.Rand
	recovered bool
}

func (a *virusAgent) ID() sim.AgentID { return a.id }

func (a *virusAgent) Step(st sim.State) {
	v := st.(*Virus)
	rec, _ := v.health.Get(a.id)
	now := v.sched.CurrentTime()
	switch rec.Status {
	case Susceptible:
		escape := math.Pow(1-v.cfg.Contact, float64(v.infectedAmong(v.contacts.Neighbors(a.id))))
		escape *= math.Pow(1-v.cfg.Household, float64(v.infectedAmong(v.households.Neighbors(a.id))))
		if a.rng.Float64() >= escape {
			v.health.Insert(a.id, healthRecord{Status: Infected, Since: now})
		}
	case Infected:
		if now-rec.Since >= v.cfg.RecoveryTime {
			v.health.Insert(a.id, healthRecord{Status: Recovered, Since: now})
			a.recovered = true
		}
	case Recovered:
		a.recovered = true
	}
}

// IsStopped removes recovered agents from the schedule.
func (a *virusAgent) IsStopped(sim.State) bool {
	return a.recovered
}

func (v *Virus) infectedAmong(ids []sim.AgentID) int {
	n := 0
	for _, id := range ids {
		if rec, _ := v.health.Get(id); rec.Status == Infected {
			n++
		}
	}
	return n
}
