package models

import (
	"fmt"
	"math/rand"

	"gopkg.in/yaml.v3"

	"github.com/abm-sim/abm-sim/sim"
	"github.com/abm-sim/abm-sim/sim/field"
	"github.com/abm-sim/abm-sim/sim/monitor"
)

// SchellingConfig parameterises the segregation model.
type SchellingConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	Density   float64 `yaml:"density"`   // fraction of cells occupied
	Minority  float64 `yaml:"minority"`  // fraction of agents in group 1
	Similar   float64 `yaml:"similar"`   // required fraction of same-group neighbours
	Radius    int     `yaml:"radius"`    // Moore neighbourhood radius
	Dense     bool    `yaml:"dense"`     // array-backed grid instead of hash-backed
	Invariant bool    `yaml:"invariant"` // verify the grid index after every commit
}

// DefaultSchellingConfig returns the parameters used when none are given.
func DefaultSchellingConfig() SchellingConfig {
	return SchellingConfig{Width: 20, Height: 20, Density: 0.8, Minority: 0.3, Similar: 0.4, Radius: 1, Dense: true}
}

// Validate checks that all fields are usable.
func (c SchellingConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("schelling: grid must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Density <= 0 || c.Density >= 1 {
		return fmt.Errorf("schelling: density must be in (0,1), got %g", c.Density)
	}
	if c.Minority < 0 || c.Minority > 1 {
		return fmt.Errorf("schelling: minority must be in [0,1], got %g", c.Minority)
	}
	if c.Similar < 0 || c.Similar > 1 {
		return fmt.Errorf("schelling: similar must be in [0,1], got %g", c.Similar)
	}
	if c.Radius < 1 {
		return fmt.Errorf("schelling: radius must be at least 1, got %d", c.Radius)
	}
	return nil
}

func newSchellingFactory(params *yaml.Node, env Env) (sim.StateFactory, error) {
	cfg := DefaultSchellingConfig()
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mon := env.monitorOf()
	mon.SetDescription("Schelling segregation on a 2D grid")
	return func(rep int) (sim.State, error) {
		return NewSchelling(cfg, env.Run.SeedFor(rep), mon), nil
	}, nil
}

// Schelling is the state of the segregation model. Agents whose share of
// same-group neighbours falls below Similar move to a random empty cell.
// Two movers may pick the same empty cell within one tick; the grid allows
// shared cells, and both will keep looking on later ticks.
type Schelling struct {
	sim.CommitGroup

	cfg     SchellingConfig
	grid    *field.Grid2D
	happy   *field.DBMap[sim.AgentID, bool]
	agents  []*schellingAgent
	rng     *sim.PartitionedRNG
	monitor *monitor.Monitor

	empty   []field.Int2D // committed empty cells, refreshed after each commit
	unhappy int
	step    uint64
}

// NewSchelling places agents at random on a fresh grid and commits the
// initial layout.
func NewSchelling(cfg SchellingConfig, seed int64, mon *monitor.Monitor) *Schelling {
	var opts []field.GridOption
	if cfg.Invariant {
		opts = append(opts, field.WithInvariantCheck())
	}
	var grid *field.Grid2D
	if cfg.Dense {
		grid = field.NewDenseGrid2D(cfg.Width, cfg.Height, opts...)
	} else {
		grid = field.NewSparseGrid2D(cfg.Width, cfg.Height, opts...)
	}
	s := &Schelling{
		cfg:     cfg,
		grid:    grid,
		happy:   field.NewDBMap[sim.AgentID, bool](),
		rng:     sim.NewPartitionedRNG(sim.NewSimulationKey(seed)),
		monitor: mon,
		unhappy: -1,
	}
	s.Register(s.grid, s.happy)

	setup := s.rng.ForSubsystem(sim.SubsystemSetup)
	ids := sim.NewIDAllocator()
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			if setup.Float64() >= cfg.Density {
				continue
			}
			group := 0
			if setup.Float64() < cfg.Minority {
				group = 1
			}
			a := &schellingAgent{id: ids.Next(), group: group}
			a.rng = s.rng.ForAgent(a.id)
			s.agents = append(s.agents, a)
			_ = s.grid.SetPosition(a.id, field.Int2D{X: x, Y: y})
		}
	}
	s.Commit()
	s.empty = s.grid.EmptyCells()
	mon.AddPlot("unhappy", "step", "agents")
	return s
}

// Init enrols every agent every tick.
func (s *Schelling) Init(sched *sim.Scheduler) error {
	for _, a := range s.agents {
		if _, err := sched.ScheduleRepeating(a, 0, 0, 1); err != nil {
			return err
		}
	}
	return nil
}

// Update refreshes the empty-cell cache and the unhappy count after commit.
func (s *Schelling) Update(step uint64) {
	s.step = step
	s.empty = s.grid.EmptyCells()
	s.unhappy = 0
	s.happy.Range(func(_ sim.AgentID, ok bool) bool {
		if !ok {
			s.unhappy++
		}
		return true
	})
	s.monitor.Plot("unhappy", "unhappy", float64(step), float64(s.unhappy))
	if s.unhappy == 0 {
		s.monitor.Log(monitor.LogInfo, fmt.Sprintf("schelling: every agent happy after %d steps", step))
	}
}

// EndCondition stops the run once every agent is happy.
func (s *Schelling) EndCondition(*sim.Scheduler) bool {
	return s.unhappy == 0
}

// Grid exposes the committed grid.
func (s *Schelling) Grid() *field.Grid2D { return s.grid }

// Unhappy returns the unhappy count as of the last Update, or -1 before the
// first tick.
func (s *Schelling) Unhappy() int { return s.unhappy }

// Group returns the group of every agent, indexed by id.
func (s *Schelling) Group(id sim.AgentID) int { return s.agents[id].group }

type schellingAgent struct {
	id    sim.AgentID
	group int
	rng   *rand.Rand
}

func (a *schellingAgent) ID() sim.AgentID { return a.id }

func (a *schellingAgent) Step(st sim.State) {
	s := st.(*Schelling)
	pos, ok := s.grid.PositionOf(a.id)
	if !ok {
		return
	}
	same, total := 0, 0
	for _, n := range s.grid.NeighborsWithin(pos, s.cfg.Radius) {
		total++
		if s.agents[n].group == a.group {
			same++
		}
	}
	for _, n := range s.grid.OccupantsOf(pos) {
		if n != a.id {
			total++
			if s.agents[n].group == a.group {
				same++
			}
		}
	}
	content := total == 0 || float64(same)/float64(total) >= s.cfg.Similar
	s.happy.Insert(a.id, content)
	if content || len(s.empty) == 0 {
		return
	}
	_ = s.grid.SetPosition(a.id, s.empty[a.rng.Intn(len(s.empty))])
}
