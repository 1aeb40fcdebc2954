package models

import (
	"fmt"
	"math"
	"math/rand"

	"gopkg.in/yaml.v3"

	"github.com/abm-sim/abm-sim/sim"
	"github.com/abm-sim/abm-sim/sim/field"
	"github.com/abm-sim/abm-sim/sim/monitor"
)

// FlockersConfig parameterises the boids model.
type FlockersConfig struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	Count        int     `yaml:"count"`
	Neighborhood float64 `yaml:"neighborhood"`
	Cohesion     float64 `yaml:"cohesion"`
	Avoidance    float64 `yaml:"avoidance"`
	Randomness   float64 `yaml:"randomness"`
	Consistency  float64 `yaml:"consistency"`
	Momentum     float64 `yaml:"momentum"`
	Jump         float64 `yaml:"jump"`
}

// DefaultFlockersConfig returns the parameters used when none are given.
func DefaultFlockersConfig() FlockersConfig {
	return FlockersConfig{
		Width:        150,
		Height:       150,
		Count:        200,
		Neighborhood: 10,
		Cohesion:     1,
		Avoidance:    1,
		Randomness:   1,
		Consistency:  1,
		Momentum:     1,
		Jump:         0.7,
	}
}

// Validate checks that all fields are usable.
func (c FlockersConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("flockers: space must be positive, got %gx%g", c.Width, c.Height)
	}
	if c.Count <= 0 {
		return fmt.Errorf("flockers: count must be positive, got %d", c.Count)
	}
	if c.Neighborhood <= 0 {
		return fmt.Errorf("flockers: neighborhood must be positive, got %g", c.Neighborhood)
	}
	if c.Jump <= 0 {
		return fmt.Errorf("flockers: jump must be positive, got %g", c.Jump)
	}
	return nil
}

func newFlockersFactory(params *yaml.Node, env Env) (sim.StateFactory, error) {
	cfg := DefaultFlockersConfig()
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mon := env.monitorOf()
	mon.SetDescription("Boids flocking in a toroidal continuous space")
	return func(rep int) (sim.State, error) {
		return NewFlockers(cfg, env.Run.SeedFor(rep), mon), nil
	}, nil
}

// Flockers is the state of the boids model. It never ends on its own.
type Flockers struct {
	sim.CommitGroup

	cfg      FlockersConfig
	space    *field.Field2D
	velocity *field.DBMap[sim.AgentID, field.Real2D] // last displacement of each boid
	agents   []*flocker
	rng      *sim.PartitionedRNG
	monitor  *monitor.Monitor
}

// NewFlockers scatters boids uniformly with random headings.
func NewFlockers(cfg FlockersConfig, seed int64, mon *monitor.Monitor) *Flockers {
	f := &Flockers{
		cfg:      cfg,
		space:    field.NewField2D(cfg.Width, cfg.Height, cfg.Neighborhood/1.5, true),
		velocity: field.NewDBMap[sim.AgentID, field.Real2D](),
		rng:      sim.NewPartitionedRNG(sim.NewSimulationKey(seed)),
		monitor:  mon,
	}
	f.Register(f.space, f.velocity)

	setup := f.rng.ForSubsystem(sim.SubsystemSetup)
	ids := sim.NewIDAllocator()
	for i := 0; i < cfg.Count; i++ {
		a := &flocker{id: ids.Next()}
		a.rng = f.rng.ForAgent(a.id)
		f.agents = append(f.agents, a)
		_ = f.space.SetLocation(a.id, field.Real2D{X: setup.Float64() * cfg.Width, Y: setup.Float64() * cfg.Height})
		angle := setup.Float64() * 2 * math.Pi
		f.velocity.Insert(a.id, field.Real2D{X: math.Cos(angle) * cfg.Jump, Y: math.Sin(angle) * cfg.Jump})
	}
	f.Commit()
	mon.AddPlot("alignment", "step", "order")
	return f
}

// Init enrols every boid every tick.
func (f *Flockers) Init(sched *sim.Scheduler) error {
	for _, a := range f.agents {
		if _, err := sched.ScheduleRepeating(a, 0, 0, 1); err != nil {
			return err
		}
	}
	return nil
}

// Update plots the flock's order parameter: the length of the mean unit
// heading, 1 when every boid flies the same way.
func (f *Flockers) Update(step uint64) {
	f.monitor.Plot("alignment", "order", float64(step), f.Alignment())
}

// EndCondition never ends the run; the step limit does.
func (f *Flockers) EndCondition(*sim.Scheduler) bool { return false }

// Alignment returns the committed order parameter in [0,1].
func (f *Flockers) Alignment() float64 {
	var sx, sy float64
	for _, a := range f.agents {
		v, _ := f.velocity.Get(a.id)
		if l := math.Hypot(v.X, v.Y); l > 0 {
			sx += v.X / l
			sy += v.Y / l
		}
	}
	return math.Hypot(sx, sy) / float64(len(f.agents))
}

// LocationOf returns the committed position of boid id.
func (f *Flockers) LocationOf(id sim.AgentID) (field.Real2D, bool) {
	return f.space.LocationOf(id)
}

type flocker struct {
	id  sim.AgentID
	rng *rand.Rand
}

func (a *flocker) ID() sim.AgentID { return a.id }

func (a *flocker) Step(st sim.State) {
	f := st.(*Flockers)
	cfg := f.cfg
	pos, ok := f.space.LocationOf(a.id)
	if !ok {
		return
	}
	var neighbours []sim.AgentID
	for _, n := range f.space.NeighborsWithinDistance(pos, cfg.Neighborhood) {
		if n != a.id {
			neighbours = append(neighbours, n)
		}
	}

	var cohesion, avoidance, consistency field.Real2D
	for _, n := range neighbours {
		q, _ := f.space.LocationOf(n)
		d := f.offset(pos, q)
		cohesion.X += d.X
		cohesion.Y += d.Y
		dist2 := d.X*d.X + d.Y*d.Y
		avoidance.X -= d.X / (dist2*dist2 + 1)
		avoidance.Y -= d.Y / (dist2*dist2 + 1)
		v, _ := f.velocity.Get(n)
		consistency.X += v.X
		consistency.Y += v.Y
	}
	if k := float64(len(neighbours)); k > 0 {
		cohesion = field.Real2D{X: cohesion.X / k, Y: cohesion.Y / k}
		avoidance = field.Real2D{X: avoidance.X * 400 / k, Y: avoidance.Y * 400 / k}
		consistency = field.Real2D{X: consistency.X / k, Y: consistency.Y / k}
	}
	random := field.Real2D{X: a.rng.Float64()*2 - 1, Y: a.rng.Float64()*2 - 1}
	if l := math.Hypot(random.X, random.Y); l > 0 {
		random = field.Real2D{X: random.X / l * 0.05, Y: random.Y / l * 0.05}
	}
	momentum, _ := f.velocity.Get(a.id)

	dx := cfg.Cohesion*cohesion.X + cfg.Avoidance*avoidance.X + cfg.Consistency*consistency.X +
		cfg.Randomness*random.X + cfg.Momentum*momentum.X
	dy := cfg.Cohesion*cohesion.Y + cfg.Avoidance*avoidance.Y + cfg.Consistency*consistency.Y +
		cfg.Randomness*random.Y + cfg.Momentum*momentum.Y
	if l := math.Hypot(dx, dy); l > 0 {
		dx, dy = dx/l*cfg.Jump, dy/l*cfg.Jump
	}
	f.velocity.Insert(a.id, field.Real2D{X: dx, Y: dy})
	_ = f.space.SetLocation(a.id, field.Real2D{X: pos.X + dx, Y: pos.Y + dy})
}

// offset is the shortest displacement from p to q on the torus.
func (f *Flockers) offset(p, q field.Real2D) field.Real2D {
	w, h := f.cfg.Width, f.cfg.Height
	dx := q.X - p.X
	dy := q.Y - p.Y
	if dx > w/2 {
		dx -= w
	} else if dx < -w/2 {
		dx += w
	}
	if dy > h/2 {
		dy -= h
	} else if dy < -h/2 {
		dy += h
	}
	return field.Real2D{X: dx, Y: dy}
}
