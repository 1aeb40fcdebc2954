package models

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/abm-sim/abm-sim/sim"
	"github.com/abm-sim/abm-sim/sim/field"
	"github.com/abm-sim/abm-sim/sim/monitor"
)

// HeatConfig parameterises the heat-diffusion model: a plate with a hot left
// edge and a cold right edge; top and bottom are insulated.
type HeatConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	Diffusion float64 `yaml:"diffusion"` // must be in (0, 0.25] for stability
	Hot       float64 `yaml:"hot"`
	Cold      float64 `yaml:"cold"`
	Tolerance float64 `yaml:"tolerance"` // stop once no cell changes by more than this
	Dense     bool    `yaml:"dense"`
}

// DefaultHeatConfig returns the parameters used when none are given.
func DefaultHeatConfig() HeatConfig {
	return HeatConfig{Width: 40, Height: 20, Diffusion: 0.2, Hot: 100, Cold: 0, Tolerance: 1e-3, Dense: true}
}

// Validate checks that all fields are usable.
func (c HeatConfig) Validate() error {
	if c.Width < 3 || c.Height < 1 {
		return fmt.Errorf("heat: plate must be at least 3x1, got %dx%d", c.Width, c.Height)
	}
	if c.Diffusion <= 0 || c.Diffusion > 0.25 {
		return fmt.Errorf("heat: diffusion must be in (0,0.25], got %g", c.Diffusion)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("heat: tolerance must be non-negative, got %g", c.Tolerance)
	}
	return nil
}

func newHeatFactory(params *yaml.Node, env Env) (sim.StateFactory, error) {
	cfg := DefaultHeatConfig()
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mon := env.monitorOf()
	mon.SetDescription("Jacobi heat diffusion on a scalar grid")
	return func(int) (sim.State, error) {
		return NewHeat(cfg, mon), nil
	}, nil
}

// Heat is the state of the diffusion model. Each row of the plate is one
// agent computing a Jacobi update of its cells from the committed grid.
type Heat struct {
	sim.CommitGroup

	cfg     HeatConfig
	temp    *field.NumberGrid2D[float64]
	change  *field.DBMap[sim.AgentID, float64] // largest update of each row in the last tick
	rows    []*heatRow
	monitor *monitor.Monitor

	maxChange float64
}

// NewHeat builds a plate at the cold temperature with the hot edge set.
func NewHeat(cfg HeatConfig, mon *monitor.Monitor) *Heat {
	var temp *field.NumberGrid2D[float64]
	if cfg.Dense {
		temp = field.NewDenseNumberGrid2D[float64](cfg.Width, cfg.Height)
	} else {
		temp = field.NewSparseNumberGrid2D[float64](cfg.Width, cfg.Height)
	}
	h := &Heat{
		cfg:       cfg,
		temp:      temp,
		change:    field.NewDBMap[sim.AgentID, float64](),
		monitor:   mon,
		maxChange: math.Inf(1),
	}
	h.Register(h.temp, h.change)
	for y := 0; y < cfg.Height; y++ {
		h.rows = append(h.rows, &heatRow{id: sim.AgentID(y), y: y})
		for x := 0; x < cfg.Width; x++ {
			v := cfg.Cold
			if x == 0 {
				v = cfg.Hot
			}
			_ = h.temp.Set(field.Int2D{X: x, Y: y}, v)
		}
	}
	h.Commit()
	mon.AddPlot("heat", "step", "max change")
	return h
}

// Init enrols every row every tick.
func (h *Heat) Init(sched *sim.Scheduler) error {
	for _, r := range h.rows {
		if _, err := sched.ScheduleRepeating(r, 0, 0, 1); err != nil {
			return err
		}
	}
	return nil
}

// Update records the largest change of the tick.
func (h *Heat) Update(step uint64) {
	h.maxChange = 0
	h.change.Range(func(_ sim.AgentID, d float64) bool {
		h.maxChange = math.Max(h.maxChange, d)
		return true
	})
	h.monitor.Plot("heat", "max change", float64(step), h.maxChange)
}

// EndCondition stops once the plate has converged.
func (h *Heat) EndCondition(*sim.Scheduler) bool {
	return h.maxChange <= h.cfg.Tolerance
}

// Temperature returns the committed temperature of cell c.
func (h *Heat) Temperature(c field.Int2D) float64 {
	return h.temp.GetOr(c, h.cfg.Cold)
}

// MaxChange returns the largest cell update of the last tick.
func (h *Heat) MaxChange() float64 { return h.maxChange }

type heatRow struct {
	id sim.AgentID
	y  int
}

func (r *heatRow) ID() sim.AgentID { return r.id }

func (r *heatRow) Step(st sim.State) {
	h := st.(*Heat)
	cfg := h.cfg
	at := func(x, y int) float64 {
		// insulated top and bottom edges mirror the row itself
		if y < 0 || y >= cfg.Height {
			y = r.y
		}
		return h.Temperature(field.Int2D{X: x, Y: y})
	}
	var largest float64
	for x := 1; x < cfg.Width-1; x++ {
		old := at(x, r.y)
		lap := at(x-1, r.y) + at(x+1, r.y) + at(x, r.y-1) + at(x, r.y+1) - 4*old
		next := old + cfg.Diffusion*lap
		largest = math.Max(largest, math.Abs(next-old))
		_ = h.temp.Set(field.Int2D{X: x, Y: r.y}, next)
	}
	h.change.Insert(r.id, largest)
}
