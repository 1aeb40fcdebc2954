// Package monitor holds the run-scoped monitoring context: plots, log lines
// and a model description that an operator dashboard or exporter reads, plus
// the Prometheus collector and OpenTelemetry tracer used by the Driver.
//
// A Monitor is constructed once by the host and passed explicitly to the
// code that needs it; nothing in the kernel reaches for a package-level
// instance.
package monitor

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultMaxLogs bounds the retained log lines.
const DefaultMaxLogs = 1000

// LogType classifies monitor log lines.
type LogType int

const (
	LogInfo LogType = iota
	LogWarning
	LogError
	LogCritical
)

func (l LogType) String() string {
	switch l {
	case LogInfo:
		return "Info"
	case LogWarning:
		return "Warning"
	case LogError:
		return "Error"
	case LogCritical:
		return "Critical"
	default:
		return fmt.Sprintf("LogType(%d)", int(l))
	}
}

// LogEntry is one monitor log line.
type LogEntry struct {
	Type LogType
	Body string
}

// Point is an (x, y) sample of a plot series.
type Point struct {
	X, Y float64
}

// PlotData is a named chart with one or more series and running axis bounds.
type PlotData struct {
	Name   string
	XLabel string
	YLabel string
	Series map[string][]Point
	MinX   float64
	MaxX   float64
	MinY   float64
	MaxY   float64
}

func newPlotData(name, xlabel, ylabel string) *PlotData {
	return &PlotData{
		Name:   name,
		XLabel: xlabel,
		YLabel: ylabel,
		Series: make(map[string][]Point),
		MinX:   math.MaxFloat64,
		MaxX:   -math.MaxFloat64,
		MinY:   math.MaxFloat64,
		MaxY:   -math.MaxFloat64,
	}
}

func (p *PlotData) clone() PlotData {
	out := *p
	out.Series = make(map[string][]Point, len(p.Series))
	for k, v := range p.Series {
		out.Series[k] = append([]Point(nil), v...)
	}
	return out
}

// Monitor is safe for concurrent use by agents running in a parallel bucket.
type Monitor struct {
	mu          sync.Mutex
	plots       map[string]*PlotData
	logs        []LogEntry // newest first
	maxLogs     int
	description string

	Collector *Collector
	Tracer    trace.Tracer
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithCollector attaches a Prometheus collector.
func WithCollector(c *Collector) Option {
	return func(m *Monitor) { m.Collector = c }
}

// WithTracerProvider sets the tracer used for repetition spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Monitor) { m.Tracer = tp.Tracer(TracerName) }
}

// WithMaxLogs overrides DefaultMaxLogs.
func WithMaxLogs(n int) Option {
	return func(m *Monitor) { m.maxLogs = n }
}

// New creates a Monitor. Without options it traces to a noop provider and
// records no Prometheus metrics.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		plots:   make(map[string]*PlotData),
		maxLogs: DefaultMaxLogs,
		Tracer:  noop.NewTracerProvider().Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddPlot registers a chart. Re-adding an existing name is a no-op.
func (m *Monitor) AddPlot(name, xlabel, ylabel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plots[name]; !ok {
		m.plots[name] = newPlotData(name, xlabel, ylabel)
	}
}

// Plot appends (x, y) to series of chart name. Points for unknown charts
// are dropped.
func (m *Monitor) Plot(name, series string, x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plots[name]
	if !ok {
		return
	}
	p.Series[series] = append(p.Series[series], Point{X: x, Y: y})
	p.MinX = math.Min(p.MinX, x)
	p.MaxX = math.Max(p.MaxX, x)
	p.MinY = math.Min(p.MinY, y)
	p.MaxY = math.Max(p.MaxY, y)
}

// PlotSnapshot returns a copy of chart name.
func (m *Monitor) PlotSnapshot(name string) (PlotData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plots[name]
	if !ok {
		return PlotData{}, false
	}
	return p.clone(), true
}

// PlotNames returns the registered chart names, sorted.
func (m *Monitor) PlotNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.plots))
	for n := range m.plots {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ClearPlots drops every chart's samples, keeping the chart definitions.
// The Driver calls it at the start of each repetition.
func (m *Monitor) ClearPlots() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, p := range m.plots {
		m.plots[name] = newPlotData(name, p.XLabel, p.YLabel)
	}
}

// Log records a line (newest first) and forwards it to logrus.
func (m *Monitor) Log(t LogType, body string) {
	switch t {
	case LogInfo:
		logrus.Info(body)
	case LogWarning:
		logrus.Warn(body)
	default:
		logrus.Error(body)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append([]LogEntry{{Type: t, Body: body}}, m.logs...)
	if m.maxLogs > 0 && len(m.logs) > m.maxLogs {
		m.logs = m.logs[:m.maxLogs]
	}
}

// Logs returns a copy of the retained log lines, newest first.
func (m *Monitor) Logs() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogEntry(nil), m.logs...)
}

// SetDescription sets the model description.
func (m *Monitor) SetDescription(d string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.description = d
}

// Description returns the model description.
func (m *Monitor) Description() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.description
}
