package monitor

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Plot_TracksSeriesAndBounds(t *testing.T) {
	// GIVEN a monitor with one chart
	m := New()
	m.AddPlot("population", "step", "agents")

	// WHEN points are added to two series
	m.Plot("population", "sheep", 0, 10)
	m.Plot("population", "sheep", 1, 12)
	m.Plot("population", "wolves", 1, -2)

	// THEN the snapshot holds both series and running bounds
	p, ok := m.PlotSnapshot("population")
	require.True(t, ok)
	assert.Len(t, p.Series["sheep"], 2)
	assert.Len(t, p.Series["wolves"], 1)
	assert.Equal(t, 0.0, p.MinX)
	assert.Equal(t, 1.0, p.MaxX)
	assert.Equal(t, -2.0, p.MinY)
	assert.Equal(t, 12.0, p.MaxY)
}

func TestMonitor_Plot_UnknownChartIsDropped(t *testing.T) {
	m := New()
	m.Plot("missing", "s", 1, 1)
	_, ok := m.PlotSnapshot("missing")
	assert.False(t, ok)
}

func TestMonitor_PlotSnapshot_IsACopy(t *testing.T) {
	m := New()
	m.AddPlot("p", "x", "y")
	m.Plot("p", "s", 1, 1)
	snap, _ := m.PlotSnapshot("p")
	snap.Series["s"][0].Y = 99

	again, _ := m.PlotSnapshot("p")
	assert.Equal(t, 1.0, again.Series["s"][0].Y)
}

func TestMonitor_ClearPlots_KeepsDefinitions(t *testing.T) {
	m := New()
	m.AddPlot("b", "x", "y")
	m.AddPlot("a", "x", "y")
	m.Plot("a", "s", 1, 1)

	m.ClearPlots()

	assert.Equal(t, []string{"a", "b"}, m.PlotNames())
	p, _ := m.PlotSnapshot("a")
	assert.Empty(t, p.Series)
}

func TestMonitor_Log_NewestFirstAndCapped(t *testing.T) {
	m := New(WithMaxLogs(3))
	for i := 0; i < 5; i++ {
		m.Log(LogInfo, fmt.Sprintf("line %d", i))
	}
	logs := m.Logs()
	require.Len(t, logs, 3)
	assert.Equal(t, "line 4", logs[0].Body)
	assert.Equal(t, "line 2", logs[2].Body)
}

func TestMonitor_ConcurrentUse(t *testing.T) {
	m := New()
	m.AddPlot("p", "x", "y")
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				m.Plot("p", "s", float64(i), float64(w))
				m.Log(LogWarning, "busy")
			}
		}(w)
	}
	wg.Wait()
	p, _ := m.PlotSnapshot("p")
	assert.Len(t, p.Series["s"], 400)
}

func TestMonitor_Description(t *testing.T) {
	m := New()
	m.SetDescription("Schelling segregation")
	assert.Equal(t, "Schelling segregation", m.Description())
}

func TestLogType_String(t *testing.T) {
	assert.Equal(t, "Info", LogInfo.String())
	assert.Equal(t, "Critical", LogCritical.String())
	assert.Equal(t, "LogType(9)", LogType(9).String())
}
