package field

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBMap_WritesInvisibleUntilCommit(t *testing.T) {
	// GIVEN a committed entry
	m := NewDBMap[string, int]()
	m.Insert("a", 1)
	m.Commit()

	// WHEN a new value is staged
	m.Insert("a", 2)
	m.Insert("b", 3)

	// THEN readers still see the committed view
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.False(t, m.Contains("b"))
	assert.Equal(t, 2, m.Pending())

	// WHEN committing
	m.Commit()

	// THEN the staged writes are visible and the log is empty
	v, _ = m.Get("a")
	assert.Equal(t, 2, v)
	assert.True(t, m.Contains("b"))
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, 2, m.Len())
}

func TestDBMap_LastLoggedWriteWins(t *testing.T) {
	tests := []struct {
		name    string
		stage   func(m *DBMap[string, int])
		wantVal int
		wantOK  bool
	}{
		{"insert then insert", func(m *DBMap[string, int]) { m.Insert("k", 1); m.Insert("k", 2) }, 2, true},
		{"insert then remove", func(m *DBMap[string, int]) { m.Insert("k", 1); m.Remove("k") }, 0, false},
		{"remove then insert", func(m *DBMap[string, int]) { m.Remove("k"); m.Insert("k", 5) }, 5, true},
		{"remove absent", func(m *DBMap[string, int]) { m.Remove("k") }, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewDBMap[string, int]()
			tt.stage(m)
			m.Commit()
			v, ok := m.Get("k")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantVal, v)
		})
	}
}

func TestDBMap_ConcurrentWritersLoseNothing(t *testing.T) {
	// GIVEN many goroutines staging distinct keys while others read
	m := NewDBMap[int, int]()
	const writers, perWriter = 8, 500
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				m.Insert(w*perWriter+i, i)
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, _ = m.Get(i)
			}
		}()
	}
	wg.Wait()

	// WHEN committed
	m.Commit()

	// THEN every write landed
	assert.Equal(t, writers*perWriter, m.Len())
}

func TestDenseStore_RowMajorRangeAndBounds(t *testing.T) {
	s := NewDenseStore[int](3, 2)
	s.Set(Int2D{X: 2, Y: 1}, 6)
	s.Set(Int2D{X: 0, Y: 0}, 1)
	s.Set(Int2D{X: 1, Y: 0}, 2)

	var got []Int2D
	s.Range(func(c Int2D, _ int) bool {
		got = append(got, c)
		return true
	})
	assert.Equal(t, []Int2D{{0, 0}, {1, 0}, {2, 1}}, got)
	assert.Equal(t, 3, s.Len())

	_, ok := s.Get(Int2D{X: 5, Y: 5})
	assert.False(t, ok)

	s.Delete(Int2D{X: 1, Y: 0})
	s.Delete(Int2D{X: 1, Y: 0})
	assert.Equal(t, 2, s.Len())

	assert.Panics(t, func() { s.Set(Int2D{X: 3, Y: 0}, 1) })
	assert.Panics(t, func() { NewDenseStore[int](0, 4) })
}

func TestDBMap_DenseBacking(t *testing.T) {
	m := NewDBMapWithStore[Int2D, float64](NewDenseStore[float64](4, 4))
	m.Insert(Int2D{X: 3, Y: 3}, 1.5)
	m.Commit()
	v, ok := m.Get(Int2D{X: 3, Y: 3})
	require.True(t, ok)
	assert.Equal(t, 1.5, v)
	assert.Equal(t, 1, m.Len())
}
