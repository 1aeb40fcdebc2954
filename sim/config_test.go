package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RunConfig
		wantErr bool
	}{
		{"valid sequential", NewRunConfig(10, 1, 0, NewSchedulerConfig(0)), false},
		{"valid parallel", NewRunConfig(10, 3, -5, NewSchedulerConfig(8)), false},
		{"zero steps", NewRunConfig(0, 1, 0, NewSchedulerConfig(1)), true},
		{"zero repetitions", NewRunConfig(10, 0, 0, NewSchedulerConfig(1)), true},
		{"negative workers", NewRunConfig(10, 1, 0, NewSchedulerConfig(-1)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestRunConfig_SeedFor(t *testing.T) {
	cfg := NewRunConfig(1, 3, 100, NewSchedulerConfig(1))
	assert.Equal(t, int64(100), cfg.SeedFor(0))
	assert.Equal(t, int64(102), cfg.SeedFor(2))
}
