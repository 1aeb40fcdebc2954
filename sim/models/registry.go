// Package models holds the reference models shipped with abm-sim. Each model
// is a sim.State built from strictly-decoded YAML parameters and exercises one
// or more of the shared structures in sim/field and sim/network.
package models

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/abm-sim/abm-sim/sim"
	"github.com/abm-sim/abm-sim/sim/monitor"
)

// ErrUnknownModel is returned by Lookup for unregistered names.
var ErrUnknownModel = errors.New("unknown model")

// Env carries what a model needs from the host besides its parameters.
type Env struct {
	Run     sim.RunConfig
	Monitor *monitor.Monitor
}

// Factory decodes params (nil selects defaults) and returns a StateFactory
// producing one fresh state per repetition.
type Factory func(params *yaml.Node, env Env) (sim.StateFactory, error)

// registry maps model names to factories. Unexported to prevent mutation.
var registry = map[string]Factory{
	"flockers":  newFlockersFactory,
	"heat":      newHeatFactory,
	"schelling": newSchellingFactory,
	"virus":     newVirusFactory,
}

// IsValidModel returns true if name is a registered model.
func IsValidModel(name string) bool {
	_, ok := registry[name]
	return ok
}

// ValidModelNames returns the registered model names, sorted.
func ValidModelNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q; valid: %v", ErrUnknownModel, name, ValidModelNames())
	}
	return f, nil
}

// decodeParams decodes node into out, rejecting unknown keys. A nil node
// leaves out untouched.
func decodeParams(node *yaml.Node, out any) error {
	if node == nil || node.Kind == 0 {
		return nil
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	raw, err := yaml.Marshal(node)
	if err != nil {
		return fmt.Errorf("re-encoding params: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("parsing params: %w", err)
	}
	return nil
}

// monitorOf returns env's monitor, or a private one when the host set none.
func (e Env) monitorOf() *monitor.Monitor {
	if e.Monitor == nil {
		return monitor.New()
	}
	return e.Monitor
}
