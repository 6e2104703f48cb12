// Package registry holds the pass kinds known to an application instance:
// each kind's parameter-table definition, its validation rule set, and the
// selector choosing which external transformation call a resolved point
// dispatches to.
package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/quantgridgo/internal/config"
	"github.com/vk/quantgridgo/internal/searchspace"
	"github.com/vk/quantgridgo/internal/validate"
)

// Mode identifies which external transformation call a run dispatches to.
type Mode string

const (
	ModeStatic  Mode = "static"
	ModeDynamic Mode = "dynamic"
	ModeMatMul4 Mode = "matmul4"
)

// ModeSelector picks the dispatch mode from a resolved point.
type ModeSelector func(point searchspace.Point) (Mode, error)

// FixedMode returns a selector that always picks the given mode.
func FixedMode(mode Mode) ModeSelector {
	return func(searchspace.Point) (Mode, error) {
		return mode, nil
	}
}

// ModeFromParam returns a selector reading the mode from a string
// parameter of the resolved point.
func ModeFromParam(param string) ModeSelector {
	return func(point searchspace.Point) (Mode, error) {
		val, ok := point[param]
		if !ok || val.IsNull() || val.Type() != cty.String {
			return "", fmt.Errorf("mode parameter %q is not resolved to a string", param)
		}
		switch mode := Mode(val.AsString()); mode {
		case ModeStatic, ModeDynamic, ModeMatMul4:
			return mode, nil
		default:
			return "", fmt.Errorf("mode parameter %q has unknown value %q", param, mode)
		}
	}
}

// RegisteredPass is one pass kind's complete registration.
type RegisteredPass struct {
	Definition *config.PassDefinition
	Rules      *validate.Set
	SelectMode ModeSelector
}

// Module is the interface built-in pass packages implement to register
// their kinds.
type Module interface {
	Register(r *Registry)
}

// Registry holds all registered pass kinds for a single application
// instance.
type Registry struct {
	passes map[string]*RegisteredPass
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{passes: make(map[string]*RegisteredPass)}
}

// Register adds a pass kind. Double registration is a programming error.
func (r *Registry) Register(pass *RegisteredPass) {
	kind := pass.Definition.Kind
	if _, exists := r.passes[kind]; exists {
		panic(fmt.Sprintf("pass kind %q already registered", kind))
	}
	slog.Debug("Registering pass kind.", "kind", kind)
	r.passes[kind] = pass
}

// Lookup returns the registration for a pass kind.
func (r *Registry) Lookup(kind string) (*RegisteredPass, bool) {
	pass, ok := r.passes[kind]
	return pass, ok
}

// Kinds returns the registered kind names in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.passes))
	for kind := range r.passes {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
