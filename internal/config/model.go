package config

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/quantgridgo/internal/searchspace"
)

// ParamCategory classifies what a parameter's value refers to.
type ParamCategory string

const (
	// CategoryPlain marks ordinary data values.
	CategoryPlain ParamCategory = "plain"
	// CategoryData marks parameters naming an external dataset location.
	CategoryData ParamCategory = "data"
	// CategoryObject marks parameters holding a caller-supplied callable
	// reference rather than data.
	CategoryObject ParamCategory = "object"
)

// ParamSpec is the full descriptor of one pass parameter.
type ParamSpec struct {
	Name        string
	Type        cty.Type
	Category    ParamCategory
	Description string

	// Default is the parameter's default-value expression. A nil Default
	// resolves to a null value of the declared type.
	Default searchspace.SearchValue

	// Allowed is the parameter's choice-set expression for search drivers.
	// Nil means the parameter is not searchable.
	Allowed searchspace.SearchValue
}

// Clone returns a copy of the spec. Search values are immutable once
// built, so only the descriptor itself needs copying.
func (s *ParamSpec) Clone() *ParamSpec {
	out := *s
	return &out
}

// ParamGroup is an ordered, named collection of parameter descriptors
// contributed by one configuration concern.
type ParamGroup struct {
	Name  string
	Specs []*ParamSpec
}

// NewParamGroup creates a group from the given descriptors, preserving
// their order.
func NewParamGroup(name string, specs ...*ParamSpec) *ParamGroup {
	return &ParamGroup{Name: name, Specs: specs}
}

// Lookup returns the descriptor with the given name, if present.
func (g *ParamGroup) Lookup(name string) (*ParamSpec, bool) {
	for _, spec := range g.Specs {
		if spec.Name == name {
			return spec, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the group. Pass definitions share the
// built-in group tables; variants that adjust a descriptor clone first.
func (g *ParamGroup) Clone() *ParamGroup {
	out := &ParamGroup{Name: g.Name, Specs: make([]*ParamSpec, len(g.Specs))}
	for i, spec := range g.Specs {
		out.Specs[i] = spec.Clone()
	}
	return out
}

// PruneRule drops every parameter contributed by the named groups from the
// effective configuration when the parent parameter resolves to the given
// value. This keeps mode-foreign keys away from the execution boundary
// even when their resolution succeeded.
type PruneRule struct {
	Parent string
	Equals cty.Value
	Groups []string
}

// PassDefinition describes one pass variant: which parameter groups it
// merges and in what order, plus the run-phase merge and pruning policy.
type PassDefinition struct {
	Kind        string
	Description string

	// Groups is the composition order; later groups replace earlier
	// entries with the same parameter name.
	Groups []*ParamGroup

	// ExtraOptionsParam names the free-form options map parameter, if the
	// variant has one.
	ExtraOptionsParam string

	// ExposedGroup names the group whose parameters are individually
	// exposed copies of free-form option keys. Their resolved values are
	// folded into the options map and always win over caller-supplied
	// entries.
	ExposedGroup string

	// Bookkeeping lists parameter names that steer resolution or the
	// orchestrator but must never reach the execution boundary.
	Bookkeeping []string

	// Prune lists the mode-specific group pruning rules.
	Prune []PruneRule
}

// Table returns the merged parameter table for this definition.
func (d *PassDefinition) Table() *Table {
	return Merge(d.Groups...)
}
