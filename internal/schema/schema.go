// Package schema defines the HCL block structure of pass manifest files.
// A manifest declares one pass kind: its parameter groups, their
// conditional expressions, validation rules and run-phase merge policy.
// Manifests are translated into the format-agnostic config model by the
// hcl package.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// CaseBlock is one branch of a conditional: an exact tuple of parent
// values and the outcome that applies when every parent matches. Exactly
// one of value, values, invalid or ignored must be set.
type CaseBlock struct {
	When    hcl.Expression `hcl:"when"`
	Value   hcl.Expression `hcl:"value,optional"`
	Values  hcl.Expression `hcl:"values,optional"`
	Invalid bool           `hcl:"invalid,optional"`
	Ignored bool           `hcl:"ignored,optional"`
}

// ConditionalBlock declares a parameter expression as a lookup table over
// parent parameter values. The label says which expression it replaces:
// "default" or "allowed". The fallback attributes mirror CaseBlock; when
// none is set, unmatched combinations resolve to ignored.
type ConditionalBlock struct {
	Target  string         `hcl:"target,label"`
	Parents []string       `hcl:"parents"`
	Cases   []*CaseBlock   `hcl:"case,block"`
	Value   hcl.Expression `hcl:"value,optional"`
	Values  hcl.Expression `hcl:"values,optional"`
	Invalid bool           `hcl:"invalid,optional"`
	Ignored bool           `hcl:"ignored,optional"`
}

// ParamBlock declares a single pass parameter.
type ParamBlock struct {
	Name         string              `hcl:"name,label"`
	Type         hcl.Expression      `hcl:"type"`
	Category     string              `hcl:"category,optional"`
	Description  string              `hcl:"description,optional"`
	Default      hcl.Expression      `hcl:"default,optional"`
	Allowed      hcl.Expression      `hcl:"allowed,optional"`
	Conditionals []*ConditionalBlock `hcl:"conditional,block"`
}

// GroupBlock declares one named parameter group. Group order inside the
// pass block is the composition order.
type GroupBlock struct {
	Name   string        `hcl:"name,label"`
	Params []*ParamBlock `hcl:"param,block"`
}

// PruneBlock drops a group's parameters from the effective configuration
// when the parent parameter resolves to the given value.
type PruneBlock struct {
	Parent string         `hcl:"parent"`
	Equals hcl.Expression `hcl:"equals"`
	Groups []string       `hcl:"groups"`
}

// WhenBlock is one parameter/value condition of a validation rule.
type WhenBlock struct {
	Param  string         `hcl:"param,label"`
	Equals hcl.Expression `hcl:"equals"`
}

// RuleBlock declares a validation rule over the resolved point. A rule
// fires when every when block matches; reject rules fail the point,
// advisory rules attach a warning.
type RuleBlock struct {
	Name    string       `hcl:"name,label"`
	Message string       `hcl:"message"`
	Reject  bool         `hcl:"reject,optional"`
	When    []*WhenBlock `hcl:"when,block"`
}

// PassBlock declares one pass kind.
type PassBlock struct {
	Kind        string `hcl:"kind,label"`
	Description string `hcl:"description,optional"`

	// Mode pins the dispatch mode; ModeParam reads it from a parameter of
	// the resolved point. Exactly one must be set.
	Mode      string `hcl:"mode,optional"`
	ModeParam string `hcl:"mode_param,optional"`

	ExtraOptionsParam string   `hcl:"extra_options_param,optional"`
	ExposedGroup      string   `hcl:"exposed_group,optional"`
	Bookkeeping       []string `hcl:"bookkeeping,optional"`

	Groups []*GroupBlock `hcl:"group,block"`
	Prune  []*PruneBlock `hcl:"prune,block"`
	Rules  []*RuleBlock  `hcl:"rule,block"`
}

// ManifestConfig is the top-level structure of a pass manifest file.
type ManifestConfig struct {
	Passes []*PassBlock `hcl:"pass,block"`
	Body   hcl.Body     `hcl:",remain"`
}
