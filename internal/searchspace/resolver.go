package searchspace

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Point is a concrete, possibly partial assignment of parameter values.
// Resolution memoizes parent defaults into the point it is given.
type Point map[string]cty.Value

// Clone returns a shallow copy of the point. Values are immutable, so a
// shallow copy is a full snapshot.
func (p Point) Clone() Point {
	out := make(Point, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// CyclicDependencyError reports a conditional whose parent chain loops back
// onto a parameter currently being resolved.
type CyclicDependencyError struct {
	Parameter string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency involving parameter %q", e.Parameter)
}

// UnknownParameterError reports a conditional referencing a parent that is
// neither present in the point nor declared in the parameter table.
type UnknownParameterError struct {
	Parameter string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("conditional references unknown parameter %q", e.Parameter)
}

// UnresolvedCategoricalError reports a bare Categorical asked for a default
// value. A Categorical carries a choice set, never a point default; one
// that needs a default must be wrapped in a Conditional. This is a
// programming error in the parameter table.
type UnresolvedCategoricalError struct {
	Parameter string
}

func (e *UnresolvedCategoricalError) Error() string {
	return fmt.Sprintf("parameter %q: default requested on a bare categorical", e.Parameter)
}

// Lookup returns the default search value declared for a parameter name,
// used to resolve parents that are absent from the point.
type Lookup func(name string) (SearchValue, bool)

// Resolver evaluates search values against a point, resolving absent
// parents depth-first through the supplied lookup.
type Resolver struct {
	lookup Lookup
}

// NewResolver creates a Resolver. A nil lookup is valid and means every
// parent must already be present in the point.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// ResolveDefault resolves the default value of the named parameter's search
// value against point. Parents missing from the point are resolved first
// and memoized into it. The result may be a reserved sentinel; sentinels
// propagate upward unchanged from any depth.
func (r *Resolver) ResolveDefault(name string, sv SearchValue, point Point) (cty.Value, error) {
	res := &resolution{resolver: r, point: point, visiting: map[string]bool{}}
	if name != "" {
		res.visiting[name] = true
	}
	return res.defaultOf(name, sv)
}

// ResolveAllowed resolves the concrete choice set of the named parameter's
// search value against point. The result is the sentinel-only choice set
// when the matched branch declares the combination unsupported or the
// parameter irrelevant.
func (r *Resolver) ResolveAllowed(name string, sv SearchValue, point Point) ([]cty.Value, error) {
	res := &resolution{resolver: r, point: point, visiting: map[string]bool{}}
	if name != "" {
		res.visiting[name] = true
	}
	return res.allowedOf(name, sv)
}

// resolution is the state of one depth-first walk. The visiting set plays
// the role of the temporary mark in a classic three-color DFS: hitting a
// parameter already in it means the parent chain loops.
type resolution struct {
	resolver *Resolver
	point    Point
	visiting map[string]bool
}

func (res *resolution) defaultOf(name string, sv SearchValue) (cty.Value, error) {
	switch v := sv.(type) {
	case Fixed:
		return v.Value, nil
	case Categorical:
		if len(v.values) == 1 && IsSentinel(v.values[0]) {
			// A sentinel-only choice set is an outcome, not a set of data.
			return v.values[0], nil
		}
		return cty.NilVal, &UnresolvedCategoricalError{Parameter: name}
	case Conditional:
		branch, err := res.branchOf(v)
		if err != nil {
			return cty.NilVal, err
		}
		if branch == nil {
			return Ignored(), nil
		}
		return res.defaultOf(name, branch)
	default:
		return cty.NilVal, fmt.Errorf("parameter %q: unsupported search value %T", name, sv)
	}
}

func (res *resolution) allowedOf(name string, sv SearchValue) ([]cty.Value, error) {
	switch v := sv.(type) {
	case Fixed:
		return []cty.Value{v.Value}, nil
	case Categorical:
		return v.Values(), nil
	case Conditional:
		branch, err := res.branchOf(v)
		if err != nil {
			return nil, err
		}
		if branch == nil {
			return IgnoredChoice().Values(), nil
		}
		return res.allowedOf(name, branch)
	default:
		return nil, fmt.Errorf("parameter %q: unsupported search value %T", name, sv)
	}
}

// branchOf resolves the conditional's parents in declared order and returns
// the matching branch, which may be nil when no case matches and no default
// was declared.
func (res *resolution) branchOf(c Conditional) (SearchValue, error) {
	key := make([]cty.Value, len(c.Parents))
	for i, parent := range c.Parents {
		val, err := res.parentValue(parent)
		if err != nil {
			return nil, err
		}
		key[i] = val
	}
	return c.match(key), nil
}

// parentValue returns the parent's concrete value, resolving its declared
// default depth-first when it is absent from the point.
func (res *resolution) parentValue(name string) (cty.Value, error) {
	if val, ok := res.point[name]; ok {
		return val, nil
	}
	if res.visiting[name] {
		return cty.NilVal, &CyclicDependencyError{Parameter: name}
	}
	if res.resolver.lookup == nil {
		return cty.NilVal, &UnknownParameterError{Parameter: name}
	}
	sv, ok := res.resolver.lookup(name)
	if !ok {
		return cty.NilVal, &UnknownParameterError{Parameter: name}
	}

	res.visiting[name] = true
	val, err := res.defaultOf(name, sv)
	delete(res.visiting, name)
	if err != nil {
		return cty.NilVal, err
	}

	res.point[name] = val
	return val, nil
}
