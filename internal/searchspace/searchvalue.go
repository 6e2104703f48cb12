package searchspace

import (
	"github.com/zclconf/go-cty/cty"
)

// SearchValue describes the value space of one parameter. It is a closed
// tagged variant: Fixed, Categorical, or Conditional.
type SearchValue interface {
	searchValue()
}

// Fixed always resolves to a single value. The value may be one of the
// reserved sentinels, which is how a conditional branch declares an
// unsupported or irrelevant outcome as its default.
type Fixed struct {
	Value cty.Value
}

// NewFixed creates a Fixed search value.
func NewFixed(v cty.Value) Fixed {
	return Fixed{Value: v}
}

func (Fixed) searchValue() {}

// Categorical is an enumerated set of allowed values. Order of first
// insertion is preserved so that choice enumeration is deterministic;
// duplicates (by structural equality) are dropped.
type Categorical struct {
	values []cty.Value
}

// NewCategorical creates a Categorical from the given values, deduplicating
// by structural equality while preserving first-seen order.
func NewCategorical(vals ...cty.Value) Categorical {
	c := Categorical{values: make([]cty.Value, 0, len(vals))}
	for _, v := range vals {
		if !c.Contains(v) {
			c.values = append(c.values, v)
		}
	}
	return c
}

// Boolean is the two-element categorical {true, false}.
func Boolean() Categorical {
	return NewCategorical(cty.True, cty.False)
}

// Values returns the choice set in deterministic order. The returned slice
// must not be mutated.
func (c Categorical) Values() []cty.Value {
	return c.values
}

// Contains reports whether v is a member of the choice set.
func (c Categorical) Contains(v cty.Value) bool {
	for _, existing := range c.values {
		if existing.RawEquals(v) {
			return true
		}
	}
	return false
}

func (Categorical) searchValue() {}

// Case is one branch of a Conditional: an exact tuple of parent values and
// the search value that applies when every parent matches.
type Case struct {
	Key  []cty.Value
	Then SearchValue
}

// Conditional selects a search value from the concrete values of named
// parent parameters. Lookup is exact tuple equality over the declared
// parent order; no partial or pattern matching. When no case matches, the
// Default branch applies; a nil Default means the parameter is ignored for
// unmatched combinations.
type Conditional struct {
	Parents []string
	Support []Case
	Default SearchValue
}

// NewConditional creates a Conditional. Every case key must have exactly
// one value per declared parent; violations panic because they are
// programming errors in a parameter table, not runtime conditions.
func NewConditional(parents []string, support []Case, def SearchValue) Conditional {
	for _, cs := range support {
		if len(cs.Key) != len(parents) {
			panic("searchspace: conditional case key arity does not match parents")
		}
	}
	return Conditional{Parents: parents, Support: support, Default: def}
}

// match returns the branch for the given parent value tuple, or the default
// branch when no case key matches exactly.
func (c Conditional) match(key []cty.Value) SearchValue {
	for _, cs := range c.Support {
		if tupleEquals(cs.Key, key) {
			return cs.Then
		}
	}
	return c.Default
}

func (Conditional) searchValue() {}

// PrependParent returns a copy of c with an additional leading parent. Only
// case keys are extended with matchVal; combinations where the new parent
// has any other value fall through to def. This is how a mode-agnostic
// conditional is narrowed to apply only under one mode.
func PrependParent(c Conditional, parent string, matchVal cty.Value, def SearchValue) Conditional {
	out := Conditional{
		Parents: append([]string{parent}, c.Parents...),
		Support: make([]Case, 0, len(c.Support)),
		Default: def,
	}
	for _, cs := range c.Support {
		out.Support = append(out.Support, Case{
			Key:  append([]cty.Value{matchVal}, cs.Key...),
			Then: cs.Then,
		})
	}
	return out
}

// tupleEquals reports exact structural equality of two value tuples.
func tupleEquals(a, b []cty.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].RawEquals(b[i]) {
			return false
		}
	}
	return true
}
