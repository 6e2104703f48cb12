// Package validate applies domain rejection rules to a resolved search
// point. Rules are pure functions: they never mutate the point and never
// perform I/O. A rejection means "this point is not worth evaluating",
// not a crash; advisory rules accept the point but attach a warning.
package validate

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/quantgridgo/internal/searchspace"
)

// Finding is the outcome of one rule firing. Reject findings stop
// evaluation of the point; advisory findings only add a warning.
type Finding struct {
	Reject  bool
	Message string
}

// CheckFunc inspects a resolved point and returns a finding, or nil when
// the rule does not apply.
type CheckFunc func(point searchspace.Point) *Finding

// Rule is one named validation rule.
type Rule struct {
	Name  string
	Check CheckFunc
}

// Result is the outcome of validating a point against a rule set.
type Result struct {
	OK       bool
	Rule     string
	Reason   string
	Warnings []string
}

// Set is an ordered collection of rules. Order matters only for
// determinism of warnings and of which rejection is reported first.
type Set struct {
	rules []Rule
}

// NewSet creates a rule set.
func NewSet(rules ...Rule) *Set {
	return &Set{rules: rules}
}

// Add appends rules to the set.
func (s *Set) Add(rules ...Rule) {
	s.rules = append(s.rules, rules...)
}

// Validate runs every rule against the point. The first rejecting rule
// wins; advisory findings from rules evaluated before it are kept.
func (s *Set) Validate(point searchspace.Point) Result {
	result := Result{OK: true}
	for _, rule := range s.rules {
		finding := rule.Check(point)
		if finding == nil {
			continue
		}
		if finding.Reject {
			result.OK = false
			result.Rule = rule.Name
			result.Reason = finding.Message
			return result
		}
		result.Warnings = append(result.Warnings, finding.Message)
	}
	return result
}

// RejectedError is the error shape the orchestrator reports when a rule
// rejected the point.
type RejectedError struct {
	Rule   string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("search point rejected by rule %q: %s", e.Rule, e.Reason)
}

// Cond is one parameter/value equality condition of a combination rule.
type Cond struct {
	Param  string
	Equals cty.Value
}

// Combination builds a rule that fires when every listed parameter holds
// the given value. Parameters absent from the point never match.
func Combination(name, message string, reject bool, conds ...Cond) Rule {
	return Rule{
		Name: name,
		Check: func(point searchspace.Point) *Finding {
			for _, cond := range conds {
				val, ok := point[cond.Param]
				if !ok || !val.RawEquals(cond.Equals) {
					return nil
				}
			}
			return &Finding{Reject: reject, Message: message}
		},
	}
}
