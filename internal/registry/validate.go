package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/quantgridgo/internal/config"
	"github.com/vk/quantgridgo/internal/ctxlog"
	"github.com/vk/quantgridgo/internal/dag"
	"github.com/vk/quantgridgo/internal/searchspace"
)

// Validate performs a strict consistency check over every registered pass
// definition: conditional parents must be declared parameters, the parent
// graph must be acyclic, and every group or parameter a definition refers
// to must exist. It runs once at startup so that run-time resolution only
// ever sees structurally sound tables.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, kind := range r.Kinds() {
		pass := r.passes[kind]
		if err := validateDefinition(pass.Definition); err != nil {
			errs = append(errs, fmt.Sprintf("pass %q: %v", kind, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	logger.Debug("Registry validation passed.", "kinds", len(r.passes))
	return nil
}

func validateDefinition(def *config.PassDefinition) error {
	table := def.Table()

	graph := dag.New()
	for _, name := range table.Names() {
		graph.AddNode(name)
	}

	for _, name := range table.Names() {
		spec, _ := table.Spec(name)
		for _, parent := range conditionalParents(spec.Default, nil) {
			if _, ok := table.Spec(parent); !ok {
				return fmt.Errorf("parameter %q: default references undeclared parent %q", name, parent)
			}
			if err := graph.AddEdge(parent, name); err != nil {
				return fmt.Errorf("parameter %q: %w", name, err)
			}
		}
		// Allowed-set parents only need to be declared; they do not feed
		// default resolution, so they stay out of the cycle check.
		for _, parent := range conditionalParents(spec.Allowed, nil) {
			if _, ok := table.Spec(parent); !ok {
				return fmt.Errorf("parameter %q: choice set references undeclared parent %q", name, parent)
			}
		}
	}

	if err := graph.DetectCycles(); err != nil {
		return err
	}

	groups := make(map[string]bool, len(def.Groups))
	for _, group := range def.Groups {
		groups[group.Name] = true
	}
	if def.ExposedGroup != "" && !groups[def.ExposedGroup] {
		return fmt.Errorf("exposed group %q is not one of the composed groups", def.ExposedGroup)
	}
	if def.ExposedGroup != "" && def.ExtraOptionsParam == "" {
		return fmt.Errorf("exposed group %q declared without an extra options parameter", def.ExposedGroup)
	}
	if def.ExtraOptionsParam != "" {
		if _, ok := table.Spec(def.ExtraOptionsParam); !ok {
			return fmt.Errorf("extra options parameter %q is not declared", def.ExtraOptionsParam)
		}
	}
	for _, rule := range def.Prune {
		if _, ok := table.Spec(rule.Parent); !ok {
			return fmt.Errorf("prune rule references undeclared parameter %q", rule.Parent)
		}
		for _, group := range rule.Groups {
			if !groups[group] {
				return fmt.Errorf("prune rule references unknown group %q", group)
			}
		}
	}
	for _, name := range def.Bookkeeping {
		if _, ok := table.Spec(name); !ok {
			return fmt.Errorf("bookkeeping key %q is not declared", name)
		}
	}
	return nil
}

// conditionalParents collects every parent name reachable through the
// search value, including nested conditionals in branches.
func conditionalParents(sv searchspace.SearchValue, acc []string) []string {
	cond, ok := sv.(searchspace.Conditional)
	if !ok {
		return acc
	}
	seen := make(map[string]bool, len(acc))
	for _, p := range acc {
		seen[p] = true
	}
	for _, parent := range cond.Parents {
		if !seen[parent] {
			acc = append(acc, parent)
			seen[parent] = true
		}
	}
	for _, cs := range cond.Support {
		acc = conditionalParents(cs.Then, acc)
	}
	acc = conditionalParents(cond.Default, acc)
	return acc
}
