package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/quantgridgo/internal/registry"
	"github.com/vk/quantgridgo/internal/resolve"
	"github.com/vk/quantgridgo/internal/searchspace"
)

// list prints the registered pass kinds.
func (a *App) list(reg *registry.Registry) error {
	for _, kind := range reg.Kinds() {
		pass, _ := reg.Lookup(kind)
		fmt.Fprintf(a.out, "%s\t%s\n", kind, pass.Definition.Description)
	}
	return nil
}

// describe prints a pass kind's parameter table: the discovery surface
// callers build UIs and search drivers from.
func (a *App) describe(reg *registry.Registry) error {
	pass, ok := reg.Lookup(a.cfg.PassKind)
	if !ok {
		return fmt.Errorf("unknown pass kind %q", a.cfg.PassKind)
	}

	table := pass.Definition.Table()
	for _, name := range table.Names() {
		spec, _ := table.Spec(name)
		origin, _ := table.Origin(name)
		fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\t%s\n",
			name, spec.Type.FriendlyName(), spec.Category, origin, spec.Description)
	}
	return nil
}

// resolvePoint resolves the search point file against a pass kind and
// prints the effective configuration, or the reason the point is not
// evaluable.
func (a *App) resolvePoint(ctx context.Context, reg *registry.Registry) error {
	pass, ok := reg.Lookup(a.cfg.PassKind)
	if !ok {
		return fmt.Errorf("unknown pass kind %q", a.cfg.PassKind)
	}

	point, err := readPointFile(a.cfg.PointPath)
	if err != nil {
		return err
	}

	res, err := resolve.Build(ctx, pass.Definition, point)
	if err != nil {
		var invalid *resolve.InvalidSearchPointError
		if errors.As(err, &invalid) {
			fmt.Fprintf(a.out, "not evaluable: %s\n", invalid)
			return nil
		}
		return err
	}

	if pass.Rules != nil {
		verdict := pass.Rules.Validate(res.Point)
		if !verdict.OK {
			fmt.Fprintf(a.out, "rejected by rule %q: %s\n", verdict.Rule, verdict.Reason)
			return nil
		}
		res.Warnings = append(res.Warnings, verdict.Warnings...)
	}

	for _, warning := range res.Warnings {
		fmt.Fprintf(a.out, "warning: %s\n", warning)
	}

	rendered, err := renderEffective(res.Effective)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, rendered)
	return nil
}

// readPointFile reads a search point from a JSON object file.
func readPointFile(path string) (searchspace.Point, error) {
	if path == "" {
		return searchspace.Point{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading search point: %w", err)
	}
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return nil, fmt.Errorf("typing search point %q: %w", path, err)
	}
	val, err := ctyjson.Unmarshal(raw, ty)
	if err != nil {
		return nil, fmt.Errorf("decoding search point %q: %w", path, err)
	}
	if !val.Type().IsObjectType() {
		return nil, fmt.Errorf("search point %q must be a JSON object", path)
	}

	point := searchspace.Point{}
	for name, v := range val.AsValueMap() {
		point[name] = v
	}
	return point, nil
}

// renderEffective renders the effective configuration as JSON.
func renderEffective(effective resolve.EffectiveConfig) (string, error) {
	obj := cty.EmptyObjectVal
	if len(effective) > 0 {
		obj = cty.ObjectVal(effective)
	}
	raw, err := ctyjson.Marshal(obj, obj.Type())
	if err != nil {
		return "", fmt.Errorf("rendering effective config: %w", err)
	}
	return string(raw), nil
}
