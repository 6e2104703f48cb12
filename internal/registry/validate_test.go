package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/quantgridgo/internal/config"
	"github.com/vk/quantgridgo/internal/searchspace"
)

func conditionalOn(parent string, val cty.Value, then searchspace.SearchValue) searchspace.Conditional {
	return searchspace.NewConditional(
		[]string{parent},
		[]searchspace.Case{{Key: []cty.Value{val}, Then: then}},
		searchspace.NewFixed(searchspace.Ignored()),
	)
}

func registerDefinition(t *testing.T, def *config.PassDefinition) *Registry {
	t.Helper()
	r := New()
	r.Register(&RegisteredPass{Definition: def, SelectMode: FixedMode(ModeDynamic)})
	return r
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("sound definition passes", func(t *testing.T) {
		def := &config.PassDefinition{
			Kind: "p",
			Groups: []*config.ParamGroup{
				config.NewParamGroup("core",
					&config.ParamSpec{
						Name:    "quant_mode",
						Type:    cty.String,
						Default: searchspace.NewFixed(cty.StringVal("static")),
					},
					&config.ParamSpec{
						Name:    "calibrate_method",
						Type:    cty.String,
						Default: conditionalOn("quant_mode", cty.StringVal("static"), searchspace.NewFixed(cty.StringVal("MinMax"))),
					},
				),
			},
			Bookkeeping: []string{"quant_mode"},
		}
		assert.NoError(t, registerDefinition(t, def).Validate(ctx))
	})

	t.Run("undeclared default parent fails", func(t *testing.T) {
		def := &config.PassDefinition{
			Kind: "p",
			Groups: []*config.ParamGroup{
				config.NewParamGroup("core",
					&config.ParamSpec{
						Name:    "calibrate_method",
						Type:    cty.String,
						Default: conditionalOn("quant_mode", cty.StringVal("static"), searchspace.NewFixed(cty.StringVal("MinMax"))),
					},
				),
			},
		}
		err := registerDefinition(t, def).Validate(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `undeclared parent "quant_mode"`)
	})

	t.Run("nested conditional parents are checked too", func(t *testing.T) {
		nested := conditionalOn("inner_parent", cty.True, searchspace.NewFixed(cty.True))
		def := &config.PassDefinition{
			Kind: "p",
			Groups: []*config.ParamGroup{
				config.NewParamGroup("core",
					&config.ParamSpec{
						Name:    "quant_mode",
						Type:    cty.String,
						Default: searchspace.NewFixed(cty.StringVal("static")),
					},
					&config.ParamSpec{
						Name:    "p1",
						Type:    cty.Bool,
						Default: conditionalOn("quant_mode", cty.StringVal("static"), nested),
					},
				),
			},
		}
		err := registerDefinition(t, def).Validate(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"inner_parent"`)
	})

	t.Run("cyclic defaults fail", func(t *testing.T) {
		def := &config.PassDefinition{
			Kind: "p",
			Groups: []*config.ParamGroup{
				config.NewParamGroup("core",
					&config.ParamSpec{
						Name:    "a",
						Type:    cty.Bool,
						Default: conditionalOn("b", cty.True, searchspace.NewFixed(cty.True)),
					},
					&config.ParamSpec{
						Name:    "b",
						Type:    cty.Bool,
						Default: conditionalOn("a", cty.True, searchspace.NewFixed(cty.True)),
					},
				),
			},
		}
		err := registerDefinition(t, def).Validate(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
	})

	t.Run("choice-set parents need declaration but not acyclicity", func(t *testing.T) {
		def := &config.PassDefinition{
			Kind: "p",
			Groups: []*config.ParamGroup{
				config.NewParamGroup("core",
					&config.ParamSpec{
						Name:    "a",
						Type:    cty.Bool,
						Default: searchspace.NewFixed(cty.True),
						Allowed: conditionalOn("b", cty.True, searchspace.Boolean()),
					},
					&config.ParamSpec{
						Name:    "b",
						Type:    cty.Bool,
						Default: searchspace.NewFixed(cty.True),
						Allowed: conditionalOn("a", cty.True, searchspace.Boolean()),
					},
				),
			},
		}
		assert.NoError(t, registerDefinition(t, def).Validate(ctx))
	})

	t.Run("dangling references fail", func(t *testing.T) {
		base := func() *config.PassDefinition {
			return &config.PassDefinition{
				Kind: "p",
				Groups: []*config.ParamGroup{
					config.NewParamGroup("core",
						&config.ParamSpec{
							Name:    "extra_options",
							Type:    cty.Map(cty.DynamicPseudoType),
							Default: searchspace.NewFixed(cty.NullVal(cty.Map(cty.DynamicPseudoType))),
						},
					),
				},
				ExtraOptionsParam: "extra_options",
			}
		}

		def := base()
		def.ExposedGroup = "nonexistent"
		assert.Error(t, registerDefinition(t, def).Validate(ctx))

		def = base()
		def.ExtraOptionsParam = "nonexistent"
		assert.Error(t, registerDefinition(t, def).Validate(ctx))

		def = base()
		def.Prune = []config.PruneRule{{Parent: "nonexistent", Equals: cty.True}}
		assert.Error(t, registerDefinition(t, def).Validate(ctx))

		def = base()
		def.Prune = []config.PruneRule{{Parent: "extra_options", Equals: cty.True, Groups: []string{"nonexistent"}}}
		assert.Error(t, registerDefinition(t, def).Validate(ctx))

		def = base()
		def.Bookkeeping = []string{"nonexistent"}
		assert.Error(t, registerDefinition(t, def).Validate(ctx))
	})

	t.Run("errors from every kind accumulate", func(t *testing.T) {
		bad := func(kind string) *config.PassDefinition {
			return &config.PassDefinition{
				Kind: kind,
				Groups: []*config.ParamGroup{
					config.NewParamGroup("core",
						&config.ParamSpec{
							Name:    "p",
							Type:    cty.Bool,
							Default: conditionalOn("missing", cty.True, searchspace.NewFixed(cty.True)),
						},
					),
				},
			}
		}
		r := New()
		r.Register(&RegisteredPass{Definition: bad("a"), SelectMode: FixedMode(ModeDynamic)})
		r.Register(&RegisteredPass{Definition: bad("b"), SelectMode: FixedMode(ModeDynamic)})

		err := r.Validate(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `pass "a"`)
		assert.Contains(t, err.Error(), `pass "b"`)
	})
}
