package config

// Table is the merged parameter table a pass variant resolves against.
// It preserves first-insertion order for deterministic iteration and
// remembers which group contributed each surviving descriptor.
type Table struct {
	order  []string
	specs  map[string]*ParamSpec
	origin map[string]string
}

// Merge builds a table from the groups in the given order. A later group's
// descriptor for an already-present name replaces the earlier one in place;
// the name keeps its original position but its origin moves to the newer
// group.
func Merge(groups ...*ParamGroup) *Table {
	t := &Table{
		specs:  make(map[string]*ParamSpec),
		origin: make(map[string]string),
	}
	for _, group := range groups {
		for _, spec := range group.Specs {
			if _, exists := t.specs[spec.Name]; !exists {
				t.order = append(t.order, spec.Name)
			}
			t.specs[spec.Name] = spec
			t.origin[spec.Name] = group.Name
		}
	}
	return t
}

// Names returns the parameter names in deterministic table order. The
// returned slice must not be mutated.
func (t *Table) Names() []string {
	return t.order
}

// Spec returns the descriptor for the given name, if present.
func (t *Table) Spec(name string) (*ParamSpec, bool) {
	spec, ok := t.specs[name]
	return spec, ok
}

// Origin returns the name of the group that contributed the surviving
// descriptor for the given parameter.
func (t *Table) Origin(name string) (string, bool) {
	group, ok := t.origin[name]
	return group, ok
}

// Len returns the number of parameters in the table.
func (t *Table) Len() int {
	return len(t.order)
}
