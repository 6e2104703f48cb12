// Package config defines the format-agnostic model of a pass's parameter
// space: individual parameter descriptors, named ordered groups of them,
// the merged parameter table a pass variant is resolved against, and the
// pass definition tying groups, pruning and bookkeeping together. Both the
// built-in Go tables and the HCL manifest loader produce this model.
package config
