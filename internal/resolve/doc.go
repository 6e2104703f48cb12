// Package resolve turns a pass definition plus a partial search point into
// a fully concrete, internally consistent run configuration. It fills in
// conditional defaults, drops parameters that are irrelevant under the
// chosen mode, folds exposed override parameters into the free-form
// options map with deterministic collision warnings, and strips
// bookkeeping keys so the execution boundary only ever sees foreign-free,
// concrete values.
package resolve
