// Package searchspace models the value space of a single pass parameter: a
// fixed value, a categorical set of choices, or a conditional table keyed by
// the chosen values of other ("parent") parameters. It also provides the
// resolver that turns such a description plus a concrete search point into
// a concrete value or choice set, walking parent chains depth-first with
// explicit cycle detection.
package searchspace
