package app

import "errors"

// Action selects what a CLI invocation does.
type Action string

const (
	// ActionDescribe prints a pass kind's parameter table.
	ActionDescribe Action = "describe"
	// ActionResolve resolves a search point into an effective configuration.
	ActionResolve Action = "resolve"
	// ActionList prints the registered pass kinds.
	ActionList Action = "list"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Action   Action
	PassKind string
	// PointPath is the JSON file holding the search point for resolve.
	PointPath string
	// ManifestPaths are extra pass manifests to load next to the built-in
	// kinds.
	ManifestPaths []string

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Action {
	case ActionList:
	case ActionDescribe, ActionResolve:
		if cfg.PassKind == "" {
			return nil, errors.New("a pass kind is required")
		}
	default:
		return nil, errors.New("an action is required")
	}
	return &cfg, nil
}
