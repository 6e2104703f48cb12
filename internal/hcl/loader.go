// Package hcl loads pass manifest files and translates them into the
// format-agnostic config model. It is the only package that knows the
// manifest is HCL; everything downstream consumes registry registrations.
package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/quantgridgo/internal/ctxlog"
	"github.com/vk/quantgridgo/internal/fsutil"
	"github.com/vk/quantgridgo/internal/registry"
	"github.com/vk/quantgridgo/internal/schema"
)

// Loader parses pass manifest files.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a Loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load reads every manifest under the given paths (files or directories)
// and returns the pass registrations they declare, in file order.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]*registry.RegisteredPass, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("manifest path %q: %w", path, err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, fmt.Errorf("scanning %q for manifests: %w", path, err)
			}
			files = append(files, found...)
		} else {
			files = append(files, path)
		}
	}
	logger.Debug("Loading pass manifests.", "files", len(files))

	var passes []*registry.RegisteredPass
	for _, file := range files {
		hclFile, diags := l.parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing manifest %q: %w", file, diags)
		}

		var manifest schema.ManifestConfig
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &manifest); diags.HasErrors() {
			return nil, fmt.Errorf("decoding manifest %q: %w", file, diags)
		}

		for _, block := range manifest.Passes {
			pass, err := translatePass(ctx, block)
			if err != nil {
				return nil, fmt.Errorf("manifest %q: %w", file, err)
			}
			logger.Debug("Loaded pass manifest.", "kind", pass.Definition.Kind, "file", file)
			passes = append(passes, pass)
		}
	}
	return passes, nil
}
