package tools

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

// Category groups tools by the provider that executes them. Browser tools
// are only advertised while a browser extension is connected to the relay.
type Category string

const (
	CategoryAutomation Category = "automation"
	CategoryFilesystem Category = "filesystem"
	CategoryShell      Category = "shell"
	CategoryBrowser    Category = "browser"
)

// Param describes a single tool parameter. Validation at the router is
// structural (presence of required fields only); Type and Enum are
// advertised to clients through the input schema.
type Param struct {
	Type        string
	Description string
	Enum        []string
}

// Definition is the immutable description of one tool. Built once at
// startup, never mutated.
type Definition struct {
	Name        string
	Description string
	Params      map[string]Param
	Required    []string
	Category    Category
}

// Registry is the static tool catalogue. It is stateless and safe for
// concurrent readers; availability is passed in by the caller rather than
// tracked here.
type Registry struct {
	defs  map[string]Definition
	names []string
}

func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	for _, def := range catalogue() {
		r.defs[def.Name] = def
		r.names = append(r.names, def.Name)
	}
	sort.Strings(r.names)
	return r
}

// Describe looks up a single tool by name.
func (r *Registry) Describe(name string) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// DefinitionsFor returns the catalogue filtered to the currently available
// categories, in stable name order. A category absent from avail is treated
// as available; only an explicit false excludes it.
func (r *Registry) DefinitionsFor(avail map[Category]bool) []Definition {
	defs := make([]Definition, 0, len(r.names))
	for _, name := range r.names {
		def := r.defs[name]
		if enabled, ok := avail[def.Category]; ok && !enabled {
			continue
		}
		defs = append(defs, def)
	}
	return defs
}

// MCPTools converts the available definitions into mcp-go tool descriptors
// for a tools/list response.
func (r *Registry) MCPTools(avail map[Category]bool) []mcp.Tool {
	defs := r.DefinitionsFor(avail)
	out := make([]mcp.Tool, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.mcpTool())
	}
	return out
}

func (d Definition) mcpTool() mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(d.Description)}

	required := make(map[string]bool, len(d.Required))
	for _, name := range d.Required {
		required[name] = true
	}

	// Stable parameter order keeps list responses deterministic.
	names := make([]string, 0, len(d.Params))
	for name := range d.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := d.Params[name]

		var propOpts []mcp.PropertyOption
		if required[name] {
			propOpts = append(propOpts, mcp.Required())
		}
		if p.Description != "" {
			propOpts = append(propOpts, mcp.Description(p.Description))
		}
		if len(p.Enum) > 0 {
			propOpts = append(propOpts, mcp.Enum(p.Enum...))
		}

		switch p.Type {
		case "number", "integer":
			opts = append(opts, mcp.WithNumber(name, propOpts...))
		case "boolean":
			opts = append(opts, mcp.WithBoolean(name, propOpts...))
		case "object":
			opts = append(opts, mcp.WithObject(name, propOpts...))
		case "array":
			opts = append(opts, mcp.WithArray(name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(name, propOpts...))
		}
	}

	return mcp.NewTool(d.Name, opts...)
}
