package fsops

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// ReadCap bounds fs_read so a single tool call cannot return an
	// arbitrarily large file.
	ReadCap = 131072

	// MaxResults bounds fs_search and fs_grep result sets.
	MaxResults = 200
)

// Provider implements the filesystem tool category.
type Provider struct{}

func NewProvider() *Provider { return &Provider{} }

func (p *Provider) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "fs_list":
		return p.list(args)
	case "fs_read":
		return p.read(args)
	case "fs_read_range":
		return p.readRange(args)
	case "fs_write":
		return p.write(args)
	case "fs_delete":
		return p.delete(args)
	case "fs_move":
		return p.move(args)
	case "fs_search":
		return p.search(ctx, args)
	case "fs_grep":
		return p.grep(ctx, args)
	case "fs_patch":
		return p.patch(args)
	default:
		return nil, fmt.Errorf("unknown filesystem tool %q", name)
	}
}

func (p *Provider) list(args map[string]any) (any, error) {
	path := stringArg(args, "path")
	maxDepth := 1
	if boolArg(args, "recursive") {
		maxDepth = intArg(args, "maxDepth", 3)
		if maxDepth < 1 {
			maxDepth = 1
		}
	}

	items, err := listDir(path, "", 1, maxDepth)
	if err != nil {
		return nil, err
	}
	return map[string]any{"path": path, "entries": items}, nil
}

func listDir(root, prefix string, depth, maxDepth int) ([]map[string]any, error) {
	entries, err := os.ReadDir(filepath.Join(root, prefix))
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		name := filepath.Join(prefix, entry.Name())
		item := map[string]any{
			"name": name,
			"type": entryType(entry),
		}
		if info, err := entry.Info(); err == nil {
			item["size"] = info.Size()
			item["modified"] = info.ModTime().UTC().Format("2006-01-02T15:04:05Z")
		}
		items = append(items, item)

		if entry.IsDir() && depth < maxDepth {
			children, err := listDir(root, name, depth+1, maxDepth)
			if err != nil {
				continue // unreadable subtree
			}
			items = append(items, children...)
		}
	}
	return items, nil
}

func (p *Provider) read(args map[string]any) (any, error) {
	path := stringArg(args, "path")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// A caller may lower the cap, never raise it past ReadCap.
	limit := intArg(args, "maxBytes", ReadCap)
	if limit <= 0 || limit > ReadCap {
		limit = ReadCap
	}

	truncated := false
	if len(data) > limit {
		data = data[:limit]
		truncated = true
	}
	return map[string]any{
		"path":      path,
		"content":   string(data),
		"size":      len(data),
		"truncated": truncated,
	}, nil
}

func (p *Provider) readRange(args map[string]any) (any, error) {
	path := stringArg(args, "path")
	startLine := intArg(args, "startLine", 1)
	endLine := intArg(args, "endLine", -1)
	if startLine < 1 {
		return nil, fmt.Errorf("startLine must be >= 1, got %d", startLine)
	}
	if endLine > 0 && endLine < startLine {
		return nil, fmt.Errorf("endLine %d precedes startLine %d", endLine, startLine)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := splitLines(string(data))
	total := len(lines)
	if startLine > total {
		return map[string]any{
			"path":       path,
			"content":    "",
			"startLine":  startLine,
			"endLine":    startLine,
			"totalLines": total,
		}, nil
	}
	end := endLine
	if end <= 0 || end > total {
		end = total
	}

	// Lines are 1-based and the range is inclusive.
	selected := lines[startLine-1 : end]
	return map[string]any{
		"path":       path,
		"content":    strings.Join(selected, "\n"),
		"startLine":  startLine,
		"endLine":    end,
		"totalLines": total,
	}, nil
}

func (p *Provider) write(args map[string]any) (any, error) {
	path := stringArg(args, "path")
	content := stringArg(args, "content")
	mode := stringArg(args, "mode")
	if mode == "" {
		mode = "overwrite"
	}

	if boolArg(args, "createDirs") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	switch mode {
	case "overwrite":
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
	case "append":
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	case "create_if_missing":
		if _, err := os.Stat(path); err == nil {
			return map[string]any{"path": path, "written": false, "reason": "file exists"}, nil
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown write mode %q", mode)
	}

	return map[string]any{"path": path, "written": true, "bytes": len(content)}, nil
}

func (p *Provider) delete(args map[string]any) (any, error) {
	path := stringArg(args, "path")
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() && !boolArg(args, "recursive") {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			return nil, fmt.Errorf("directory %s not empty (pass recursive)", path)
		}
	}

	if boolArg(args, "recursive") {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"path": path, "deleted": true}, nil
}

func (p *Provider) move(args map[string]any) (any, error) {
	source := stringArg(args, "source")
	destination := stringArg(args, "destination")
	if err := os.Rename(source, destination); err != nil {
		return nil, err
	}
	return map[string]any{"source": source, "destination": destination, "moved": true}, nil
}

func (p *Provider) search(ctx context.Context, args map[string]any) (any, error) {
	root := stringArg(args, "path")
	pattern := stringArg(args, "glob")
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}
	limit := resultLimit(args, "maxResults")

	var matches []string
	truncated := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep walking
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); ok {
			if len(matches) >= limit {
				truncated = true
				return filepath.SkipAll
			}
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return map[string]any{"matches": matches, "count": len(matches), "truncated": truncated}, nil
}

func (p *Provider) grep(ctx context.Context, args map[string]any) (any, error) {
	root := stringArg(args, "path")
	pattern := stringArg(args, "pattern")
	glob := stringArg(args, "glob")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	if glob != "" && !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid glob pattern %q", glob)
	}
	limit := resultLimit(args, "maxMatches")

	var matches []map[string]any
	truncated := false
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if glob != "" {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			if ok, _ := doublestar.Match(glob, filepath.ToSlash(rel)); !ok {
				return nil
			}
		}

		data, err := os.ReadFile(path)
		if err != nil || !isProbablyText(data) {
			return nil
		}
		for i, line := range splitLines(string(data)) {
			loc := re.FindStringIndex(line)
			if loc == nil {
				continue
			}
			if len(matches) >= limit {
				truncated = true
				return filepath.SkipAll
			}
			matches = append(matches, map[string]any{
				"path":   path,
				"line":   i + 1,
				"column": loc[0] + 1,
				"text":   line,
			})
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return map[string]any{"matches": matches, "count": len(matches), "truncated": truncated}, nil
}

func (p *Provider) patch(args map[string]any) (any, error) {
	path := stringArg(args, "path")
	rawOps, ok := args["operations"].([]any)
	if !ok {
		return nil, fmt.Errorf("operations must be an array")
	}
	dryRun := boolArg(args, "dryRun")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)

	applied := 0
	for i, rawOp := range rawOps {
		op, ok := rawOp.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("operation %d is not an object", i)
		}
		switch stringArg(op, "type") {
		case "replace":
			find := stringArg(op, "find")
			if find == "" {
				return nil, fmt.Errorf("operation %d: replace requires find", i)
			}
			replace := stringArg(op, "replace")
			if !strings.Contains(content, find) {
				return nil, fmt.Errorf("operation %d: text not found: %q", i, abbreviate(find))
			}
			if boolArg(op, "all") {
				content = strings.ReplaceAll(content, find, replace)
			} else {
				content = strings.Replace(content, find, replace, 1)
			}
			applied++
		case "insert":
			line := intArg(op, "line", 0)
			text := stringArg(op, "text")
			lines := splitLines(content)
			if line < 0 || line > len(lines) {
				return nil, fmt.Errorf("operation %d: line %d out of range (0-%d)", i, line, len(lines))
			}
			// line N inserts before the Nth line; 0 prepends, len appends.
			out := make([]string, 0, len(lines)+1)
			out = append(out, lines[:line]...)
			out = append(out, text)
			out = append(out, lines[line:]...)
			content = strings.Join(out, "\n")
			applied++
		default:
			return nil, fmt.Errorf("operation %d: unknown type %q", i, stringArg(op, "type"))
		}
	}

	result := map[string]any{
		"path":              path,
		"operationsApplied": applied,
		"dryRun":            dryRun,
	}
	if dryRun {
		result["preview"] = content
		return result, nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, err
	}
	return result, nil
}

// resultLimit reads a caller-provided cap, bounded by MaxResults.
func resultLimit(args map[string]any, key string) int {
	limit := intArg(args, key, MaxResults)
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}
	return limit
}

func entryType(entry fs.DirEntry) string {
	if entry.IsDir() {
		return "directory"
	}
	return "file"
}

// splitLines splits without swallowing a trailing newline into a phantom
// empty line.
func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

func isProbablyText(data []byte) bool {
	n := len(data)
	if n > 8000 {
		n = 8000
	}
	for _, b := range data[:n] {
		if b == 0 {
			return false
		}
	}
	return true
}

func abbreviate(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}
