// Package knowledge loads the robot API knowledge base used to ground
// prompts and to resolve imports during validation.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Base is a read-only snapshot of the robot's callable API surface.
type Base struct {
	Version string   `json:"version" yaml:"version"`
	Modules []Module `json:"modules" yaml:"modules"`
}

// Module groups classes under one importable SDK module.
type Module struct {
	Name    string  `json:"name"    yaml:"name"`
	Classes []Class `json:"classes" yaml:"classes"`
}

// Class describes one SDK class and its callable methods.
type Class struct {
	Name    string   `json:"name"    yaml:"name"`
	Doc     string   `json:"doc,omitempty"     yaml:"doc,omitempty"`
	Methods []Method `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// Method describes a callable on a class.
type Method struct {
	Name      string  `json:"name"                yaml:"name"`
	Signature string  `json:"signature,omitempty" yaml:"signature,omitempty"`
	Doc       string  `json:"doc,omitempty"       yaml:"doc,omitempty"`
	Params    []Param `json:"params,omitempty"    yaml:"params,omitempty"`
}

// Param documents one method parameter.
type Param struct {
	Name       string `json:"name"                 yaml:"name"`
	Type       string `json:"type,omitempty"       yaml:"type,omitempty"`
	Units      string `json:"units,omitempty"      yaml:"units,omitempty"`
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
}

// Python standard-library modules generated code may import freely.
var stdlibImports = []string{"os", "sys", "time", "math", "random", "json", "datetime"}

// Libraries the prompt guidance leans on beyond the SDK: numpy for
// Cartesian pose math, pollen_vision for perception.
var helperImports = []string{"numpy", "pollen_vision"}

// Load reads a knowledge base from a JSON or YAML file.
func Load(path string) (*Base, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}

	var base Base
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &base); err != nil {
			return nil, fmt.Errorf("parse knowledge base yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &base); err != nil {
			return nil, fmt.Errorf("parse knowledge base json: %w", err)
		}
	}
	if len(base.Modules) == 0 {
		return nil, fmt.Errorf("knowledge base %s has no modules", path)
	}
	return &base, nil
}

// Summary renders the markdown API summary fed into prompts: official
// modules, official classes, then per-class method lists with the first
// doc line only. Private methods are skipped.
func (b *Base) Summary() string {
	if b == nil || len(b.Modules) == 0 {
		return "No API documentation available."
	}
	return b.render(b.Modules)
}

// FilterForRequest ranks classes by token overlap with the request and
// renders a summary limited to the top classes. With limit <= 0 or a
// request that matches nothing, the full summary is returned.
func (b *Base) FilterForRequest(request string, limit int) string {
	if b == nil || limit <= 0 {
		return b.Summary()
	}
	total := 0
	for _, m := range b.Modules {
		total += len(m.Classes)
	}
	if total <= limit {
		return b.Summary()
	}

	tokens := requestTokens(request)
	type ranked struct {
		module Module
		class  Class
		score  int
	}
	var scored []ranked
	for _, m := range b.Modules {
		for _, c := range m.Classes {
			scored = append(scored, ranked{module: m, class: c, score: overlap(c, tokens)})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) == 0 || scored[0].score == 0 {
		return b.Summary()
	}

	keep := map[string]map[string]bool{}
	for i, s := range scored {
		if i >= limit {
			break
		}
		if keep[s.module.Name] == nil {
			keep[s.module.Name] = map[string]bool{}
		}
		keep[s.module.Name][s.class.Name] = true
	}

	var modules []Module
	for _, m := range b.Modules {
		classes := make([]Class, 0, len(m.Classes))
		for _, c := range m.Classes {
			if keep[m.Name][c.Name] {
				classes = append(classes, c)
			}
		}
		modules = append(modules, Module{Name: m.Name, Classes: classes})
	}
	return b.render(modules)
}

// AllowedImports returns the import allow-list for the validator: the
// official module names, the python stdlib whitelist, and the helper
// libraries the prompt examples use.
func (b *Base) AllowedImports() []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(b.Modules)+len(stdlibImports)+len(helperImports))
	for _, m := range b.Modules {
		if m.Name != "" && !seen[m.Name] {
			seen[m.Name] = true
			out = append(out, m.Name)
		}
	}
	out = append(out, stdlibImports...)
	out = append(out, helperImports...)
	sort.Strings(out)
	return out
}

func (b *Base) render(modules []Module) string {
	var sb strings.Builder

	sb.WriteString("# Official Modules\n")
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(&sb, "- %s\n", n)
	}
	sb.WriteString("\n# Official Classes\n")

	classNames := []string{}
	for _, m := range modules {
		for _, c := range m.Classes {
			classNames = append(classNames, c.Name)
		}
	}
	sort.Strings(classNames)
	for _, n := range classNames {
		fmt.Fprintf(&sb, "- %s\n", n)
	}

	sb.WriteString("\n# Class Methods\n")
	for _, m := range modules {
		for _, c := range m.Classes {
			if len(c.Methods) == 0 {
				continue
			}
			fmt.Fprintf(&sb, "## %s\n", c.Name)
			for _, meth := range c.Methods {
				if strings.HasPrefix(meth.Name, "_") {
					continue
				}
				fmt.Fprintf(&sb, "- %s%s: %s\n", meth.Name, meth.Signature, firstLine(meth.Doc))
			}
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func requestTokens(request string) map[string]bool {
	tokens := map[string]bool{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(request), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if len(tok) > 2 {
			tokens[tok] = true
		}
	}
	return tokens
}

func overlap(c Class, tokens map[string]bool) int {
	score := 0
	if tokens[strings.ToLower(c.Name)] {
		score += 3
	}
	for _, m := range c.Methods {
		for _, part := range strings.Split(strings.ToLower(m.Name), "_") {
			if tokens[part] {
				score++
			}
		}
	}
	for _, part := range camelParts(c.Name) {
		if tokens[part] {
			score += 2
		}
	}
	return score
}

func camelParts(name string) []string {
	var parts []string
	var cur strings.Builder
	for _, r := range name {
		if 'A' <= r && r <= 'Z' && cur.Len() > 0 {
			parts = append(parts, strings.ToLower(cur.String()))
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		parts = append(parts, strings.ToLower(cur.String()))
	}
	return parts
}
