package toolcheck

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry describes how to probe one tool for its version.
type Entry struct {
	Command string   `yaml:"command"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Catalog maps canonical tool names to their version probes.
type Catalog map[string]Entry

// DefaultCatalog covers the toolchains that goals commonly require.
func DefaultCatalog() Catalog {
	return Catalog{
		"node":    {Command: "node --version", Aliases: []string{"node.js", "nodejs"}},
		"npm":     {Command: "npm --version"},
		"npx":     {Command: "npx --version"},
		"ng":      {Command: "ng version", Aliases: []string{"angular cli", "angular-cli", "angular"}},
		"git":     {Command: "git --version"},
		"python":  {Command: "python3 --version", Aliases: []string{"python3"}},
		"pip":     {Command: "pip3 --version", Aliases: []string{"pip3"}},
		"go":      {Command: "go version", Aliases: []string{"golang"}},
		"docker":  {Command: "docker --version"},
		"dotnet":  {Command: "dotnet --version", Aliases: []string{".net", ".net sdk"}},
		"java":    {Command: "java -version", Aliases: []string{"jdk"}},
		"mvn":     {Command: "mvn --version", Aliases: []string{"maven"}},
		"cargo":   {Command: "cargo --version", Aliases: []string{"rust"}},
		"flutter": {Command: "flutter --version"},
		"yarn":    {Command: "yarn --version"},
		"pnpm":    {Command: "pnpm --version"},
	}
}

// DefaultTools is probed when a requirement list names nothing recognizable.
var DefaultTools = []string{"node", "npm", "git"}

// LoadCatalog reads a YAML catalog file and merges it over the defaults,
// so a user file only needs to list additions and overrides.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool catalog: %w", err)
	}
	var loaded Catalog
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse tool catalog: %w", err)
	}

	merged := DefaultCatalog()
	for name, entry := range loaded {
		merged[strings.ToLower(name)] = entry
	}
	return merged, nil
}

// resolve finds the canonical catalog name for a parsed requirement, by
// exact name, alias, or word match. Empty return means unknown. Candidate
// names are scanned in sorted order so resolution is deterministic.
func (c Catalog) resolve(requirement string) string {
	req := strings.ToLower(strings.TrimSpace(requirement))
	if _, ok := c[req]; ok {
		return req
	}

	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, a := range c[name].Aliases {
			if req == a {
				return name
			}
		}
	}

	// "angular cli 17" or "node.js v18+" still name a known tool.
	tokens := strings.FieldsFunc(req, func(r rune) bool {
		return r == ' ' || r == '(' || r == ')' || r == ','
	})
	for _, name := range names {
		for _, tok := range tokens {
			if tok == name {
				return name
			}
		}
		for _, a := range c[name].Aliases {
			if strings.Contains(a, " ") && strings.Contains(req, a) {
				return name
			}
			for _, tok := range tokens {
				if tok == a {
					return name
				}
			}
		}
	}
	return ""
}
