// Package oracle runs a project's test suite and turns its output into a verdict.
//
// Each supported framework is a strategy: marker files used for detection, the command
// that runs the suite, a parser for failing test identifiers and an optional source
// resolver for a failing test.
package oracle

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownFramework is returned for a framework name that has no strategy.
var ErrUnknownFramework = errors.New("unknown test framework")

// Framework names a test framework strategy.
type Framework string

const (
	Auto   Framework = "auto"
	Pytest Framework = "pytest"
	NPM    Framework = "npm"
	Cargo  Framework = "cargo"
	Go     Framework = "go"
)

// Result is the outcome of one suite invocation.
type Result struct {
	Passed       bool
	Output       string
	FailingTests []string
	// Inconclusive is set when the suite could not run to completion
	// (timeout or the command could not start). Passed is false and
	// FailingTests is empty in that case.
	Inconclusive bool
}

// Contains reports whether id is in the failing list.
func (r Result) Contains(id string) bool {
	for _, t := range r.FailingTests {
		if t == id {
			return true
		}
	}
	return false
}

// Strategy bundles everything framework-specific.
type Strategy struct {
	Name    Framework
	Markers []string
	Command []string
	Parse   func(output string) []string
	Resolve func(root, id string) (TestContext, bool)
}

var strategies = map[Framework]Strategy{
	Pytest: {
		Name:    Pytest,
		Markers: []string{"pytest.ini", "pyproject.toml"},
		Command: []string{"python", "-m", "pytest", "-v", "--tb=short"},
		Parse:   ParsePytest,
		Resolve: resolvePytest,
	},
	NPM: {
		Name:    NPM,
		Markers: []string{"package.json"},
		Command: []string{"npm", "test"},
		Parse:   ParseNPM,
		Resolve: resolveFileID,
	},
	Cargo: {
		Name:    Cargo,
		Markers: []string{"Cargo.toml"},
		Command: []string{"cargo", "test"},
		Parse:   ParseCargo,
	},
	Go: {
		Name:    Go,
		Markers: []string{"go.mod"},
		Command: []string{"go", "test", "./..."},
		Parse:   ParseGo,
		Resolve: resolveGo,
	},
}

// detectionOrder is the order marker files are probed in.
var detectionOrder = []Framework{Pytest, NPM, Cargo, Go}

// Lookup returns the strategy for a framework name.
func Lookup(name Framework) (Strategy, error) {
	s, ok := strategies[Framework(strings.ToLower(string(name)))]
	if !ok {
		return Strategy{}, fmt.Errorf("%w: %q", ErrUnknownFramework, name)
	}
	return s, nil
}

// Names lists the explicit framework names, sorted.
func Names() []string {
	out := make([]string, 0, len(strategies))
	for name := range strategies {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}

// ParseFailures parses output with the named framework's parser.
func ParseFailures(name Framework, output string) ([]string, error) {
	s, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return s.Parse(output), nil
}
