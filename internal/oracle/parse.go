package oracle

import (
	"regexp"
	"strings"
)

var trailingDuration = regexp.MustCompile(`\s*\(\d+(\.\d+)?\s*m?s\)\s*$`)

// npmFailMarks are the glyphs jest and vitest print in front of a failed case.
var npmFailMarks = []string{"✕", "×", "✖"}

// ParsePytest extracts node ids from "FAILED path::name" summary lines and
// "path::name FAILED" verbose lines.
func ParsePytest(output string) []string {
	var ids []string
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "FAILED") || !strings.Contains(line, "::") {
			continue
		}
		fields := strings.Fields(line)
		for i, f := range fields {
			if f == "FAILED" && i+1 < len(fields) && strings.Contains(fields[i+1], "::") {
				ids = append(ids, fields[i+1])
				break
			}
			if strings.Contains(f, "::") && i+1 < len(fields) && fields[i+1] == "FAILED" {
				ids = append(ids, f)
				break
			}
		}
	}
	return dedupe(ids)
}

// ParseGo extracts test names from "--- FAIL: TestName (0.01s)" lines, subtests included.
func ParseGo(output string) []string {
	var ids []string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(trimmed, "--- FAIL:")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		ids = append(ids, fields[0])
	}
	return dedupe(ids)
}

// ParseCargo extracts names from "test path::name ... FAILED" lines.
func ParseCargo(output string) []string {
	var ids []string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "test ") || !strings.HasSuffix(trimmed, "FAILED") {
			continue
		}
		name, _, found := strings.Cut(strings.TrimPrefix(trimmed, "test "), " ... ")
		if !found {
			continue
		}
		if name = strings.TrimSpace(name); name != "" {
			ids = append(ids, name)
		}
	}
	return dedupe(ids)
}

// ParseNPM extracts failing suites ("FAIL path") and failing cases ("✕ name (3 ms)")
// from jest/vitest style output.
func ParseNPM(output string) []string {
	var ids []string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, "FAIL "); ok {
			if fields := strings.Fields(rest); len(fields) > 0 {
				ids = append(ids, fields[0])
			}
			continue
		}
		for _, mark := range npmFailMarks {
			if rest, ok := strings.CutPrefix(trimmed, mark); ok {
				name := strings.TrimSpace(trailingDuration.ReplaceAllString(rest, ""))
				if name != "" {
					ids = append(ids, name)
				}
				break
			}
		}
	}
	return dedupe(ids)
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
