package oracle

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TestContext is the source a failing test lives in.
type TestContext struct {
	File    string
	Content string
}

// skipDirs are never walked when searching for test sources.
var skipDirs = map[string]bool{
	".git":         true,
	".racefix":     true,
	"vendor":       true,
	"node_modules": true,
	"target":       true,
}

// ContextResolver locates the source file of a failing test.
type ContextResolver struct{}

// Resolve returns the file and content for id. ok is false when nothing readable
// and non-empty could be found inside root.
func (ContextResolver) Resolve(root, id string, fw Framework) (TestContext, bool) {
	s, err := Lookup(fw)
	if err != nil || s.Resolve == nil {
		return TestContext{}, false
	}
	return s.Resolve(root, id)
}

func resolvePytest(root, id string) (TestContext, bool) {
	filePart, _, found := strings.Cut(id, "::")
	if !found {
		return TestContext{}, false
	}
	return readInside(root, filePart)
}

func resolveFileID(root, id string) (TestContext, bool) {
	return readInside(root, id)
}

func resolveGo(root, id string) (TestContext, bool) {
	name, _, _ := strings.Cut(id, "/")
	if name == "" {
		return TestContext{}, false
	}
	needle := "func " + name + "("
	var found TestContext
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), "_test.go") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if strings.Contains(string(data), needle) {
			found = TestContext{File: path, Content: string(data)}
			return fs.SkipAll
		}
		return nil
	})
	return found, found.Content != ""
}

func readInside(root, name string) (TestContext, bool) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if !Within(root, path) {
		return TestContext{}, false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return TestContext{}, false
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return TestContext{}, false
	}
	return TestContext{File: path, Content: string(data)}, true
}

// Within reports whether path is root or below it.
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
