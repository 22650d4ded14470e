package oracle

import (
	"os"
	"path/filepath"
)

// Detect guesses the framework from marker files in root. Pytest is the fallback.
func Detect(root string) Framework {
	for _, name := range detectionOrder {
		for _, marker := range strategies[name].Markers {
			if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
				return name
			}
		}
	}
	return Pytest
}

// Resolve maps "auto" (or empty) to a detected framework and validates explicit names.
func Resolve(root string, name Framework) (Framework, error) {
	if name == "" || name == Auto {
		return Detect(root), nil
	}
	s, err := Lookup(name)
	if err != nil {
		return "", err
	}
	return s.Name, nil
}
