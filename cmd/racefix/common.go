package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/metalagman/racefix/internal/db"
)

const stateDirName = ".racefix"

func stateDir(projectRoot string) string {
	return filepath.Join(projectRoot, stateDirName)
}

func runsDir(projectRoot string) string {
	return filepath.Join(stateDir(projectRoot), "runs")
}

// projectRoot resolves the optional path argument to an absolute directory.
func projectRoot(args []string) (string, error) {
	path := "."
	if len(args) > 0 && args[0] != "" {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve project path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project path %s is not a directory", abs)
	}
	return abs, nil
}

func openDB(projectRoot string) (*sql.DB, func(), error) {
	dir := stateDir(projectRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, func() {}, err
	}
	storeDB, err := db.Open(filepath.Join(dir, "racefix.db"))
	if err != nil {
		return nil, func() {}, err
	}
	return storeDB, func() { _ = storeDB.Close() }, nil
}
