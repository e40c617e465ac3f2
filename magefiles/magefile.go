// Package main provides build targets for recman using Mage.
//
// Usage:
//
//	mage build        Compile the recman binary to bin/
//	mage test         Run all tests
//	mage golden       Regenerate golden files for every package that has them
//	mage scenarios    Run the harness scenarios through the built binary
//	mage lint         Run golangci-lint
//	mage clean        Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName   = "recman"
	binaryDir    = "bin"
	cmdDir       = "./cmd/recman"
	scenariosDir = "internal/harness/testdata/scenarios"
)

var goldenPackages = []string{
	"./internal/planner/...",
	"./internal/querysql/...",
	"./internal/pgstore/...",
	"./internal/harness/...",
}

// Build compiles the recman binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Golden regenerates goldie fixtures.
func Golden() error {
	args := append([]string{"test"}, goldenPackages...)
	args = append(args, "-update")
	return sh.RunV("go", args...)
}

// Scenarios builds first, then runs the harness scenarios with the CLI.
func Scenarios() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binaryDir, binaryName), "test", scenariosDir)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	return os.RemoveAll(binaryDir)
}
