//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test runs the unit suite and then the integration suite, stopping at the
// first failure.
func Test() error {
	mg.SerialDeps(TestUnit, TestIntegration)
	return nil
}

// TestUnit runs the fast suite; integration tests skip themselves under
// -short.
func TestUnit() error {
	return sh.RunV("go", "test", "-short", "./...")
}

// TestIntegration runs only the SQLite-backed tests (named TestIntegration*).
func TestIntegration() error {
	return sh.RunV("go", "test", "-run", "Integration", "./...")
}

// Coverage runs the whole suite once with instrumentation and prints the
// per-function summary.
func Coverage() error {
	if err := sh.RunV("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func=coverage.out")
}

// Lint runs golangci-lint over the module.
func Lint() error {
	return sh.RunV("golangci-lint", "run")
}
