//go:build mage

// Package main contains Mage build targets for nbforge developer tooling.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir  = "bin"
	binName = "nbforge"
	cmdPkg  = "./cmd/nbforge"
)

// Init creates the directories the build writes into.
func Init() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	return nil
}

// Build compiles the CLI binary into bin/ with version metadata baked in.
func Build() error {
	mg.Deps(Init)
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-ldflags", ldflags(), "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// ldflags stamps main.version, main.commit and main.date. Builds outside a
// git checkout keep the defaults.
func ldflags() string {
	version := "dev"
	if v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty"); err == nil {
		version = v
	}
	commit := "none"
	if c, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil {
		commit = c
	}
	date := time.Now().UTC().Format(time.RFC3339)
	return fmt.Sprintf("-X main.version=%s -X main.commit=%s -X main.date=%s",
		version, commit, date)
}
