// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Profile is the style configuration applied to generated artifacts. It is
// read from the target project's pyproject.toml so extracted code follows the
// same conventions as the code it will live next to.
type Profile struct {
	LineLength      int
	TargetVersion   string
	ISortProfile    string
	KnownFirstParty []string
	RuffSelect      []string
	RuffIgnore      []string
	CoverageExclude []string
	SpellIgnore     []string
}

// DefaultProfile is used when the project carries no pyproject.toml.
func DefaultProfile() Profile {
	return Profile{
		LineLength:    120,
		TargetVersion: "py38",
	}
}

// pyprojectDoc mirrors the tool tables we read. Unknown keys and tables are
// ignored by the decoder.
type pyprojectDoc struct {
	Tool struct {
		Black struct {
			LineLength    *int     `toml:"line-length"`
			TargetVersion []string `toml:"target-version"`
		} `toml:"black"`
		Isort struct {
			Profile         string   `toml:"profile"`
			LineLength      *int     `toml:"line_length"`
			KnownFirstParty []string `toml:"known_first_party"`
		} `toml:"isort"`
		Ruff struct {
			LineLength *int     `toml:"line-length"`
			Select     []string `toml:"select"`
			Ignore     []string `toml:"ignore"`
		} `toml:"ruff"`
		Coverage struct {
			Report struct {
				ExcludeLines []string `toml:"exclude_lines"`
			} `toml:"report"`
		} `toml:"coverage"`
		Codespell struct {
			IgnoreWordsList string `toml:"ignore-words-list"`
		} `toml:"codespell"`
	} `toml:"tool"`
}

// LoadProfile reads <projectRoot>/pyproject.toml into a Profile. A missing
// file or empty root yields the defaults; a file that fails to parse is an
// error so a broken config never silently degrades to defaults.
func LoadProfile(projectRoot string) (Profile, error) {
	profile := DefaultProfile()
	if projectRoot == "" {
		return profile, nil
	}
	path := filepath.Join(projectRoot, "pyproject.toml")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return profile, nil
	}
	if err != nil {
		return profile, fmt.Errorf("read %s: %w", path, err)
	}

	var doc pyprojectDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return profile, fmt.Errorf("parse %s: %w", path, err)
	}

	// black wins on line length, then ruff, then isort.
	switch {
	case doc.Tool.Black.LineLength != nil:
		profile.LineLength = *doc.Tool.Black.LineLength
	case doc.Tool.Ruff.LineLength != nil:
		profile.LineLength = *doc.Tool.Ruff.LineLength
	case doc.Tool.Isort.LineLength != nil:
		profile.LineLength = *doc.Tool.Isort.LineLength
	}
	if len(doc.Tool.Black.TargetVersion) > 0 {
		profile.TargetVersion = doc.Tool.Black.TargetVersion[0]
	}
	profile.ISortProfile = doc.Tool.Isort.Profile
	profile.KnownFirstParty = doc.Tool.Isort.KnownFirstParty
	profile.RuffSelect = doc.Tool.Ruff.Select
	profile.RuffIgnore = doc.Tool.Ruff.Ignore
	profile.CoverageExclude = doc.Tool.Coverage.Report.ExcludeLines
	if words := doc.Tool.Codespell.IgnoreWordsList; words != "" {
		for _, w := range strings.Split(words, ",") {
			if w = strings.TrimSpace(w); w != "" {
				profile.SpellIgnore = append(profile.SpellIgnore, w)
			}
		}
	}
	return profile, nil
}

func (p Profile) firstParty(module string) bool {
	root := moduleRoot(module)
	for _, known := range p.KnownFirstParty {
		if known == root {
			return true
		}
	}
	return false
}
