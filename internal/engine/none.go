// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/pkg/types"
)

// None is the pass-through engine: the notebook comes back unexecuted. It
// serves prepare-only runs where only parameterization, metadata, and
// extraction are wanted.
type None struct{}

func (None) Name() types.EngineName { return types.EngineNone }

func (None) Execute(_ context.Context, nb *notebook.Notebook, _ Options) (*notebook.Notebook, error) {
	return nb, nil
}
