package mock

import (
	"context"

	"github.com/berth-deploy/berth/pkg/builder"
)

// Builder lets tests script the build outcome.
type Builder struct {
	DeployFn func(ctx context.Context, input builder.Input) (builder.Result, error)
}

func (m *Builder) Deploy(ctx context.Context, input builder.Input) (builder.Result, error) {
	if m.DeployFn == nil {
		return builder.Result{Status: builder.StatusSuccess}, nil
	}
	return m.DeployFn(ctx, input)
}

var _ builder.Builder = &Builder{}
