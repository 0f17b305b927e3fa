// Package engine is the boundary to the remote views query engine.
//
// The engine owns every join, aggregation and resolution decision. This
// package only publishes queryset definitions and fetches the datasets the
// engine materializes for them:
//
//	pub, err := eng.Publish(ctx, qs)
//	ds, err := pub.Fetch(ctx)
//
// Fetch is only reachable through the handle Publish returns, so a dataset
// can never be requested for a definition that was not published first.
package engine

import (
	"context"

	"github.com/prio-data/queries-benchmark/internal/dataset"
	"github.com/prio-data/queries-benchmark/internal/queryset"
)

// Engine commits queryset definitions.
type Engine interface {
	// Publish registers q with the engine, replacing any previous
	// definition with the same name.
	Publish(ctx context.Context, q *queryset.Queryset) (Published, error)
}

// Published is a queryset definition the engine has accepted.
type Published interface {
	// Name is the queryset name the definition was published under.
	Name() string

	// Fetch materializes the dataset. It blocks until the engine has
	// produced it or ctx is done.
	Fetch(ctx context.Context) (*dataset.Dataset, error)
}
