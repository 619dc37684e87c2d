package quadtree

import "github.com/aukilabs/go-tooling/pkg/logs"

// Observation describes a node visited by a point query.
type Observation[T Number] struct {
	Elements int
	Region   Region[T]
	Depth    int
}

// Tracer receives an observation each time a point query leaves a node.
// Tracers shared by concurrent queries must do their own synchronization.
type Tracer[T Number] func(Observation[T])

// LogTracer returns a tracer that writes observations as debug logs.
func LogTracer[T Number]() Tracer[T] {
	return func(o Observation[T]) {
		logs.WithTag("elements", o.Elements).
			WithTag("region", o.Region.String()).
			WithTag("depth", o.Depth).
			Debug("point query left node")
	}
}
