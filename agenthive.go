// Package agenthive provides a top-level convenience entry point for
// assembling the coordination substrate with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/agenthive"
//
//	sys, err := agenthive.New(nil, myReasoner)
//	sys.Start(ctx)
//	out := sys.ProcessRequest(ctx, "simple greeting", 5*time.Second)
//
// This is a thin wrapper around [coordinator.NewSystem]; both produce
// identical results. Use this package when you prefer the shorter import
// path.
package agenthive

import (
	"github.com/BaSui01/agenthive/agent"
	"github.com/BaSui01/agenthive/config"
	"github.com/BaSui01/agenthive/coordinator"
)

// Option configures the system created by [New].
type Option = coordinator.SystemOption

// Outcome is the result of one processed request.
type Outcome = coordinator.Outcome

// New assembles a complete system from configuration. A nil config uses
// defaults; a nil reasoner degrades agents to canned direct answers.
func New(cfg *config.Config, reasoner agent.Reasoner, opts ...Option) (*coordinator.System, error) {
	return coordinator.NewSystem(cfg, reasoner, opts...)
}

// Re-export the system options so callers never need to import coordinator/.

// WithMessageStore mirrors delivered messages into a persistence store.
var WithMessageStore = coordinator.WithMessageStore

// WithMemoryIndex gives the lead agent a recall index.
var WithMemoryIndex = coordinator.WithMemoryIndex

// WithWorkerCount overrides the size of the worker pool.
var WithWorkerCount = coordinator.WithWorkerCount
