// Package trace provides structured event tracing for the heapcore runtime.
//
// It is the runtime's logging channel: the VM reports collection cycles,
// collector phases and individual allocations as events, and the CLI routes
// them to a stream, an in-memory ring, or both.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	heapcore demo --trace=- --trace-level=phase
//
// # Architecture
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: buffered write to a file or stderr; errors flush at once
//   - RingTracer: circular buffer kept for post-mortem dumps
//   - MultiTracer: fans out to several tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: failures only (aborted collections, failed script steps)
//   - LevelCycle: session and collection cycle boundaries
//   - LevelPhase: collector phases (mark, reconcile, sweep)
//   - LevelDebug: everything including per-object alloc/free
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeCycle, "gc", parentID)
//	defer span.End("")
package trace
