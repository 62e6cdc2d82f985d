// Package profile provides optional runtime profiling for kola.
//
// Profiling wraps [github.com/pkg/profile] and is compiled in only with the
// pprof build tag:
//
//	go build -tags pprof -o kola .
//
// Without the tag, [Modes] is empty and [Profiler.Start] returns a no-op
// stopper, so callers never need their own build constraints.
//
// # Modes
//
//   - allocs:    memory allocation profiling (all allocations)
//   - block:     blocking profiling
//   - clock:     wall-clock profiling
//   - cpu:       CPU profiling
//   - goroutine: goroutine profiling
//   - heap:      heap profiling (live allocations)
//   - mem:       general memory profiling
//   - mutex:     mutex contention profiling
//   - thread:    thread creation profiling
//   - trace:     execution trace
//
// # Usage
//
//	p := profile.Make(profile.WithMode("cpu"), profile.WithPath("/tmp/kola"))
//	defer p.Start().Stop()
//
// From the command line:
//
//	kola --pprof-mode=cpu --pprof-dir=./profiles run story.kola
//	go tool pprof ./kola ./profiles/cpu.pprof
//
// The pprof build also imports [net/http/pprof], registering its handlers
// on [net/http.DefaultServeMux] for programs embedding the runtime.
package profile
