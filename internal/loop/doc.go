package loop

// Package loop drives all periodic work from a single goroutine.
//
// A pass polls every task gate in order and runs whatever is due inline,
// so tasks never run concurrently with each other. That trades throughput
// for the memory model of a control-loop main(): no task ever observes
// another task half-done.
