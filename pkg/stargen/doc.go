// Package stargen implements a binding generator scripted in Starlark.
//
// A script defines gen(header, prefix, deps) and optionally prepare() and finalize(output). Output
// is collected with the emit() builtin and written to the artifact once finalize() returns.
// Relative paths are resolved against the working directory, which the orchestrator points at the
// script's directory while the generator is active.
package stargen
