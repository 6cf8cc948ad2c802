// Package memory sets the Go runtime soft memory limit (GOMEMLIMIT) from the
// container's memory limit, so the garbage collector works harder before the
// container is OOM-killed.
//
// The limit is taken from, in order:
//
//  1. GOMEMLIMIT, when set explicitly (the runtime has already applied it)
//  2. MEMORY_LIMIT, a byte count passed in by the orchestrator
//  3. the cgroup v2 memory.max file
//
// Only a fraction of the container limit (MEMORY_RATIO, default 0.9) is given
// to the Go heap; the rest covers stacks, cgo allocations in SQLite and the
// reload supervisor's children.
package memory
