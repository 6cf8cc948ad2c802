// Package reload runs the journiv server as a child process and restarts it
// when files under the watched directories change.
//
// Events are debounced so that an editor save or a rebuild that touches many
// files causes a single restart. The running child is stopped with SIGTERM and
// killed if it has not exited after a grace period. When the child exits on
// its own, the supervisor logs the exit and waits for the next change before
// starting it again.
package reload
