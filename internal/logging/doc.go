// Package logging provides the leveled logger shared by every journiv command.
//
// Messages are written as "[LEVEL] message" lines. The level comes from the
// LOG_LEVEL environment variable (debug, info, warn, error) unless a command
// overrides it with [SetLevel]. Output goes to standard output by default; the
// server tees it into a file under the logs directory with [AttachFile].
package logging
