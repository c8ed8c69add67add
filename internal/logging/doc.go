// Package logging provides file-based structured logging with rotation for docrag.
// Logs are JSON lines written to the state directory; --debug also mirrors them to stderr.
// Standard output is reserved for answers, so nothing here ever writes to it.
package logging
