// Package stream provides a buffered, non-blocking, line-oriented wrapper
// around a raw file descriptor. It knows nothing about processes or
// message queues; it only turns byte-at-a-time pipe I/O into whole
// delimited lines without losing partial data across non-blocking retries.
package stream
