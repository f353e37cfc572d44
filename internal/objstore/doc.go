// Package objstore abstracts the bucket of source documents the watcher
// polls. Keys are flat strings; contents are raw bytes.
//
// Two implementations ship: a filesystem store rooted at a directory, and
// an in-memory store for tests. Both present the same listing and read
// semantics, so the watcher does not care which one it polls.
package objstore
