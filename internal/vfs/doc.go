// Package vfs provides the overlay filesystem the build pipeline compiles
// through.
//
// An Overlay presents the real disk for every path except a small set of
// synthetic entry modules that only exist in memory. Compiled artifacts are
// written to the same memory layer and never reach disk, so writing build
// output can not feed back into the file watcher.
//
// The overlay is an afero CopyOnWriteFs: a read-only OsFs base under a MemMapFs
// layer. Reads fall through to disk unless the path was written to memory.
package vfs
