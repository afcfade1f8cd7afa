// Package storage reads and writes model artifacts.
//
// A trained model is a single opaque blob. Training writes it once at the end
// of a run and serving reads it once at startup, so the store only needs
// whole-object reads, whole-object replacement and an existence check. [Local]
// keeps artifacts on disk and [S3Store] in an S3-compatible bucket; [Open]
// picks one from a location string such as "models/model.msgpack" or
// "s3://bucket/identag/model.msgpack".
package storage

import (
	"context"
	"io"
)

// FileStore holds artifacts addressed by slash-separated paths relative to
// the store root. Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens an artifact. A missing artifact yields an error wrapping
	// os.ErrNotExist. The caller closes the reader.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write starts replacing an artifact. Readers keep seeing the previous
	// content until Close returns nil; a failed Close leaves it untouched.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Exists reports whether an artifact is present.
	Exists(ctx context.Context, path string) (bool, error)
}
