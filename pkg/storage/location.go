package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidLocation is returned when an artifact location cannot be parsed.
var ErrInvalidLocation = errors.New("storage: invalid location")

// Location identifies a single artifact, either a local file or an object
// addressed as s3://bucket/key.
type Location struct {
	Bucket string // empty for local files
	Dir    string // local directory or key prefix
	Name   string // final path element
}

// ParseLocation parses a local path or an s3:// URL.
func ParseLocation(s string) (Location, error) {
	if s == "" {
		return Location{}, fmt.Errorf("%w: empty", ErrInvalidLocation)
	}
	rest, ok := strings.CutPrefix(s, "s3://")
	if !ok {
		return Location{Dir: filepath.Dir(s), Name: filepath.Base(s)}, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return Location{}, fmt.Errorf("%w: %q needs bucket and key", ErrInvalidLocation, s)
	}
	dir := path.Dir(key)
	if dir == "." {
		dir = ""
	}
	return Location{Bucket: bucket, Dir: dir, Name: path.Base(key)}, nil
}

// IsS3 reports whether the location names an S3 object.
func (l Location) IsS3() bool { return l.Bucket != "" }

func (l Location) String() string {
	if !l.IsS3() {
		return filepath.Join(l.Dir, l.Name)
	}
	if l.Dir == "" {
		return "s3://" + l.Bucket + "/" + l.Name
	}
	return "s3://" + l.Bucket + "/" + l.Dir + "/" + l.Name
}

// ClientFunc lazily builds an S3 client. It is only called for s3:// locations.
type ClientFunc func(ctx context.Context) (S3Client, error)

// Open returns a FileStore holding the artifact at loc together with the
// artifact's path inside that store.
func Open(ctx context.Context, loc string, newClient ClientFunc) (FileStore, string, error) {
	l, err := ParseLocation(loc)
	if err != nil {
		return nil, "", err
	}
	if !l.IsS3() {
		store, err := NewLocal(l.Dir)
		if err != nil {
			return nil, "", fmt.Errorf("storage: open %s: %w", loc, err)
		}
		return store, l.Name, nil
	}
	if newClient == nil {
		return nil, "", fmt.Errorf("%w: no S3 client configured for %s", ErrInvalidLocation, loc)
	}
	client, err := newClient(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("storage: s3 client: %w", err)
	}
	return NewS3(client, l.Bucket, l.Dir), l.Name, nil
}
