package publish

import "context"

// Config controls where versioned partition sets are published.
type Config struct {
	OutDir   string
	KeepLast int

	// Snapshot copies the DuckDB file into each version directory.
	Snapshot bool

	BucketURL      string
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3SessionToken string
	S3UseSSL       bool
}

// Snapshotter writes a standalone copy of the quote store.
type Snapshotter interface {
	SnapshotTo(ctx context.Context, dstPath string) error
}

// Uploader copies a local file or directory tree to remote storage under
// the given relative key.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string, recursive bool) error
}
