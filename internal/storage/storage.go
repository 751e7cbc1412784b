package storage

import (
	"context"
	"io"
)

// UploadInput describes a single avatar object to store.
type UploadInput struct {
	Bucket      string
	Key         string
	ContentType string
	Body        io.Reader
}

// Service stores user avatars in remote object storage and returns the
// public URL recorded on the user.
type Service interface {
	UploadAvatar(ctx context.Context, in UploadInput) (string, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}
