package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Service stores avatars in Amazon S3 (or compatible APIs).
type S3Service struct {
	client    *s3.Client
	uploader  *manager.Uploader
	publicURL string // base URL for stored objects, e.g. https://bucket.s3.region.amazonaws.com
}

func NewS3Service(client *s3.Client, publicURL string) *S3Service {
	return &S3Service{
		client:    client,
		uploader:  manager.NewUploader(client),
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *S3Service) UploadAvatar(ctx context.Context, in UploadInput) (string, error) {
	if in.Bucket == "" {
		return "", fmt.Errorf("storage bucket is required")
	}
	key := strings.Trim(in.Key, "/")
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}

	put := &s3.PutObjectInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(key),
		Body:   in.Body,
		ACL:    types.ObjectCannedACLPublicRead,
	}
	if in.ContentType != "" {
		put.ContentType = aws.String(in.ContentType)
	}
	if _, err := s.uploader.Upload(ctx, put); err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}

	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	return fmt.Sprintf("s3://%s/%s", in.Bucket, key), nil
}

func (s *S3Service) DeleteObject(ctx context.Context, bucket, key string) error {
	if bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

var _ Service = (*S3Service)(nil)
