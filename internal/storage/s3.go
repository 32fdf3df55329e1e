package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"koon/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Storage is the self-hosted alternative to Cloudinary. Unlike the
// Cloudinary backend it holds full credentials, so Delete actually deletes.
type S3Storage struct {
	client *s3.Client
	bucket string
}

func NewS3Storage(client *s3.Client, bucket string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket}
}

func (s *S3Storage) Upload(ctx context.Context, file io.Reader, filename, contentType, folder string) (*UploadResult, error) {
	key := path.Join(folder, utils.NanoIDSize(16)+"-"+filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	return &UploadResult{
		URL:      fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key),
		PublicID: key,
	}, nil
}

func (s *S3Storage) Delete(ctx context.Context, publicID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	return utils.ErrorWrapOrNil(err, fmt.Sprintf("failed to delete object %s", publicID))
}
