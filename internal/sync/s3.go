package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alfredjeanlab/fleetreplay/internal/store/s3kv"
)

// putObjectAPI is the subset of *s3.Client the archive needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination keeps one object in a bucket equal to the latest archive.
// An archive identical to the last one uploaded is not sent again.
type S3Destination struct {
	client putObjectAPI
	bucket string
	key    string

	mu       sync.Mutex
	lastHash string
}

// NewS3Destination creates an S3 destination writing bucket/key.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	client, err := s3kv.NewClient(ctx, region, endpoint)
	if err != nil {
		return nil, err
	}
	return &S3Destination{client: client, bucket: bucket, key: key}, nil
}

func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	d.mu.Lock()
	defer d.mu.Unlock()
	if hash == d.lastHash {
		return nil
	}

	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
		Metadata:    map[string]string{"sha256": hash},
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", d.bucket, d.key, err)
	}
	d.lastHash = hash
	return nil
}

func (d *S3Destination) Name() string { return "s3://" + d.bucket + "/" + d.key }
