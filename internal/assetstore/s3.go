package assetstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// projectTag is the URL-encoded S3 object tagging string for cost allocation.
const projectTag = "Project=brand-studio"

// DefaultURLExpiry is how long presigned GET URLs stay valid.
const DefaultURLExpiry = time.Hour

// S3Store keeps assets in an S3 bucket and hands out presigned GET URLs.
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	expiry    time.Duration
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates an S3Store for the given bucket.
func NewS3Store(client *s3.Client, bucket string, expiry time.Duration) *S3Store {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		expiry:    expiry,
	}
}

func (s *S3Store) Put(ctx context.Context, teamID, mimeType string, data []byte) (*Stored, error) {
	key := NewKey(teamID, mimeType)
	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentType:   &mimeType,
		ContentLength: aws.Int64(int64(len(data))),
		Tagging:       aws.String(projectTag),
	})
	if err != nil {
		return nil, fmt.Errorf("S3 PutObject %s: %w", key, err)
	}

	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("presign GetObject %s: %w", key, err)
	}

	log.Info().
		Str("bucket", s.bucket).
		Str("key", key).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Generated asset uploaded to S3")
	return &Stored{Key: key, URL: result.URL}, nil
}

func (s *S3Store) Get(ctx context.Context, teamID, key string) (*Object, error) {
	if err := checkOwner(teamID, key); err != nil {
		return nil, err
	}
	log.Debug().Str("bucket", s.bucket).Str("key", key).Msg("Downloading from S3")
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("S3 GetObject %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	mimeType := aws.ToString(result.ContentType)
	if mimeType == "" {
		mimeType = mimeFromKey(key)
	}
	return &Object{MIMEType: mimeType, Data: data}, nil
}
