package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	apperrors "atlas-of-us/backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// putObjectAPI is the slice of the S3 client the uploader needs
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores objects in one bucket and returns their public URLs
type S3Uploader struct {
	client putObjectAPI
	bucket string
	region string
}

// NewS3Uploader loads the default AWS credential chain for region
func NewS3Uploader(ctx context.Context, bucket, region string) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &S3Uploader{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		region: region,
	}, nil
}

// Upload puts data at key and returns the object's virtual-hosted URL
func (u *S3Uploader) Upload(ctx context.Context, key string, data []byte) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(http.DetectContentType(data)),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", apperrors.NewMediaFailed("s3 upload", fmt.Errorf("unable to put %s in bucket %s: %w", key, u.bucket, err))
	}
	return ObjectURL(u.bucket, u.region, key), nil
}

// ObjectURL builds https://<bucket>.s3.<region>.amazonaws.com/<key>
func ObjectURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}
