package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type S3Config struct {
	Bucket     string
	Region     string
	Endpoint   string
	HTTPClient *http.Client
}

// S3BillStore uploads bills to a bucket and returns the object location.
type S3BillStore struct {
	bucket   string
	uploader *manager.Uploader
	now      func() time.Time
}

func NewS3BillStore(ctx context.Context, cfg S3Config) (*S3BillStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, awsconfig.WithHTTPClient(cfg.HTTPClient))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BillStore{
		bucket:   cfg.Bucket,
		uploader: manager.NewUploader(client),
		now:      time.Now,
	}, nil
}

func (s *S3BillStore) PutBill(ctx context.Context, orderID uuid.UUID, contentType string, body io.Reader) (string, error) {
	key, err := billKey(orderID, contentType, s.now())
	if err != nil {
		return "", err
	}

	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload bill: %w", err)
	}
	return result.Location, nil
}
