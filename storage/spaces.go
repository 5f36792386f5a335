package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	appconfig "github.com/nijaru/ytdl-web/config"
	"github.com/nijaru/ytdl-web/models"
)

// objectAPI is the part of the S3 client the archive uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SpacesClient archives finished download records to an S3-compatible bucket.
type SpacesClient struct {
	client objectAPI
	bucket string
}

func NewSpacesClient(ctx context.Context, cfg appconfig.SpacesConfig) (*SpacesClient, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &SpacesClient{client: client, bucket: cfg.Bucket}, nil
}

// RecordKey is the object key a record is archived under.
func RecordKey(rec *models.DownloadRecord) string {
	videoID := rec.VideoID
	if videoID == "" {
		videoID = "unknown"
	}
	return fmt.Sprintf("downloads/%s/%s.json", videoID, rec.ID)
}

func (s *SpacesClient) SaveDownloadRecord(ctx context.Context, rec *models.DownloadRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal download record")
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(RecordKey(rec)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Wrap(err, "failed to save to Spaces")
	}

	return nil
}
