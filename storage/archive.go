package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nijaru/mcp-video/config"
	"github.com/nijaru/mcp-video/models"
)

// ObjectPutter is the part of the S3 client the archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive stores finished transcripts in an S3 compatible bucket.
type Archive struct {
	client ObjectPutter
	bucket string
}

// NewArchive returns nil when no bucket is configured.
func NewArchive(ctx context.Context, cfg config.ArchiveConfig) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewArchiveWithClient(client, cfg.Bucket), nil
}

func NewArchiveWithClient(client ObjectPutter, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket}
}

type archivedTranscription struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Text      string    `json:"text"`
	ModelName string    `json:"model_name"`
	Timestamp time.Time `json:"timestamp"`
}

// Key is the object key a job's transcript is stored under.
func Key(job *models.Job) string {
	return fmt.Sprintf("transcriptions/%s.json", job.ID)
}

func (a *Archive) SaveTranscription(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(archivedTranscription{
		ID:        job.ID,
		URL:       job.URL,
		Text:      job.Transcription,
		ModelName: job.ModelName,
		Timestamp: job.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(Key(job)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save to archive: %w", err)
	}
	return nil
}
