package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rezoning/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// ObjectPutter is the part of the S3 client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type ArchiveResult struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key,omitempty"`
	Count  int    `json:"count"`
}

// ArchiveService snapshots a queue's dead letters to object storage. It does
// not remove them; purging stays a separate operator decision.
type ArchiveService interface {
	Export(ctx context.Context, queueName string) (ArchiveResult, error)
}

type archiveService struct {
	client ObjectPutter
	bucket string
	queues QueueService
	now    func() time.Time
}

func NewArchiveService(client ObjectPutter, bucket string, queues QueueService) ArchiveService {
	return &archiveService{client: client, bucket: bucket, queues: queues, now: time.Now}
}

// NewS3Client builds an S3 client for the S3-compatible endpoint in cfg.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading S3 config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3URL != "" {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		}
	}), nil
}

type archivedDeadLetter struct {
	ID          int64           `json:"id"`
	QueueName   string          `json:"queue_name"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	CreatedAt   int64           `json:"created_at"`
	LastAttempt *int64          `json:"last_attempt,omitempty"`
	MovedAt     int64           `json:"moved_at"`
	ErrorText   string          `json:"error_text"`
}

func (s *archiveService) Export(ctx context.Context, queueName string) (ArchiveResult, error) {
	letters, err := s.queues.ListDeadLetters(ctx, queueName, 0)
	if err != nil {
		return ArchiveResult{}, err
	}
	result := ArchiveResult{Bucket: s.bucket, Count: len(letters)}
	if len(letters) == 0 {
		return result, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, dl := range letters {
		rec := archivedDeadLetter{
			ID:        dl.ID,
			QueueName: dl.QueueName,
			Payload:   RawJSON(dl.Payload),
			Attempts:  dl.Attempts,
			CreatedAt: dl.CreatedAt.Unix(),
			MovedAt:   dl.MovedAt.Unix(),
			ErrorText: dl.ErrorText,
		}
		if dl.LastAttempt != nil {
			ts := dl.LastAttempt.Unix()
			rec.LastAttempt = &ts
		}
		if err := enc.Encode(rec); err != nil {
			return ArchiveResult{}, fmt.Errorf("encoding dead letter %d: %w", dl.ID, err)
		}
	}

	result.Key = fmt.Sprintf("dead-letters/%s/%d-%s.jsonl", queueName, s.now().Unix(), uuid.NewString())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(result.Key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return ArchiveResult{}, fmt.Errorf("uploading %s (%s): %w", result.Key, apiErr.ErrorCode(), err)
		}
		return ArchiveResult{}, fmt.Errorf("uploading %s: %w", result.Key, err)
	}
	return result, nil
}

// RawJSON returns b as JSON when it is valid JSON, or as a JSON string otherwise.
func RawJSON(b []byte) json.RawMessage {
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	quoted, _ := json.Marshal(string(b))
	return quoted
}
