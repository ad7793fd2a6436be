package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/ithub/crossposter/configs"
)

// StorageService talks to S3-compatible object storage (R2). It backs both
// the upload path and the media resolver's content reads.
type StorageService struct {
	config cfg.Config
}

func NewStorageService(cfg cfg.Config) *StorageService {
	return &StorageService{config: cfg}
}

func (s *StorageService) Client() *s3.Client {
	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.config.Storage.AccessKey, s.config.Storage.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		log.Fatal(err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.config.Storage.AccountID))
	})
}

// Upload stores the object and returns its public URL.
func (s *StorageService) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Storage.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	if _, err := s.Client().PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return fmt.Sprintf("%s/%s", s.config.Storage.PublicURL, key), nil
}

func (s *StorageService) Download(ctx context.Context, key string) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.config.Storage.BucketName),
		Key:    aws.String(key),
	}

	out, err := s.Client().GetObject(ctx, input)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return data, nil
}
