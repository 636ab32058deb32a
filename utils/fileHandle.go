package utils

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"scraphub/config"
)

// FileStore persists an uploaded file and returns a stable URL for it.
type FileStore interface {
	Save(file *multipart.FileHeader, folder string) (string, error)
}

// NewFileStore picks the store from STORAGE_DRIVER.
func NewFileStore() FileStore {
	if config.AppConfig.StorageDriver == "s3" {
		store, err := NewS3Store()
		if err != nil {
			log.Printf("Error initialising S3 store, falling back to local disk: %v", err)
		} else {
			return store
		}
	}
	return &LocalStore{BaseDir: config.AppConfig.UploadDir, BaseURL: config.AppConfig.PublicBaseURL}
}

// LocalStore writes files under BaseDir and serves them from /uploads.
type LocalStore struct {
	BaseDir string
	BaseURL string
}

func (s *LocalStore) Save(file *multipart.FileHeader, folder string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	destDir := filepath.Join(s.BaseDir, folder)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}

	ext := filepath.Ext(file.Filename)
	newFilename := uuid.NewString() + ext
	filePath := filepath.Join(destDir, newFilename)

	dst, err := os.Create(filePath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/uploads/%s/%s", s.BaseURL, folder, newFilename), nil
}

// S3Store uploads files to an S3 bucket and returns the object URL.
type S3Store struct {
	client *s3.Client
	bucket string
	region string
}

func NewS3Store() (*S3Store, error) {
	cfg := config.AppConfig

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.AwsRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.AwsS3Bucket,
		region: cfg.AwsRegion,
	}, nil
}

func (s *S3Store) Save(file *multipart.FileHeader, folder string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), filepath.Ext(file.Filename))

	_, err = s.client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        src,
		ContentType: aws.String(file.Header.Get("Content-Type")),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}
