package minio

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/knulata/satteli/internal/config"
)

// EvidenceStore wraps the MinIO client for alert evidence imagery. The
// imagery-analysis service uploads snapshots here; alerts carry the object
// keys and resolve them to URLs for the dashboard.
type EvidenceStore struct {
	client *minio.Client
	config config.MinioConfig
}

// NewEvidenceStore initializes a MinIO client and ensures the evidence
// bucket exists.
func NewEvidenceStore(cfg config.MinioConfig) (*EvidenceStore, error) {
	endpoint := strings.TrimPrefix(cfg.MinioURL, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	isSecure, err := strconv.ParseBool(cfg.MinioSecure)
	if err != nil {
		log.Printf("Invalid value for MinIO secure flag: %v. Defaulting to false.", err)
		isSecure = false
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: isSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := minioClient.BucketExists(ctx, cfg.EvidenceBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO server: %w", err)
	}
	if !exists {
		err = minioClient.MakeBucket(ctx, cfg.EvidenceBucket, minio.MakeBucketOptions{Region: cfg.MinioLocation})
		if err != nil {
			return nil, fmt.Errorf("failed to create evidence bucket %s: %w", cfg.EvidenceBucket, err)
		}
		log.Printf("Evidence bucket '%s' created", cfg.EvidenceBucket)
	}

	return &EvidenceStore{client: minioClient, config: cfg}, nil
}

// PutEvidence stores one evidence image and returns its object key.
func (s *EvidenceStore) PutEvidence(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.config.EvidenceBucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store evidence object %s: %w", objectKey, err)
	}
	return objectKey, nil
}

// ResolveURL turns a stored object key into a dashboard-servable URL.
// Absolute URLs (external imagery references) pass through unchanged.
func (s *EvidenceStore) ResolveURL(objectKey string) string {
	if strings.HasPrefix(objectKey, "http://") || strings.HasPrefix(objectKey, "https://") {
		return objectKey
	}
	return s.config.MinioResourceURL + s.config.EvidenceBucket + "/" + objectKey
}
