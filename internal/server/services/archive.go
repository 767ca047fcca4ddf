package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/manylla-sync/internal/server/config"
	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
)

// s3PutObjectAPI is the subset of *s3.Client the archiver uses.
type s3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads purged groups as JSON objects. The blob stays
// ciphertext; the server has no key to do otherwise.
type S3Archiver struct {
	client s3PutObjectAPI
	bucket string
	prefix string
}

type archivedGroup struct {
	SyncID        string     `json:"sync_id"`
	Kind          string     `json:"kind"`
	Version       int64      `json:"version"`
	EncryptedBlob string     `json:"encrypted_blob"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	ViewCount     int64      `json:"view_count"`
}

// NewS3Archiver builds an archiver from config, or returns nil when no
// archive bucket is configured.
func NewS3Archiver(ctx context.Context, cfg *config.Config) (*S3Archiver, error) {
	if cfg.ArchiveBucket == "" {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Archiver(client, cfg.ArchiveBucket, cfg.ArchivePrefix), nil
}

func newS3Archiver(client s3PutObjectAPI, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// objectKey lays archives out by purge date: <prefix>/2026/03/01/<sync_id>.json.
func (a *S3Archiver) objectKey(g *models.SyncGroup, at time.Time) string {
	return path.Join(a.prefix, at.Format("2006/01/02"), g.SyncID+".json")
}

func (a *S3Archiver) Archive(ctx context.Context, g *models.SyncGroup) error {
	body, err := json.Marshal(archivedGroup{
		SyncID:        g.SyncID,
		Kind:          g.Kind,
		Version:       g.Version,
		EncryptedBlob: g.EncryptedBlob,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
		ExpiresAt:     g.ExpiresAt,
		ViewCount:     g.ViewCount,
	})
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.objectKey(g, time.Now().UTC())),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}
