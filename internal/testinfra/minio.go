// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultMinIOImage is the S3-compatible object store used for logo uploads.
	DefaultMinIOImage = "minio/minio:RELEASE.2025-04-22T22-12-26Z"

	minioPort      = "9000/tcp"
	minioAccessKey = "bookpro"
	minioSecretKey = "bookpro-secret"
	minioRegion    = "us-east-1"
)

// MinIOContainer is a running MinIO server with one bucket.
type MinIOContainer struct {
	testcontainers.Container

	// Endpoint is the base URL for path-style S3 requests.
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// NewMinIOContainer starts MinIO, creates bucket and registers cleanup with t.
// The test is skipped when Docker is unavailable.
func NewMinIOContainer(ctx context.Context, t *testing.T, bucket string) *MinIOContainer {
	t.Helper()
	SkipIfNoDocker(t)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        DefaultMinIOImage,
			ExposedPorts: []string{minioPort},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioAccessKey,
				"MINIO_ROOT_PASSWORD": minioSecretKey,
			},
			WaitingFor: wait.ForHTTP("/minio/health/ready").
				WithPort(minioPort).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}

	addr, err := endpoint(ctx, container, minioPort)
	if err != nil {
		t.Fatalf("minio endpoint: %v", err)
	}

	m := &MinIOContainer{
		Container: container,
		Endpoint:  "http://" + addr,
		Bucket:    bucket,
		Region:    minioRegion,
		AccessKey: minioAccessKey,
		SecretKey: minioSecretKey,
	}
	if _, err := m.Client().CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Fatalf("create bucket %s: %v", bucket, err)
	}
	return m
}

// Client returns a path-style S3 client for the container.
func (m *MinIOContainer) Client() *s3.Client {
	return s3.New(s3.Options{
		Region:       m.Region,
		BaseEndpoint: aws.String(m.Endpoint),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider(m.AccessKey, m.SecretKey, ""),
	})
}

// Object fetches an object's content type and size.
func (m *MinIOContainer) Object(ctx context.Context, key string) (contentType string, size int64, err error) {
	out, err := m.Client().HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", 0, fmt.Errorf("head %s: %w", key, err)
	}
	return aws.ToString(out.ContentType), aws.ToInt64(out.ContentLength), nil
}
