// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

// Package testinfra provides test infrastructure for integration testing with containers.
//
// This package uses testcontainers-go to run the external services BookPro
// talks to, so the S3 and SMTP code paths are exercised against real servers.
// Every file is behind the integration build tag:
//
//	go test -tags integration ./internal/media/... ./internal/notify/...
//
// # MinIO
//
// NewMinIOContainer starts an S3-compatible store with one bucket:
//
//	func TestUploadLogo_MinIO(t *testing.T) {
//	    ctx := context.Background()
//	    minio := testinfra.NewMinIOContainer(ctx, t, "logos")
//	    t.Setenv("AWS_ACCESS_KEY_ID", minio.AccessKey)
//	    t.Setenv("AWS_SECRET_ACCESS_KEY", minio.SecretKey)
//	    svc, err := media.New(ctx, config.MediaConfig{
//	        Enabled:        true,
//	        Bucket:         minio.Bucket,
//	        Region:         minio.Region,
//	        Endpoint:       minio.Endpoint,
//	        ForcePathStyle: true,
//	    }, store)
//	    ...
//	}
//
// # Mailpit
//
// NewMailpitContainer starts an SMTP sink whose HTTP API lists captured
// messages, so notification tests can assert on what was delivered.
//
// Tests are skipped when Docker is not available or -short is set.
package testinfra
