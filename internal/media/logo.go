// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

// Package media stores business logos in S3-compatible object storage.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"github.com/tomtom215/bookpro/internal/config"
	"github.com/tomtom215/bookpro/internal/logging"
)

// MaxLogoBytes is the largest accepted logo.
const MaxLogoBytes = 2 << 20

var (
	// ErrDisabled is returned when object storage is not configured.
	ErrDisabled = errors.New("media storage is not configured")

	// ErrTooLarge is returned for uploads over MaxLogoBytes.
	ErrTooLarge = errors.New("logo exceeds 2 MiB")

	// ErrUnsupportedType is returned when the content is not an accepted image.
	ErrUnsupportedType = errors.New("logo must be a PNG, JPEG, WebP or SVG image")
)

// acceptedTypes maps a sniffed MIME type to the stored file extension.
var acceptedTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// ObjectAPI is the part of the S3 client the logo store uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ ObjectAPI = (*s3.Client)(nil)

// BusinessStore records the logo URL on the business.
type BusinessStore interface {
	SetBusinessLogo(ctx context.Context, id, url string) error
}

// Logo describes a stored logo.
type Logo struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Service uploads logos.
type Service struct {
	client ObjectAPI
	store  BusinessStore
	cfg    config.MediaConfig
	now    func() time.Time
}

// New builds the S3 client from the default AWS credential chain. A
// disabled config yields a Service whose uploads return ErrDisabled.
func New(ctx context.Context, cfg config.MediaConfig, store BusinessStore) (*Service, error) {
	if !cfg.Enabled {
		return &Service{store: store, cfg: cfg, now: time.Now}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return NewWithClient(client, cfg, store), nil
}

// NewWithClient uses an existing client.
func NewWithClient(client ObjectAPI, cfg config.MediaConfig, store BusinessStore) *Service {
	return &Service{client: client, store: store, cfg: cfg, now: time.Now}
}

// Enabled reports whether uploads are possible.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled && s.client != nil
}

// UploadLogo validates the image in r, uploads it and stores its public URL
// on the business.
func (s *Service) UploadLogo(ctx context.Context, businessID string, r io.Reader) (*Logo, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxLogoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read logo: %w", err)
	}
	if len(data) > MaxLogoBytes {
		return nil, ErrTooLarge
	}
	contentType, ext, err := sniff(data)
	if err != nil {
		return nil, err
	}

	key := s.objectKey(businessID, ext)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("public, max-age=86400"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload logo: %w", err)
	}

	// The key is stable per extension; the version parameter busts caches.
	logoURL := s.publicURL(key) + "?v=" + strconv.FormatInt(s.now().Unix(), 10)
	if err := s.store.SetBusinessLogo(ctx, businessID, logoURL); err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().
		Str("business_id", businessID).
		Str("key", key).
		Str("content_type", contentType).
		Int("size", len(data)).
		Msg("Logo uploaded")
	return &Logo{URL: logoURL, Key: key, ContentType: contentType, Size: len(data)}, nil
}

func sniff(data []byte) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", ErrUnsupportedType
	}
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		base, _, _ := strings.Cut(m.String(), ";")
		if ext, ok := acceptedTypes[base]; ok {
			return base, ext, nil
		}
	}
	return "", "", fmt.Errorf("%w: got %s", ErrUnsupportedType, mt.String())
}

func (s *Service) objectKey(businessID, ext string) string {
	return path.Join(strings.Trim(s.cfg.Prefix, "/"), "businesses", businessID, "logo"+ext)
}

func (s *Service) publicURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	switch {
	case s.cfg.PublicBaseURL != "":
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + escaped
	case s.cfg.Endpoint != "":
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + escaped
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, escaped)
	}
}
