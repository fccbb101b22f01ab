// Package s3store stores images as objects in an S3-compatible bucket (AWS S3,
// Cloudflare R2, MinIO). Image metadata travels as object metadata.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

// Metadata keys. S3 lowercases user metadata names.
const (
	metaOriginalName = "original-name"
	metaWidth        = "width"
	metaHeight       = "height"
	metaUploadedAt   = "uploaded-at"
)

// client is the subset of *s3.Client the store uses.
type client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config locates the bucket. Endpoint is only needed for non-AWS services;
// static credentials are used when both keys are set, otherwise the default
// AWS credential chain applies.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// ImageStore is a storage.ImageStore over a bucket.
type ImageStore struct {
	client client
	bucket string
	prefix string
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*ImageStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}
	c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newStore(c, cfg.Bucket, cfg.Prefix), nil
}

func newStore(c client, bucket, prefix string) *ImageStore {
	return &ImageStore{client: c, bucket: bucket, prefix: prefix}
}

func (s *ImageStore) key(filename string) string {
	return s.prefix + filename
}

func (s *ImageStore) Save(ctx context.Context, img content.Image, data []byte) error {
	if err := storage.CheckName(img.Filename); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(img.Filename)),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(img.MimeType),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
		Metadata: map[string]string{
			metaOriginalName: img.OriginalName,
			metaWidth:        strconv.Itoa(img.Width),
			metaHeight:       strconv.Itoa(img.Height),
			metaUploadedAt:   img.UploadedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", img.Filename, err)
	}
	return nil
}

func (s *ImageStore) Get(ctx context.Context, filename string) (content.Image, []byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(filename)),
	})
	if isNotFound(err) {
		return content.Image{}, nil, storage.ErrNotFound
	}
	if err != nil {
		return content.Image{}, nil, fmt.Errorf("s3: get %s: %w", filename, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return content.Image{}, nil, err
	}
	img := imageFrom(filename, aws.ToString(out.ContentType), int64(len(data)), out.Metadata, aws.ToTime(out.LastModified))
	return img, data, nil
}

// Delete checks the object exists first, since S3 reports success for
// deleting a missing key.
func (s *ImageStore) Delete(ctx context.Context, filename string) error {
	if _, err := s.head(ctx, filename); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(filename)),
	})
	if err != nil {
		return fmt.Errorf("s3: delete %s: %w", filename, err)
	}
	return nil
}

func (s *ImageStore) List(ctx context.Context) ([]content.Image, error) {
	var images []content.Image
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: list: %w", err)
		}
		for _, obj := range out.Contents {
			name := aws.ToString(obj.Key)[len(s.prefix):]
			img, err := s.head(ctx, name)
			if err != nil {
				return nil, err
			}
			images = append(images, img)
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Slice(images, func(i, j int) bool {
		return images[i].UploadedAt.After(images[j].UploadedAt)
	})
	return images, nil
}

func (s *ImageStore) head(ctx context.Context, filename string) (content.Image, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(filename)),
	})
	if isNotFound(err) {
		return content.Image{}, storage.ErrNotFound
	}
	if err != nil {
		return content.Image{}, fmt.Errorf("s3: head %s: %w", filename, err)
	}
	return imageFrom(filename, aws.ToString(out.ContentType), aws.ToInt64(out.ContentLength), out.Metadata, aws.ToTime(out.LastModified)), nil
}

func imageFrom(filename, mime string, size int64, meta map[string]string, modified time.Time) content.Image {
	img := content.Image{
		Filename:     filename,
		OriginalName: meta[metaOriginalName],
		MimeType:     mime,
		Size:         size,
		UploadedAt:   modified.UTC(),
	}
	if img.OriginalName == "" {
		img.OriginalName = filename
	}
	if img.MimeType == "" {
		img.MimeType = content.MimeTypeFor(filename)
	}
	img.Width, _ = strconv.Atoi(meta[metaWidth])
	img.Height, _ = strconv.Atoi(meta[metaHeight])
	if t, err := time.Parse(time.RFC3339Nano, meta[metaUploadedAt]); err == nil {
		img.UploadedAt = t.UTC()
	}
	return img
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}
