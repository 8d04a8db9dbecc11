// Package media mints presigned upload descriptors for the media
// bucket, so clients upload directly to object storage without the API
// ever holding the bytes.
package media

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultUploadExpiry bounds how long an upload descriptor is usable.
const DefaultUploadExpiry = time.Hour

// UploadTicket is the signed browser-upload descriptor: POST the form
// fields to URL with the file appended last.
type UploadTicket struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// Uploader signs upload requests against a single bucket. The presign
// client is built once per process and shared.
type Uploader struct {
	presign *s3.PresignClient
	bucket  string
}

// NewUploader loads the shared AWS configuration and builds the
// presign client. bucket may be empty; PresignUpload rejects the call
// then, so a missing configuration surfaces per request instead of
// crashing the process.
func NewUploader(ctx context.Context, region, bucket string) (*Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &Uploader{
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}, nil
}

// Configured reports whether a media bucket was configured.
func (u *Uploader) Configured() bool {
	return u.bucket != ""
}

// PresignUpload signs a browser POST upload for the given object key
// and content type. The Content-Type field is part of the signed
// policy, so clients cannot swap it after signing.
func (u *Uploader) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (*UploadTicket, error) {
	if u.bucket == "" {
		return nil, fmt.Errorf("media bucket not configured")
	}
	if expiry <= 0 {
		expiry = DefaultUploadExpiry
	}

	req, err := u.presign.PresignPostObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(o *s3.PresignPostOptions) {
		o.Expires = expiry
	})
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	fields := make(map[string]string, len(req.Values)+1)
	for k, v := range req.Values {
		fields[k] = v
	}
	if _, ok := fields["Content-Type"]; !ok {
		fields["Content-Type"] = contentType
	}

	return &UploadTicket{URL: req.URL, Fields: fields}, nil
}
