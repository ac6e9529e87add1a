package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/transono/voicememo/internal/application/port/output"
)

// ErrNotArchived is returned when a blob was never archived to the bucket
var ErrNotArchived = errors.New("recording not archived")

// S3ArchiveGateway keeps an off-device copy of recordings.
// Bucket layout: s3://<bucket>/<prefix>/recordings/<name>
type S3ArchiveGateway struct {
	client S3API
	bucket string
	prefix string
}

// S3Config holds archive gateway configuration
type S3Config struct {
	Bucket string
	Prefix string
	Region string // optional, default region when empty
}

func NewS3ArchiveGateway(ctx context.Context, cfg S3Config) (*S3ArchiveGateway, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}

	return NewS3ArchiveGatewayWithClient(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
}

// NewS3ArchiveGatewayWithClient injects the S3 client, used by tests
func NewS3ArchiveGatewayWithClient(client S3API, bucket, prefix string) *S3ArchiveGateway {
	return &S3ArchiveGateway{client: client, bucket: bucket, prefix: prefix}
}

// Archive uploads one recording blob, overwriting any previous archive of the
// same name
func (g *S3ArchiveGateway) Archive(ctx context.Context, name string, content []byte) (*output.AudioBlobMetadata, error) {
	key := g.key(name)

	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("audio/wav"),
		Metadata: map[string]string{
			"recording-name": name,
			"archived-at":    time.Now().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", name, err)
	}

	return &output.AudioBlobMetadata{
		Name:        name,
		StoragePath: fmt.Sprintf("s3://%s/%s", g.bucket, key),
		Size:        int64(len(content)),
		StoredAt:    time.Now(),
	}, nil
}

// Restore downloads an archived recording
func (g *S3ArchiveGateway) Restore(ctx context.Context, name string) ([]byte, error) {
	result, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(g.key(name)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotArchived, name)
		}
		return nil, fmt.Errorf("restore %s: %w", name, err)
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read archived %s: %w", name, err)
	}
	return content, nil
}

// List returns the names of all archived recordings
func (g *S3ArchiveGateway) List(ctx context.Context) ([]string, error) {
	prefix := g.key("") + "/"

	result, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}

	names := make([]string, 0, len(result.Contents))
	for _, obj := range result.Contents {
		names = append(names, path.Base(aws.ToString(obj.Key)))
	}
	return names, nil
}

// Delete removes an archived recording; deleting a missing one is not an
// error
func (g *S3ArchiveGateway) Delete(ctx context.Context, name string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(g.key(name)),
	})
	if err != nil {
		return fmt.Errorf("delete archived %s: %w", name, err)
	}
	return nil
}

func (g *S3ArchiveGateway) key(name string) string {
	if g.prefix != "" {
		return path.Join(g.prefix, "recordings", name)
	}
	return path.Join("recordings", name)
}
