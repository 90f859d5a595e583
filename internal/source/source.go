// Package source resolves unit template references to their raw bodies.
// A reference is either a filesystem path (relative to the environment
// file) or an s3://bucket/key object.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the slice of the S3 client the resolver uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Resolver loads template bodies. The S3 client is created on first use so
// purely local environments never touch AWS credentials.
type Resolver struct {
	baseDir string
	region  string
	profile string
	client  S3API
}

func NewResolver(baseDir, region, profile string) *Resolver {
	return &Resolver{baseDir: baseDir, region: region, profile: profile}
}

// NewResolverWithClient injects an S3 client, primarily for tests.
func NewResolverWithClient(baseDir string, client S3API) *Resolver {
	return &Resolver{baseDir: baseDir, client: client}
}

// Resolve returns the template body behind ref.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	if bucket, key, ok := ParseS3Ref(ref); ok {
		return r.fetchS3(ctx, bucket, key)
	}

	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", ref, err)
	}
	return string(data), nil
}

func (r *Resolver) fetchS3(ctx context.Context, bucket, key string) (string, error) {
	if r.client == nil {
		opts := []func(*awsconfig.LoadOptions) error{}
		if r.region != "" {
			opts = append(opts, awsconfig.WithRegion(r.region))
		}
		if r.profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(r.profile))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return "", fmt.Errorf("failed to load AWS config: %w", err)
		}
		r.client = s3.NewFromConfig(cfg)
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	return string(data), nil
}

// ParseS3Ref splits an s3://bucket/key reference. ok is false for anything
// that is not an S3 URL.
func ParseS3Ref(ref string) (bucket, key string, ok bool) {
	const prefix = "s3://"
	if !strings.HasPrefix(ref, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(ref, prefix)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
