package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS3Ref(t *testing.T) {
	tests := []struct {
		ref    string
		bucket string
		key    string
		ok     bool
	}{
		{ref: "s3://templates/net.json", bucket: "templates", key: "net.json", ok: true},
		{ref: "s3://templates/env/prod/net.json", bucket: "templates", key: "env/prod/net.json", ok: true},
		{ref: "s3://templates", ok: false},
		{ref: "s3://templates/", ok: false},
		{ref: "s3:///net.json", ok: false},
		{ref: "templates/net.json", ok: false},
		{ref: "https://templates/net.json", ok: false},
		{ref: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			bucket, key, ok := ParseS3Ref(tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestResolve_LocalRelative(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "net.json"), []byte(`{"vpc": true}`), 0o644))

	r := NewResolver(dir, "", "")
	body, err := r.Resolve(context.Background(), "net.json")
	require.NoError(t, err)
	assert.Equal(t, `{"vpc": true}`, body)
}

func TestResolve_LocalAbsolute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.json")
	require.NoError(t, os.WriteFile(path, []byte("body"), 0o644))

	r := NewResolver("/somewhere/else", "", "")
	body, err := r.Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "body", body)
}

func TestResolve_LocalMissing(t *testing.T) {
	r := NewResolver(t.TempDir(), "", "")
	_, err := r.Resolve(context.Background(), "missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read template missing.json")
}

type fakeS3 struct {
	objects map[string]string
	err     error
	calls   []string
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	ref := *params.Bucket + "/" + *params.Key
	f.calls = append(f.calls, ref)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[ref]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestResolve_S3(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"templates/env/net.json": `{"from": "s3"}`,
	}}
	r := NewResolverWithClient("", client)

	body, err := r.Resolve(context.Background(), "s3://templates/env/net.json")
	require.NoError(t, err)
	assert.Equal(t, `{"from": "s3"}`, body)
	assert.Equal(t, []string{"templates/env/net.json"}, client.calls)
}

func TestResolve_S3Error(t *testing.T) {
	client := &fakeS3{err: errors.New("access denied")}
	r := NewResolverWithClient("", client)

	_, err := r.Resolve(context.Background(), "s3://templates/net.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch s3://templates/net.json")
}
