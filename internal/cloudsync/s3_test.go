package cloudsync

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgueth/campaign-automation/internal/config"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	listErr error
}

func newFakeS3(objects map[string]string) *fakeS3 {
	f := &fakeS3{objects: map[string][]byte{}}
	for k, v := range objects {
		f.objects[k] = []byte(v)
	}
	return f
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func syncConfig() config.SyncConfig {
	cfg := config.DefaultConfig().Sync
	cfg.Bucket = "creative-bucket"
	return cfg
}

func TestDownload(t *testing.T) {
	api := newFakeS3(map[string]string{
		"input/campaigns/holiday.yaml": "campaign: {}",
		"input/assets/logo.png":        "png",
		"input/assets/":                "",
		"inputs-other/x.txt":           "not ours",
		"output_20250101_000000/a.png": "old",
	})
	dir := t.TempDir()

	n, err := NewWithAPI(api, syncConfig()).Download(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(dir, "campaigns", "holiday.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "campaign: {}", string(data))
	assert.FileExists(t, filepath.Join(dir, "assets", "logo.png"))
	assert.NoFileExists(t, filepath.Join(dir, "x.txt"))
}

func TestDownloadEmptyPrefix(t *testing.T) {
	n, err := NewWithAPI(newFakeS3(nil), syncConfig()).Download(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDownloadRejectsEscapingKey(t *testing.T) {
	api := newFakeS3(map[string]string{"input/../../etc/passwd": "x"})
	_, err := NewWithAPI(api, syncConfig()).Download(context.Background(), t.TempDir())

	var se *SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "download", se.Op)
}

func TestDownloadListError(t *testing.T) {
	api := newFakeS3(nil)
	api.listErr = errors.New("AccessDenied")
	_, err := NewWithAPI(api, syncConfig()).Download(context.Background(), t.TempDir())

	var se *SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "list", se.Op)
	assert.ErrorContains(t, err, "AccessDenied")
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "holiday", "serum", "1x1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "holiday", "campaign_report.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "holiday", "serum", "1x1", "base.png"), []byte("png"), 0644))

	api := newFakeS3(nil)
	s := NewWithAPI(api, syncConfig())
	s.now = func() time.Time { return time.Date(2025, 11, 3, 14, 5, 9, 0, time.UTC) }

	remote, n, err := s.Upload(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "output_20251103_140509", remote)
	assert.Equal(t, 2, n)

	want := []string{
		"output_20251103_140509/holiday/campaign_report.json",
		"output_20251103_140509/holiday/serum/1x1/base.png",
	}
	if diff := cmp.Diff(want, api.keys()); diff != "" {
		t.Errorf("uploaded keys mismatch (-want +got):\n%s", diff)
	}
}

func TestUploadMissingDir(t *testing.T) {
	_, n, err := NewWithAPI(newFakeS3(nil), syncConfig()).Upload(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUploadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("png"), 0644))

	api := newFakeS3(nil)
	api.putErr = errors.New("SlowDown")
	_, _, err := NewWithAPI(api, syncConfig()).Upload(context.Background(), dir)

	var se *SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "upload", se.Op)
	assert.True(t, strings.HasSuffix(se.Key, "/a.png"))
}

func TestNewRequiresBothKeys(t *testing.T) {
	creds := config.StaticCredentials(map[string]string{config.KeyAWSAccessKeyID: "AKIA"})
	_, err := New(context.Background(), syncConfig(), creds)

	var missing *config.MissingCredentialError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, config.KeyAWSSecretAccessKey, missing.Name)
}
