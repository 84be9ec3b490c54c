// Package cloudsync mirrors the input tree down from S3 before a run and
// pushes the output tree to a timestamped prefix afterwards.
package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jgueth/campaign-automation/internal/config"
	"github.com/jgueth/campaign-automation/internal/logging"
)

// SyncError reports a failed transfer. Sync failures never halt a run.
type SyncError struct {
	Op  string
	Key string
	Err error
}

func (e *SyncError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("sync %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sync %s %s failed: %v", e.Op, e.Key, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// API is the S3 surface the syncer needs. *s3.Client satisfies it.
type API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Syncer transfers the input and output trees.
type Syncer struct {
	api          API
	uploader     *manager.Uploader
	bucket       string
	inputPrefix  string
	outputPrefix string
	now          func() time.Time
}

// New builds an S3-backed syncer. Static keys from the credential sources
// take precedence; otherwise the default AWS chain applies.
func New(ctx context.Context, cfg config.SyncConfig, creds *config.Credentials) (*Syncer, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}

	id, idOK := creds.Lookup(config.KeyAWSAccessKeyID)
	secret, secretOK := creds.Lookup(config.KeyAWSSecretAccessKey)
	switch {
	case idOK && secretOK:
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(id, secret, "")))
	case idOK != secretOK:
		missing := config.KeyAWSSecretAccessKey
		if !idOK {
			missing = config.KeyAWSAccessKeyID
		}
		_, err := creds.Require(missing)
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, cfg), nil
}

// NewWithAPI wraps an existing S3 client.
func NewWithAPI(api API, cfg config.SyncConfig) *Syncer {
	return &Syncer{
		api:          api,
		uploader:     manager.NewUploader(api),
		bucket:       cfg.Bucket,
		inputPrefix:  strings.Trim(cfg.InputPrefix, "/"),
		outputPrefix: strings.Trim(cfg.OutputPrefix, "/"),
		now:          time.Now,
	}
}

// Download copies every object under the input prefix into localDir,
// preserving relative paths. An empty prefix downloads nothing.
func (s *Syncer) Download(ctx context.Context, localDir string) (int, error) {
	log := logging.Get(logging.CategorySync)
	log.Info("Downloading s3://%s/%s -> %s", s.bucket, s.inputPrefix, localDir)

	prefix := s.inputPrefix
	if prefix != "" {
		prefix += "/"
	}

	count := 0
	pages := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return count, &SyncError{Op: "list", Key: prefix, Err: err}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(key, prefix)
			if rel == "" || strings.HasSuffix(key, "/") {
				continue
			}
			dest, err := localPath(localDir, rel)
			if err != nil {
				return count, &SyncError{Op: "download", Key: key, Err: err}
			}
			if err := s.fetch(ctx, key, dest); err != nil {
				return count, &SyncError{Op: "download", Key: key, Err: err}
			}
			log.Debug("<- %s", key)
			count++
		}
	}

	if count == 0 {
		log.Warn("Remote prefix is empty: s3://%s/%s", s.bucket, prefix)
	} else {
		log.Info("Downloaded %d file(s)", count)
	}
	return count, nil
}

// localPath maps an object key suffix into dir, refusing keys that escape it.
func localPath(dir, rel string) (string, error) {
	clean := path.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", fmt.Errorf("object key escapes target directory: %s", rel)
	}
	return filepath.Join(dir, filepath.FromSlash(clean)), nil
}

func (s *Syncer) fetch(ctx context.Context, key, dest string) error {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return err
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	return f.Close()
}

// Upload copies localDir to {output_prefix}_{YYYYMMDD_HHMMSS}/ and returns the
// remote prefix used. A missing local directory uploads nothing.
func (s *Syncer) Upload(ctx context.Context, localDir string) (string, int, error) {
	log := logging.Get(logging.CategorySync)
	remote := s.outputPrefix + "_" + s.now().Format("20060102_150405")

	if _, err := os.Stat(localDir); errors.Is(err, fs.ErrNotExist) {
		log.Warn("Local folder not found: %s", localDir)
		return remote, 0, nil
	}
	log.Info("Uploading %s -> s3://%s/%s", localDir, s.bucket, remote)

	count := 0
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		key := remote + "/" + filepath.ToSlash(rel)
		if err := s.put(ctx, p, key); err != nil {
			return &SyncError{Op: "upload", Key: key, Err: err}
		}
		log.Debug("-> %s", key)
		count++
		return nil
	})
	if err != nil {
		var se *SyncError
		if !errors.As(err, &se) {
			err = &SyncError{Op: "upload", Key: remote, Err: err}
		}
		return remote, count, err
	}

	log.Info("Uploaded %d file(s) to %s", count, remote)
	return remote, count, nil
}

func (s *Syncer) put(ctx context.Context, localFile, key string) error {
	f, err := os.Open(localFile)
	if err != nil {
		return err
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if mt := mime.TypeByExtension(filepath.Ext(localFile)); mt != "" {
		input.ContentType = aws.String(mt)
	}
	_, err = s.uploader.Upload(ctx, input)
	return err
}
