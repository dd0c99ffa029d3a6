package publish

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/tinytelemetry/litclock/internal/dataset"
)

const (
	defaultRegion = "us-east-1"

	immutableCache = "public, max-age=31536000, immutable"
	pointerCache   = "no-cache"
)

// S3Config holds S3 uploader parameters.
type S3Config struct {
	BucketURL    string
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string
	UseSSL       bool
}

type commandRunner func(ctx context.Context, env []string, args []string) ([]byte, error)

// S3Uploader publishes partition directories with `aws s3 cp`. Version
// directories are immutable, the manifest pointer is always revalidated.
type S3Uploader struct {
	bucket   string
	prefix   string
	region   string
	endpoint string
	env      []string
	run      commandRunner
}

// NewS3Uploader builds an uploader for an s3://bucket/prefix URL. Static
// credentials and the aws CLI are required.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	bucket, prefix, err := splitBucketURL(cfg.BucketURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("s3: access key and secret key are required")
	}
	if _, err := exec.LookPath("aws"); err != nil {
		return nil, errors.New("s3: aws cli not found in PATH")
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}
	env := []string{
		"AWS_ACCESS_KEY_ID=" + cfg.AccessKey,
		"AWS_SECRET_ACCESS_KEY=" + cfg.SecretKey,
		"AWS_DEFAULT_REGION=" + region,
	}
	if token := strings.TrimSpace(cfg.SessionToken); token != "" {
		env = append(env, "AWS_SESSION_TOKEN="+token)
	}
	return &S3Uploader{
		bucket:   bucket,
		prefix:   prefix,
		region:   region,
		endpoint: endpointURL(cfg.Endpoint, cfg.UseSSL),
		env:      env,
		run:      runAWS,
	}, nil
}

// Destination returns the s3:// URL for key.
func (u *S3Uploader) Destination(key string) string {
	return "s3://" + path.Join(u.bucket, u.prefix, key)
}

// Args builds the aws CLI arguments for one upload.
func (u *S3Uploader) Args(localPath, key string, recursive bool) []string {
	args := []string{
		"s3", "cp", localPath, u.Destination(key),
		"--region", u.region,
		"--only-show-errors",
		"--cache-control", cacheControl(key),
	}
	if recursive {
		args = append(args, "--recursive")
	}
	if u.endpoint != "" {
		args = append(args, "--endpoint-url", u.endpoint)
	}
	return args
}

// Upload copies localPath to the bucket under key.
func (u *S3Uploader) Upload(ctx context.Context, localPath, key string, recursive bool) error {
	out, err := u.run(ctx, u.env, u.Args(localPath, key, recursive))
	if err != nil {
		return fmt.Errorf("s3: upload %s: %w: %s", key, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func runAWS(ctx context.Context, env []string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "aws", args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

func cacheControl(key string) string {
	if path.Base(key) == dataset.ManifestFile {
		return pointerCache
	}
	return immutableCache
}

func endpointURL(endpoint string, useSSL bool) string {
	endpoint = strings.TrimSpace(endpoint)
	switch {
	case endpoint == "":
		return ""
	case strings.Contains(endpoint, "://"):
		return endpoint
	case useSSL:
		return "https://" + endpoint
	default:
		return "http://" + endpoint
	}
}

func splitBucketURL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("s3: parse bucket-url: %w", err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("s3: bucket-url %q must use the s3:// scheme", raw)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("s3: bucket-url %q is missing the bucket name", raw)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
