// Package bundle provisions the content tree from a published bundle: a
// tar.gz in S3 addressed by its SHA256, with the current hash pinned in an
// SSM parameter and an optional detached KMS signature alongside the
// archive. Fetch downloads, verifies, and extracts the bundle, returning
// the directory to scan for content.
package bundle

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/contentd/internal/cryptoutil"
	"github.com/keithlinneman/contentd/internal/log"
	"github.com/keithlinneman/contentd/internal/xerrors"
)

type Options struct {
	Logger log.Logger

	// SSM parameter containing the current bundle SHA256 hash
	SSMParam string

	// S3 location for bundles: s3://{bucket}/{prefix}/{hash}.tar.gz
	S3Bucket string
	S3Prefix string

	// KMSKeyARN enables signature verification: the object at
	// {key}.sig must be a valid signature over the archive bytes.
	// Empty disables the check.
	KMSKeyARN string

	// Local directory for extracted content; a temp dir when empty
	ExtractDir string

	// AWS config (uses default if nil)
	AWSConfig *aws.Config
}

type Loader struct {
	opts      Options
	ssmClient *ssm.Client
	s3Client  *s3.Client
	verifier  *cryptoutil.KMSVerifier
	logger    log.Logger
}

func NewLoader(ctx context.Context, opts Options) (*Loader, error) {
	if opts.SSMParam == "" {
		return nil, xerrors.New("SSMParam is required")
	}
	if opts.S3Bucket == "" {
		return nil, xerrors.New("S3Bucket is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	var awsCfg aws.Config
	var err error
	if opts.AWSConfig != nil {
		awsCfg = *opts.AWSConfig
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, xerrors.Wrap(err, "load AWS config")
		}
	}

	l := &Loader{
		opts:      opts,
		ssmClient: ssm.NewFromConfig(awsCfg),
		s3Client:  s3.NewFromConfig(awsCfg),
		logger:    opts.Logger,
	}
	if opts.KMSKeyARN != "" {
		l.verifier = cryptoutil.NewKMSVerifier(kms.NewFromConfig(awsCfg), opts.KMSKeyARN)
	}
	return l, nil
}

// CurrentHash gets the current bundle hash from SSM
func (l *Loader) CurrentHash(ctx context.Context) (string, error) {
	out, err := l.ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(l.opts.SSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", l.opts.SSMParam)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", l.opts.SSMParam)
	}

	hash := strings.TrimSpace(*out.Parameter.Value)
	if hash == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", l.opts.SSMParam)
	}

	return hash, nil
}

// s3Key returns the S3 object key for a given hash
func (l *Loader) s3Key(hash string) string {
	if l.opts.S3Prefix != "" {
		return fmt.Sprintf("%s/%s.tar.gz", l.opts.S3Prefix, hash)
	}
	return fmt.Sprintf("%s.tar.gz", hash)
}

// download fetches a bundle from S3 into a temp file and verifies its
// checksum, and its signature when a KMS key is configured.
func (l *Loader) download(ctx context.Context, hash string) (string, error) {
	key := l.s3Key(hash)

	l.logger.Info(ctx, "downloading content bundle",
		"bucket", l.opts.S3Bucket,
		"key", key,
		"expected_hash", hash,
	)

	out, err := l.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.opts.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get S3 object s3://%s/%s", l.opts.S3Bucket, key)
	}
	defer out.Body.Close()

	tmpFile, err := os.CreateTemp("", "content-bundle-*.tar.gz")
	if err != nil {
		return "", xerrors.Wrap(err, "create temp file")
	}
	tmpPath := tmpFile.Name()

	written, actualHash, err := copyWithHash(tmpFile, io.LimitReader(out.Body, maxBundleSize+1))
	tmpFile.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", xerrors.Wrap(err, "download bundle")
	}
	if written > maxBundleSize {
		os.Remove(tmpPath)
		return "", xerrors.Newf("bundle exceeds max size (%d bytes, limit %d)", written, maxBundleSize)
	}

	l.logger.Info(ctx, "downloaded content bundle",
		"bytes", written,
		"actual_hash", actualHash,
	)

	// our policy is to always compare hashes in constant time, even though
	// this is not user-supplied or a secret value
	if !cryptoutil.HashEqual(actualHash, hash) {
		os.Remove(tmpPath)
		return "", xerrors.Newf("checksum mismatch: expected %s, got %s", hash, actualHash)
	}

	if l.verifier != nil {
		if err := l.verifySignature(ctx, key, tmpPath); err != nil {
			os.Remove(tmpPath)
			return "", err
		}
	}

	return tmpPath, nil
}

// verifySignature fetches the detached signature next to the bundle and
// checks it over the archive bytes.
func (l *Loader) verifySignature(ctx context.Context, key, bundlePath string) error {
	sigKey := key + ".sig"
	out, err := l.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.opts.S3Bucket),
		Key:    aws.String(sigKey),
	})
	if err != nil {
		return xerrors.Wrapf(err, "get bundle signature s3://%s/%s", l.opts.S3Bucket, sigKey)
	}
	defer out.Body.Close()

	sig, err := io.ReadAll(io.LimitReader(out.Body, 64*1024))
	if err != nil {
		return xerrors.Wrap(err, "read bundle signature")
	}

	data, err := os.ReadFile(bundlePath)
	if err != nil {
		return xerrors.Wrap(err, "read bundle for verification")
	}

	if err := l.verifier.VerifySignature(ctx, data, sig); err != nil {
		return xerrors.Wrap(err, "verify bundle signature")
	}

	l.logger.Info(ctx, "verified bundle signature", "key", sigKey)
	return nil
}

// Fetch downloads the current bundle, verifies it, and extracts it.
// The returned directory is the root to scan for content files.
func (l *Loader) Fetch(ctx context.Context) (string, error) {
	hash, err := l.CurrentHash(ctx)
	if err != nil {
		return "", err
	}
	return l.FetchHash(ctx, hash)
}

// FetchHash downloads and extracts a specific bundle by hash.
func (l *Loader) FetchHash(ctx context.Context, hash string) (string, error) {
	bundlePath, err := l.download(ctx, hash)
	if err != nil {
		return "", err
	}
	defer os.Remove(bundlePath)

	extractDir := l.opts.ExtractDir
	if extractDir == "" {
		extractDir, err = os.MkdirTemp("", "contentd-tree-*")
		if err != nil {
			return "", xerrors.Wrap(err, "create extract dir")
		}
	} else {
		// hash subdirectory so a re-deploy never overwrites a live tree
		extractDir = filepath.Join(extractDir, hash)
		if err := os.MkdirAll(extractDir, 0o755); err != nil {
			return "", xerrors.Wrapf(err, "create extract dir %s", extractDir)
		}
	}

	l.logger.Info(ctx, "extracting content bundle",
		"hash", hash,
		"dest", extractDir,
	)

	if err := extractTarGz(bundlePath, extractDir); err != nil {
		os.RemoveAll(extractDir)
		return "", xerrors.Wrap(err, "extract bundle")
	}

	return extractDir, nil
}
