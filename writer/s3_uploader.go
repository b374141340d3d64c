package writer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/ontoloji/Sif-to-blf/config"
	"github.com/ontoloji/Sif-to-blf/logger"
)

// S3Uploader pushes a finished trace file to an S3 bucket after the run.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	log    *logger.Log
}

// NewS3Uploader configures the AWS SDK from the storage settings. Static
// credentials from the configuration win over the default chain.
func NewS3Uploader(ctx context.Context, cfg appconfig.S3Config) (*S3Uploader, error) {
	log := logger.GetLogger()

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("s3_uploader").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	up := &S3Uploader{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log,
	}
	log.WithComponent("s3_uploader").WithFields(logger.Fields{
		"bucket": cfg.Bucket,
		"region": cfg.Region,
	}).Debug("s3 uploader initialized")
	return up, nil
}

// Upload stores the file under the configured prefix, keyed by its base
// name.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open upload source: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat upload source: %w", err)
	}

	key := u.ObjectKey(localPath)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		u.log.WithComponent("s3_uploader").WithError(err).WithFields(logger.Fields{
			"bucket": u.bucket,
			"key":    key,
		}).Error("upload failed")
		return "", fmt.Errorf("failed to upload %s: %w", localPath, err)
	}

	u.log.WithComponent("s3_uploader").WithFields(logger.Fields{
		"bucket": u.bucket,
		"key":    key,
		"bytes":  info.Size(),
	}).Info("trace uploaded")
	return key, nil
}

// ObjectKey derives the bucket key for a local file.
func (u *S3Uploader) ObjectKey(localPath string) string {
	name := filepath.Base(localPath)
	prefix := strings.Trim(u.prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
