package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/sentinelkit/go-ingestutils/uploader/batch"
)

const defaultS3Retries = 3

// S3Params ...
type S3Params struct {
	// Bucket is the source bucket name.
	Bucket string
	// Prefix limits enumeration to objects under this key prefix.
	Prefix string
	// TableName follows the same shared-vs-derived policy as DirParams.
	TableName string
	// Delimiter is the value separator. Zero means comma, which also limits
	// enumeration to .csv object keys, mirroring directory uploads.
	Delimiter rune
	// Region must not be empty.
	Region string
	// AccessKeyID and SecretAccessKey are optional static credentials; when
	// empty, the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	// NumFullRetries is the per-object download retry count (downloads only,
	// never ingestion requests). Zero means 3.
	NumFullRetries int
}

// FromS3 enumerates matching objects under a bucket prefix into Units. Each
// object is downloaded to a temporary file when its records are first read.
func (r Resolver) FromS3(ctx context.Context, params S3Params) ([]Unit, error) {
	if params.Bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}

	cfg, err := loadAWSConfig(ctx, params.Region, params.AccessKeyID, params.SecretAccessKey, r.logger)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(*cfg)

	delimiter := delimiterOrDefault(params.Delimiter)

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(params.Bucket),
		Prefix: aws.String(params.Prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var apiError smithy.APIError
			if errors.As(err, &apiError) {
				return nil, fmt.Errorf("list objects (%s): %w", apiError.ErrorCode(), err)
			}
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			if delimiter == defaultDelimiter && !strings.HasSuffix(key, ".csv") {
				continue
			}
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		return nil, nil
	}

	tmpDir, err := r.pathProvider.CreateTempDir("s3-source")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	retries := params.NumFullRetries
	if retries <= 0 {
		retries = defaultS3Retries
	}

	units := make([]Unit, 0, len(keys))
	for _, key := range keys {
		tableName := params.TableName
		if tableName == "" {
			tableName = TableNameFromPath(key)
		}

		units = append(units, s3Unit{
			downloader: manager.NewDownloader(client),
			bucket:     params.Bucket,
			key:        key,
			localPath:  filepath.Join(tmpDir, filepath.Base(key)),
			name:       tableName,
			delimiter:  delimiter,
			retries:    retries,
			logger:     r.logger,
		})
	}

	return units, nil
}

type s3Unit struct {
	downloader *manager.Downloader
	bucket     string
	key        string
	localPath  string
	name       string
	delimiter  rune
	retries    int
	logger     log.Logger
}

func (u s3Unit) TableName() string {
	return u.name
}

func (u s3Unit) Records(ctx context.Context) ([]batch.Record, error) {
	err := retry.Times(uint(u.retries)).Wait(5 * time.Second).TryWithAbort(func(attempt uint) (error, bool) {
		if attempt > 0 {
			u.logger.Warnf("Retrying download of s3://%s/%s (attempt %d)", u.bucket, u.key, attempt+1)
		}
		if err := u.download(ctx); err != nil {
			return fmt.Errorf("download object: %w", err), false
		}
		return nil, true
	})
	if err != nil {
		return nil, fmt.Errorf("all download retries failed: %w", err)
	}

	return readDelimitedFile(u.localPath, u.delimiter, u.logger)
}

func (u s3Unit) download(ctx context.Context) error {
	file, err := os.Create(u.localPath)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			u.logger.Errorf("failed to close file: %s", err)
		}
	}(file)

	_, err = u.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.key),
	})
	if err != nil {
		return fmt.Errorf("get object: %w", err)
	}

	return nil
}

func loadAWSConfig(
	ctx context.Context,
	region string,
	accessKeyID string,
	secretKey string,
	logger log.Logger,
) (*aws.Config, error) {
	if region == "" {
		return nil, fmt.Errorf("region must not be empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	if accessKeyID != "" && secretKey != "" {
		logger.Debugf("aws credentials provided, using them...")
		opts = append(opts,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config, %v", err)
	}

	return &cfg, nil
}
