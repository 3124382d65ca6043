package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	sc "github.com/dmitrijs2005/achievements/internal/server/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return c.HeadObject(ctx, in, optFns...)
	}
)

// ImageChecker reports whether a badge image is published.
type ImageChecker interface {
	Exists(ctx context.Context, imgURL string) (bool, error)
}

// S3ImageResolver checks badge images in the bucket backing ImageBaseURL.
// An image URL "<ImageBaseURL>/<key>" maps to object <key>.
type S3ImageResolver struct {
	config *sc.Config
	client *s3.Client
}

func NewS3ImageResolver(ctx context.Context, cfg *sc.Config) (*S3ImageResolver, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3ImageResolver{config: cfg, client: client}, nil
}

// Key returns the object key of imgURL, or "" when the URL lies outside
// ImageBaseURL.
func (r *S3ImageResolver) Key(imgURL string) string {
	base := strings.TrimSuffix(r.config.ImageBaseURL, "/") + "/"
	key, ok := strings.CutPrefix(imgURL, base)
	if !ok {
		return ""
	}
	return key
}

func (r *S3ImageResolver) Exists(ctx context.Context, imgURL string) (bool, error) {
	key := r.Key(imgURL)
	if key == "" {
		return false, nil
	}

	bucket := r.config.S3Bucket
	_, err := headObject(r.client, ctx, &s3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
