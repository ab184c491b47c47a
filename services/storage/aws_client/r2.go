package aws_client

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
)

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
}

func r2AwsConfig(config R2Config) *aws.Config {
	return &aws.Config{
		Endpoint:         aws.String("https://" + config.AccountID + ".r2.cloudflarestorage.com"),
		Region:           aws.String("auto"),
		Credentials:      credentials.NewStaticCredentials(config.AccessKeyID, config.AccessKeySecret, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
}

// NewR2Client returns an S3Client pointed at Cloudflare R2.
func NewR2Client(config R2Config) (S3Client, error) {
	return NewS3Client(r2AwsConfig(config))
}
