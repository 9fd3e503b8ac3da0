// Copyright 2025 RetailNext, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const partSize = 16 * 1024 * 1024

type awsClient struct {
	s3Svc      *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader

	bucket       string
	prefix       string
	storageClass string
}

// NewAWSClient builds an S3-backed client and probes the bucket so an
// unreachable store fails at startup rather than mid-run.
func NewAWSClient(ctx context.Context, cfg Config) (Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	s3Svc := s3.NewFromConfig(awsCfg)
	c := &awsClient{
		s3Svc: s3Svc,
		uploader: manager.NewUploader(s3Svc, func(u *manager.Uploader) {
			u.PartSize = partSize
		}),
		downloader: manager.NewDownloader(s3Svc, func(d *manager.Downloader) {
			d.PartSize = partSize
		}),
		bucket:       cfg.BucketName,
		prefix:       strings.Trim(cfg.KeyPrefix, "/"),
		storageClass: cfg.StorageClass,
	}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("bucket %q unreachable: %w", cfg.BucketName, err)
	}
	return c, nil
}

func (c *awsClient) keyWithPrefix(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + "/" + key
}

func (c *awsClient) Ping(ctx context.Context) error {
	_, err := c.s3Svc.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: &c.bucket,
	})
	return err
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func (c *awsClient) Exists(ctx context.Context, key string) (int64, bool, error) {
	out, err := c.s3Svc.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &c.bucket,
		Key:    aws.String(c.keyWithPrefix(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return aws.ToInt64(out.ContentLength), true, nil
}

func (c *awsClient) PutFile(ctx context.Context, key string, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()
	return c.Put(ctx, key, file)
}

func (c *awsClient) Put(ctx context.Context, key string, body io.Reader) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &c.bucket,
		Key:    aws.String(c.keyWithPrefix(key)),
		Body:   body,
	})
	return err
}

func (c *awsClient) Download(ctx context.Context, key string, file *os.File) error {
	_, err := c.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    aws.String(c.keyWithPrefix(key)),
	})
	return err
}

func (c *awsClient) List(ctx context.Context, prefix string) ([]Object, error) {
	fullPrefix := c.keyWithPrefix(prefix)
	skip := len(fullPrefix) - len(prefix)
	var result []Object
	paginator := s3.NewListObjectsV2Paginator(c.s3Svc, &s3.ListObjectsV2Input{
		Bucket: &c.bucket,
		Prefix: aws.String(fullPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if len(key) < skip {
				continue
			}
			result = append(result, Object{
				Key:  key[skip:],
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	return result, nil
}

func (c *awsClient) Delete(ctx context.Context, key string) error {
	_, err := c.s3Svc.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &c.bucket,
		Key:    aws.String(c.keyWithPrefix(key)),
	})
	return err
}

// SetStorageClass copies the object onto itself with the configured class.
// S3 has no in-place metadata patch; a self-copy is the supported way to
// transition class without re-uploading content.
func (c *awsClient) SetStorageClass(ctx context.Context, key string) error {
	if c.storageClass == "" || c.storageClass == string(types.StorageClassStandard) {
		return nil
	}
	fullKey := c.keyWithPrefix(key)
	_, err := c.s3Svc.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            &c.bucket,
		Key:               aws.String(fullKey),
		CopySource:        aws.String(c.bucket + "/" + fullKey),
		StorageClass:      types.StorageClass(c.storageClass),
		MetadataDirective: types.MetadataDirectiveCopy,
	})
	return err
}
