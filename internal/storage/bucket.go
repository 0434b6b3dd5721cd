package storage

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const (
	noncurrentExpireDays int32 = 30
	allVersionExpireDays int32 = 365
)

func (c *Client) BucketExists(ctx context.Context, name string) (bool, error) {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		if IsBucketNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EnsureBucket creates the bucket if missing and converges its
// configuration: versioning on, lifecycle expiration rules, all public
// access blocked, and a policy denying plaintext transport while allowing
// the distribution's access identity to read.
func (c *Client) EnsureBucket(ctx context.Context, name, originAccessIdentity string) error {
	exists, err := c.BucketExists(ctx, name)
	if err != nil {
		return err
	}

	if !exists {
		input := &s3.CreateBucketInput{Bucket: aws.String(name)}
		// us-east-1 rejects an explicit location constraint
		if c.region != "us-east-1" {
			input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(c.region),
			}
		}
		if _, err := c.client.CreateBucket(ctx, input); err != nil {
			var owned *types.BucketAlreadyOwnedByYou
			if !errors.As(err, &owned) {
				return err
			}
		}
	}

	if _, err := c.client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(name),
		VersioningConfiguration: &types.VersioningConfiguration{
			Status: types.BucketVersioningStatusEnabled,
		},
	}); err != nil {
		return err
	}

	if _, err := c.client.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(name),
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{
			Rules: []types.LifecycleRule{
				{
					ID:     aws.String("expire-versions"),
					Status: types.ExpirationStatusEnabled,
					Filter: &types.LifecycleRuleFilter{Prefix: aws.String("")},
					NoncurrentVersionExpiration: &types.NoncurrentVersionExpiration{
						NoncurrentDays: aws.Int32(noncurrentExpireDays),
					},
					Expiration: &types.LifecycleExpiration{
						Days: aws.Int32(allVersionExpireDays),
					},
				},
			},
		},
	}); err != nil {
		return err
	}

	if _, err := c.client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(name),
		PublicAccessBlockConfiguration: &types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	}); err != nil {
		return err
	}

	// An empty identity means the distribution existed before this call
	// and the policy was already written with its identity.
	if originAccessIdentity != "" {
		policy, err := bucketPolicyJSON(name, originAccessIdentity)
		if err != nil {
			return err
		}
		if _, err := c.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
			Bucket: aws.String(name),
			Policy: aws.String(policy),
		}); err != nil {
			return err
		}
	}

	return nil
}

// DeleteBucket removes the bucket itself. The bucket must already be
// empty; draining it is the caller's responsibility.
func (c *Client) DeleteBucket(ctx context.Context, name string) error {
	_, err := c.client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil && IsBucketNotFound(err) {
		return nil
	}
	return err
}

// IsBucketNotFound reports whether err means the bucket does not exist.
func IsBucketNotFound(err error) bool {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchBucket" || code == "NotFound"
	}
	return false
}
