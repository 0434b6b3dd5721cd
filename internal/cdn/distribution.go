package cdn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/smithy-go"
	sptypes "github.com/sitepipe/sitepipe/internal/types"
)

// Distribution is the content-delivery front end for a stack's bucket.
type Distribution struct {
	ID                   string
	DomainName           string
	OriginAccessIdentity string
}

// Client wraps the CloudFront SDK client.
type Client struct {
	client *cloudfront.Client
	region string
}

func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, err
	}
	return &Client{client: cloudfront.NewFromConfig(cfg), region: region}, nil
}

// EnsureDistribution creates the distribution fronting bucketName if it
// does not yet exist, bound to the bucket through a dedicated origin
// access identity. The callerRef makes the create idempotent on retries
// by the caller.
func (c *Client) EnsureDistribution(
	ctx context.Context,
	existingID *string,
	bucketName string,
	tier sptypes.PriceTier,
	callerRef string,
) (*Distribution, error) {
	if existingID != nil && *existingID != "" {
		out, err := c.client.GetDistribution(ctx, &cloudfront.GetDistributionInput{
			Id: existingID,
		})
		if err == nil {
			return &Distribution{
				ID:         aws.ToString(out.Distribution.Id),
				DomainName: aws.ToString(out.Distribution.DomainName),
			}, nil
		}
		if !isNoSuchDistribution(err) {
			return nil, err
		}
	}

	oai, err := c.client.CreateCloudFrontOriginAccessIdentity(ctx,
		&cloudfront.CreateCloudFrontOriginAccessIdentityInput{
			CloudFrontOriginAccessIdentityConfig: &types.CloudFrontOriginAccessIdentityConfig{
				CallerReference: aws.String(callerRef + "-oai"),
				Comment:         aws.String("access identity for " + bucketName),
			},
		})
	if err != nil {
		return nil, err
	}
	oaiID := aws.ToString(oai.CloudFrontOriginAccessIdentity.Id)

	originID := "s3-" + bucketName
	originDomain := fmt.Sprintf("%s.s3.%s.amazonaws.com", bucketName, c.region)

	out, err := c.client.CreateDistribution(ctx, &cloudfront.CreateDistributionInput{
		DistributionConfig: &types.DistributionConfig{
			CallerReference:   aws.String(callerRef),
			Comment:           aws.String("static site for " + bucketName),
			Enabled:           aws.Bool(true),
			DefaultRootObject: aws.String("index.html"),
			PriceClass:        types.PriceClass(tier.PriceClass()),
			Origins: &types.Origins{
				Quantity: aws.Int32(1),
				Items: []types.Origin{
					{
						Id:         aws.String(originID),
						DomainName: aws.String(originDomain),
						S3OriginConfig: &types.S3OriginConfig{
							OriginAccessIdentity: aws.String(
								"origin-access-identity/cloudfront/" + oaiID,
							),
						},
					},
				},
			},
			DefaultCacheBehavior: &types.DefaultCacheBehavior{
				TargetOriginId:       aws.String(originID),
				ViewerProtocolPolicy: types.ViewerProtocolPolicyRedirectToHttps,
				AllowedMethods: &types.AllowedMethods{
					Quantity: aws.Int32(2),
					Items:    []types.Method{types.MethodGet, types.MethodHead},
				},
				Compress: aws.Bool(true),
				MinTTL:   aws.Int64(0),
				ForwardedValues: &types.ForwardedValues{
					QueryString: aws.Bool(false),
					Cookies: &types.CookiePreference{
						Forward: types.ItemSelectionNone,
					},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &Distribution{
		ID:                   aws.ToString(out.Distribution.Id),
		DomainName:           aws.ToString(out.Distribution.DomainName),
		OriginAccessIdentity: oaiID,
	}, nil
}

// DisableAndDelete disables the distribution, waits for the change to
// deploy, and deletes it. A distribution that is already gone is treated
// as deleted.
func (c *Client) DisableAndDelete(ctx context.Context, id string) error {
	out, err := c.client.GetDistributionConfig(ctx, &cloudfront.GetDistributionConfigInput{
		Id: aws.String(id),
	})
	if err != nil {
		if isNoSuchDistribution(err) {
			return nil
		}
		return err
	}

	cfg := out.DistributionConfig
	etag := out.ETag
	if aws.ToBool(cfg.Enabled) {
		cfg.Enabled = aws.Bool(false)
		updated, err := c.client.UpdateDistribution(ctx, &cloudfront.UpdateDistributionInput{
			Id:                 aws.String(id),
			IfMatch:            etag,
			DistributionConfig: cfg,
		})
		if err != nil {
			return err
		}
		etag = updated.ETag

		waiter := cloudfront.NewDistributionDeployedWaiter(c.client)
		if err := waiter.Wait(ctx, &cloudfront.GetDistributionInput{
			Id: aws.String(id),
		}, 20*time.Minute); err != nil {
			return err
		}
	}

	_, err = c.client.DeleteDistribution(ctx, &cloudfront.DeleteDistributionInput{
		Id:      aws.String(id),
		IfMatch: etag,
	})
	if err != nil && isNoSuchDistribution(err) {
		return nil
	}
	return err
}

// Invalidate flushes the given paths from edge caches after a deploy.
func (c *Client) Invalidate(ctx context.Context, id string, paths []string, callerRef string) error {
	items := make([]string, len(paths))
	copy(items, paths)
	_, err := c.client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(id),
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(callerRef),
			Paths: &types.Paths{
				Quantity: aws.Int32(int32(len(items))),
				Items:    items,
			},
		},
	})
	return err
}

func isNoSuchDistribution(err error) bool {
	var nsd *types.NoSuchDistribution
	if errors.As(err, &nsd) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchDistribution"
	}
	return false
}
