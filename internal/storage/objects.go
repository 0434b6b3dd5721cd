package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectVersion identifies one stored version of an object, delete
// markers included. Unversioned buckets report a single "null" version
// per key.
type ObjectVersion struct {
	Key       string
	VersionID string
}

// VersionLister returns one page of object versions. Non-empty markers
// mean more pages remain; the listing interface is paginated and a
// single call never guarantees the full version set.
type VersionLister interface {
	ListVersionPage(
		ctx context.Context,
		bucket, keyMarker, versionMarker string,
		pageSize int32,
	) ([]ObjectVersion, string, string, error)
}

// VersionDeleter deletes a batch of object versions from a bucket.
type VersionDeleter interface {
	DeleteVersions(ctx context.Context, bucket string, versions []ObjectVersion) error
}

func (c *Client) ListVersionPage(
	ctx context.Context,
	bucket, keyMarker, versionMarker string,
	pageSize int32,
) ([]ObjectVersion, string, string, error) {
	input := &s3.ListObjectVersionsInput{
		Bucket: aws.String(bucket),
	}
	if keyMarker != "" {
		input.KeyMarker = aws.String(keyMarker)
	}
	if versionMarker != "" {
		input.VersionIdMarker = aws.String(versionMarker)
	}
	if pageSize > 0 {
		input.MaxKeys = aws.Int32(pageSize)
	}

	out, err := c.client.ListObjectVersions(ctx, input)
	if err != nil {
		return nil, "", "", err
	}

	versions := make([]ObjectVersion, 0, len(out.Versions)+len(out.DeleteMarkers))
	for _, v := range out.Versions {
		versions = append(versions, ObjectVersion{
			Key:       aws.ToString(v.Key),
			VersionID: aws.ToString(v.VersionId),
		})
	}
	for _, m := range out.DeleteMarkers {
		versions = append(versions, ObjectVersion{
			Key:       aws.ToString(m.Key),
			VersionID: aws.ToString(m.VersionId),
		})
	}

	if aws.ToBool(out.IsTruncated) {
		return versions, aws.ToString(out.NextKeyMarker), aws.ToString(out.NextVersionIdMarker), nil
	}
	return versions, "", "", nil
}

func (c *Client) DeleteVersions(
	ctx context.Context,
	bucket string,
	versions []ObjectVersion,
) error {
	if len(versions) == 0 {
		return nil
	}

	identifiers := make([]types.ObjectIdentifier, len(versions))
	for i, v := range versions {
		id := types.ObjectIdentifier{Key: aws.String(v.Key)}
		if v.VersionID != "" {
			id.VersionId = aws.String(v.VersionID)
		}
		identifiers[i] = id
	}

	out, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{
			Objects: identifiers,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return err
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf(
			"err deleting %d of %d versions, first: %s (%s)",
			len(out.Errors), len(versions),
			aws.ToString(first.Key), aws.ToString(first.Message),
		)
	}
	return nil
}

// UploadFile streams a single file into the bucket under key, with the
// content type inferred from the file extension.
func (c *Client) UploadFile(ctx context.Context, bucket, key string, body io.Reader) error {
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	return err
}
