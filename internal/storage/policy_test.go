package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketPolicyJSON(t *testing.T) {
	t.Run("success - policy denies plaintext and allows identity read", func(t *testing.T) {
		// arrange + act
		policy, err := bucketPolicyJSON("demo-dev-eu-north-1-site", "E2ABCDEF")

		// assert
		assert.NoError(t, err)
		var doc map[string]any
		assert.NoError(t, json.Unmarshal([]byte(policy), &doc))
		assert.Equal(t, "2012-10-17", doc["Version"])
		assert.Contains(t, policy, `"aws:SecureTransport": "false"`)
		assert.Contains(t, policy, "arn:aws:s3:::demo-dev-eu-north-1-site/*")
		assert.Contains(t, policy, "CloudFront Origin Access Identity E2ABCDEF")
		statements := doc["Statement"].([]any)
		assert.Len(t, statements, 2)
	})
}
