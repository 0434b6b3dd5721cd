package storage

import (
	"encoding/json"
	"fmt"
)

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string          `json:"Sid,omitempty"`
	Effect    string          `json:"Effect"`
	Principal json.RawMessage `json:"Principal"`
	Action    any             `json:"Action"`
	Resource  any             `json:"Resource"`
	Condition json.RawMessage `json:"Condition,omitempty"`
}

// bucketPolicyJSON renders the bucket policy: deny any request not made
// over TLS, and grant read access to the distribution's origin access
// identity.
func bucketPolicyJSON(bucket, originAccessIdentity string) (string, error) {
	bucketARN := fmt.Sprintf("arn:aws:s3:::%s", bucket)
	objectsARN := bucketARN + "/*"

	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Sid:       "DenyInsecureTransport",
				Effect:    "Deny",
				Principal: json.RawMessage(`{"AWS": "*"}`),
				Action:    "s3:*",
				Resource:  []string{bucketARN, objectsARN},
				Condition: json.RawMessage(`{"Bool": {"aws:SecureTransport": "false"}}`),
			},
			{
				Sid:    "AllowDistributionRead",
				Effect: "Allow",
				Principal: json.RawMessage(fmt.Sprintf(
					`{"AWS": "arn:aws:iam::cloudfront:user/CloudFront Origin Access Identity %s"}`,
					originAccessIdentity,
				)),
				Action:   "s3:GetObject",
				Resource: objectsARN,
			},
		},
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
