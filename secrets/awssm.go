package secrets

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

const awsBackend = "AWS Secrets Manager"

// secretsManagerAPI is the subset of the Secrets Manager client used here.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManagerResolver resolves awssm:///secret-id or
// awssm://region/secret-id. Credentials come from the default AWS chain.
type AWSSecretsManagerResolver struct {
	newClient func(ctx context.Context, region string) (secretsManagerAPI, error)
}

func NewAWSSecretsManagerResolver() *AWSSecretsManagerResolver {
	return &AWSSecretsManagerResolver{newClient: newSecretsManagerClient}
}

func newSecretsManagerClient(ctx context.Context, region string) (secretsManagerAPI, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

func (r *AWSSecretsManagerResolver) Scheme() string {
	return "awssm"
}

func (r *AWSSecretsManagerResolver) Resolve(ctx context.Context, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	region, secretID, err := parseAWSSMReference(reference)
	if err != nil {
		return "", err
	}

	client, err := r.newClient(ctx, region)
	if err != nil {
		return "", &BackendError{
			Backend:   awsBackend,
			Reference: reference,
			Reason:    "loading AWS config: " + err.Error(),
			Fix:       "Configure credentials with aws configure, or set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.",
			Err:       err,
		}
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", awsError(err, reference, secretID)
	}

	if out.SecretString != nil {
		return aws.ToString(out.SecretString), nil
	}
	if len(out.SecretBinary) > 0 {
		return string(out.SecretBinary), nil
	}
	return "", &NotFoundError{
		Reference: reference,
		Backend:   awsBackend,
		Fix:       "Secret " + secretID + " has no value; put the signing secret in it as a string.",
	}
}

// parseAWSSMReference extracts region and secret id from an awssm:// URI.
// awssm:///ledger/signing -> ("", "ledger/signing")
// awssm://eu-west-1/ledger/signing -> ("eu-west-1", "ledger/signing")
func parseAWSSMReference(ref string) (region, secretID string, err error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "awssm" {
		return "", "", &InvalidReferenceError{Reference: ref, Reason: "expected awssm:// URI"}
	}
	secretID = strings.TrimPrefix(u.Path, "/")
	if secretID == "" {
		return "", "", &InvalidReferenceError{Reference: ref, Reason: "missing secret id"}
	}
	return u.Host, secretID, nil
}

func awsError(err error, reference, secretID string) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return &NotFoundError{
			Reference: reference,
			Backend:   awsBackend,
			Fix:       "Create secret " + secretID + ", or put the region in the reference: awssm://REGION/" + secretID,
		}
	}

	msg := err.Error()
	fix := ""
	switch {
	case strings.Contains(msg, "AccessDenied"):
		fix = "Check IAM permissions for secretsmanager:GetSecretValue on " + secretID
	case strings.Contains(msg, "ExpiredToken"):
		fix = "Run: aws sso login\nOr refresh your credentials."
	}
	return &BackendError{
		Backend:   awsBackend,
		Reference: reference,
		Reason:    msg,
		Fix:       fix,
		Err:       err,
	}
}
