package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"cardsignup/internal/types"
)

// ssmClient is the subset of the SSM SDK client used by SSMAccessor.
type ssmClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMAccessor implements Accessor on AWS Systems Manager Parameter Store for
// deployments that run outside Google Cloud. The key is stored as a
// SecureString parameter at /{project}/{secret}; a numeric version selects
// that parameter version.
//
// SSM returns no checksum. The payload checksum is computed locally and the
// payload is always Verified; KMS decryption already guards integrity.
type SSMAccessor struct {
	mu       sync.Mutex
	region   string
	endpoint string
	client   ssmClient
}

// NewSSMAccessor creates an SSMAccessor for the given region. endpoint may be
// empty; it is used to point at LocalStack.
func NewSSMAccessor(region, endpoint string) *SSMAccessor {
	return &SSMAccessor{
		region:   region,
		endpoint: endpoint,
	}
}

// newSSMAccessorWithClient injects an SSM client for tests.
func newSSMAccessorWithClient(region string, client ssmClient) *SSMAccessor {
	return &SSMAccessor{
		region: region,
		client: client,
	}
}

func (a *SSMAccessor) ensureClient(ctx context.Context) (ssmClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SSM (region=%s): %w", a.region, err)
	}

	endpoint := a.endpoint
	a.client = ssm.NewFromConfig(cfg, func(o *ssm.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return a.client, nil
}

// ParameterName maps a secret reference onto an SSM parameter name with an
// optional version selector.
func ParameterName(projectID, secretID, versionID string) string {
	name := "/" + strings.Trim(projectID, "/") + "/" + strings.Trim(secretID, "/")
	if versionID == "" || versionID == LatestVersion {
		return name
	}
	return name + ":" + versionID
}

// Access fetches and decrypts the parameter that holds the secret.
func (a *SSMAccessor) Access(ctx context.Context, projectID, secretID, versionID string) (*Payload, error) {
	name := ParameterName(projectID, secretID, versionID)

	client, err := a.ensureClient(ctx)
	if err != nil {
		return nil, accessError(name, err)
	}

	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, accessError(name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, accessError(name, fmt.Errorf("parameter has no value"))
	}

	value := aws.ToString(out.Parameter.Value)
	return &Payload{
		Name:     name,
		Value:    types.SecretString(value),
		Checksum: Checksum([]byte(value)),
		Verified: true,
	}, nil
}
