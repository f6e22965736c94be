package testutil

import (
	"context"
	"testing"
	"time"

	assetaws "github.com/USSTM/asset-backend/internal/aws"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	TestBucket    = "test-signatures"
	TestFromEmail = "no-reply@example.com"
)

type TestLocalStack struct {
	Container *localstack.LocalStackContainer
	Endpoint  string
	Config    aws.Config
	S3        *assetaws.S3Service
	SES       *assetaws.SESService
	sesClient *ses.Client
}

// NewTestLocalStack runs S3 and SES, creates the bucket and verifies the sender.
func NewTestLocalStack(t *testing.T) *TestLocalStack {
	t.Helper()
	ctx := context.Background()

	container, err := localstack.Run(ctx,
		"localstack/localstack:3.0",
		testcontainers.WithReuseByName("asset-backend-test-localstack"),
		testcontainers.WithEnv(map[string]string{
			"SERVICES": "s3,ses",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("Ready.").
					WithOccurrence(1).
					WithStartupTimeout(60*time.Second),
				wait.ForListeningPort("4566/tcp").
					WithStartupTimeout(60*time.Second),
			),
		),
	)
	require.NoError(t, err, "Failed to start LocalStack container")

	endpoint, err := container.PortEndpoint(ctx, "4566/tcp", "http")
	require.NoError(t, err, "Failed to get LocalStack endpoint")

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err, "Failed to load AWS config")

	ls := &TestLocalStack{
		Container: container,
		Endpoint:  endpoint,
		Config:    cfg,
		S3:        assetaws.NewS3ServiceFromConfig(cfg, endpoint, TestBucket),
		SES:       assetaws.NewSESServiceFromConfig(cfg, endpoint, TestFromEmail),
		sesClient: ses.NewFromConfig(cfg, func(o *ses.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		}),
	}

	require.NoError(t, ls.S3.EnsureBucket(ctx))
	require.NoError(t, ls.SES.VerifySender(ctx))

	return ls
}

// Cleanup removes verified identities so each test starts unverified.
func (ls *TestLocalStack) Cleanup(t *testing.T) {
	ctx := context.Background()

	listOut, err := ls.sesClient.ListIdentities(ctx, &ses.ListIdentitiesInput{})
	if err != nil {
		t.Logf("Failed to list identities: %v", err)
		return
	}

	for _, identity := range listOut.Identities {
		if _, err := ls.sesClient.DeleteIdentity(ctx, &ses.DeleteIdentityInput{
			Identity: aws.String(identity),
		}); err != nil {
			t.Logf("Failed to delete identity %s: %v", identity, err)
		}
	}
}

func (ls *TestLocalStack) Close() {
	if ls.Container != nil {
		ls.Container.Terminate(context.Background())
	}
}
