package awsbatch

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/pipeship/pipeship/pkg/config"
)

// API is the slice of the AWS Batch client the exporter uses, kept
// narrow so tests can fake it.
type API interface {
	RegisterJobDefinition(ctx context.Context, params *batch.RegisterJobDefinitionInput,
		optFns ...func(*batch.Options)) (*batch.RegisterJobDefinitionOutput, error)
	SubmitJob(ctx context.Context, params *batch.SubmitJobInput,
		optFns ...func(*batch.Options)) (*batch.SubmitJobOutput, error)
}

// newClient builds a real AWS Batch client from the target settings.
// Credentials come from the default chain unless the target pins static
// ones; the endpoint override exists for local stacks.
func newClient(ctx context.Context, target *config.Target) (API, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if target.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(target.Region))
	}
	if target.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(target.AccessKey, target.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	if target.Endpoint != "" {
		return batch.NewFromConfig(awsCfg, func(o *batch.Options) {
			o.BaseEndpoint = &target.Endpoint
		}), nil
	}
	return batch.NewFromConfig(awsCfg), nil
}
