// Package awsbatch exports a pipeline to AWS Batch: one job definition
// per task-pattern image, one job per task, dependencies expressed as
// dependsOn edges.
package awsbatch

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/batch/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/pipeship/pipeship/pkg/config"
	"github.com/pipeship/pipeship/pkg/export"
	"github.com/pipeship/pipeship/pkg/model"
	"go.uber.org/zap"
)

// Backend is the backend name in pipeship.yaml
const Backend = "aws-batch"

const submitRetries = 4

func init() {
	export.Register(Backend, func() export.Exporter { return New() })
}

// Exporter submits pipelines to AWS Batch
type Exporter struct {
	// newAPI is swapped in tests
	newAPI func(ctx context.Context, target *config.Target) (API, error)
}

// New builds the AWS Batch exporter
func New() *Exporter {
	return &Exporter{newAPI: newClient}
}

// Name is the backend name
func (e *Exporter) Name() string { return Backend }

// DefaultTarget is the pipeship.yaml section scaffolded by `add`
func (e *Exporter) DefaultTarget() *config.Target {
	return &config.Target{
		Backend:    Backend,
		Repository: config.PlaceholderRepository,
		JobQueue:   config.PlaceholderJobQueue,
		Region:     "us-east-1",
		ContainerProperties: config.ContainerProperties{
			VCPUs:     8,
			MemoryMiB: 16384,
		},
	}
}

// Add scaffolds the target directory with a starter Dockerfile
func (e *Exporter) Add(ctx context.Context, ws *export.Workspace) error {
	dockerfile, err := export.RenderDockerfile(ws.UsesConda())
	if err != nil {
		return err
	}
	return ws.Scaffold(map[string][]byte{"Dockerfile": dockerfile})
}

// Export builds the images and submits the planned tasks
func (e *Exporter) Export(ctx context.Context, ws *export.Workspace, plan *model.Plan, opts export.Options) error {
	images, err := ws.BuildImages(ctx, plan, opts)
	if err != nil {
		return err
	}
	client, err := e.newAPI(ctx, ws.Config)
	if err != nil {
		return err
	}

	ws.Log.Info("submitting jobs to AWS Batch",
		zap.String("queue", ws.Config.JobQueue),
		zap.String("run", model.NewRunID()))

	defs, err := e.registerJobDefinitions(ctx, ws, client, plan.Spec.PackageName(), images)
	if err != nil {
		return err
	}
	return e.submit(ctx, ws, client, plan, images, defs)
}

// registerJobDefinitions registers one job definition per image: the
// default one named after the package, pattern ones with a sanitized
// suffix.
func (e *Exporter) registerJobDefinitions(ctx context.Context, ws *export.Workspace, client API, pkg string, images map[string]string) (map[string]string, error) {
	defs := make(map[string]string, len(images))
	for pattern, img := range images {
		name := pkg
		if pattern != model.DefaultPattern {
			name = fmt.Sprintf("%s-%s", pkg, model.SanitizePattern(pattern))
		}
		ws.Log.Info("registering job definition", zap.String("name", name))

		input := &batch.RegisterJobDefinitionInput{
			JobDefinitionName:   aws.String(name),
			Type:                types.JobDefinitionTypeContainer,
			ContainerProperties: e.containerProperties(ws.Config, img),
		}
		var out *batch.RegisterJobDefinitionOutput
		err := e.retry(ctx, func() error {
			var err error
			out, err = client.RegisterJobDefinition(ctx, input)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("registering job definition %q: %w", name, err)
		}
		defs[pattern] = aws.ToString(out.JobDefinitionArn)
	}
	return defs, nil
}

// submit walks the plan in topological order so upstream job IDs exist
// by the time a dependent task is submitted.
func (e *Exporter) submit(ctx context.Context, ws *export.Workspace, client API, plan *model.Plan, images, defs map[string]string) error {
	order, err := plan.Graph.Sorted()
	if err != nil {
		return err
	}
	patterns := make([]string, 0, len(images))
	for p := range images {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	jobIDs := make(map[string]string, len(order))
	for _, task := range order {
		pattern := model.MatchPattern(patterns, task)

		dependsOn := make([]types.JobDependency, 0, len(plan.Graph[task]))
		for _, up := range plan.Graph[task] {
			dependsOn = append(dependsOn, types.JobDependency{JobId: aws.String(jobIDs[up])})
		}

		input := &batch.SubmitJobInput{
			JobName:       aws.String(task),
			JobQueue:      aws.String(ws.Config.JobQueue),
			JobDefinition: aws.String(defs[pattern]),
			DependsOn:     dependsOn,
			ContainerOverrides: &types.ContainerOverrides{
				Command:              ws.TaskCommand(plan, task),
				ResourceRequirements: taskRequirements(ws.Config, task),
			},
		}
		var out *batch.SubmitJobOutput
		err := e.retry(ctx, func() error {
			var err error
			out, err = client.SubmitJob(ctx, input)
			return err
		})
		if err != nil {
			return fmt.Errorf("submitting task %q: %w", task, err)
		}
		jobIDs[task] = aws.ToString(out.JobId)
		ws.Log.Info("submitted task", zap.String("task", task), zap.String("job", jobIDs[task]))
	}
	ws.Log.Info("done. Submitted to AWS Batch", zap.Int("jobs", len(jobIDs)))
	return nil
}

func (e *Exporter) containerProperties(target *config.Target, img string) *types.ContainerProperties {
	props := &types.ContainerProperties{
		Image: aws.String(img),
	}
	if target.ContainerProperties.VCPUs > 0 {
		props.ResourceRequirements = append(props.ResourceRequirements, types.ResourceRequirement{
			Type:  types.ResourceTypeVcpu,
			Value: aws.String(strconv.Itoa(target.ContainerProperties.VCPUs)),
		})
	}
	if target.ContainerProperties.MemoryMiB > 0 {
		props.ResourceRequirements = append(props.ResourceRequirements, types.ResourceRequirement{
			Type:  types.ResourceTypeMemory,
			Value: aws.String(strconv.Itoa(target.ContainerProperties.MemoryMiB)),
		})
	}
	return props
}

// taskRequirements translates task_resources overrides for one task
func taskRequirements(target *config.Target, task string) []types.ResourceRequirement {
	for pattern, res := range target.TaskResources {
		if pattern != task && !model.MatchesWildcard(pattern, task) {
			continue
		}
		var reqs []types.ResourceRequirement
		if res.VCPUs > 0 {
			reqs = append(reqs, types.ResourceRequirement{
				Type:  types.ResourceTypeVcpu,
				Value: aws.String(strconv.Itoa(res.VCPUs)),
			})
		}
		if res.MemoryMiB > 0 {
			reqs = append(reqs, types.ResourceRequirement{
				Type:  types.ResourceTypeMemory,
				Value: aws.String(strconv.Itoa(res.MemoryMiB)),
			})
		}
		if res.GPUs > 0 {
			reqs = append(reqs, types.ResourceRequirement{
				Type:  types.ResourceTypeGpu,
				Value: aws.String(strconv.Itoa(res.GPUs)),
			})
		}
		return reqs
	}
	return nil
}

// retry wraps AWS calls with exponential backoff, Batch throttles
// bursts of submissions.
func (e *Exporter) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), submitRetries), ctx)
	return backoff.Retry(op, policy)
}
