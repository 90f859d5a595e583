// Package cloudformation implements the stack collaborators on top of AWS
// CloudFormation: apply is create-or-update, readiness follows the stack
// status, and stack outputs become the unit's published outputs.
package cloudformation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"

	"github.com/strati-io/strati/internal/engine"
)

// API is the slice of the CloudFormation client the provider uses.
type API interface {
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

// Provider drives CloudFormation stacks for stack units. Stack names are
// the unit id prefixed with the environment name, so two environments can
// share an account.
type Provider struct {
	client API
	prefix string
}

// New builds a provider against the real CloudFormation API.
func New(ctx context.Context, region, profile, envName string) (*Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &Provider{client: cloudformation.NewFromConfig(cfg), prefix: envName}, nil
}

// NewWithClient injects a client, primarily for tests.
func NewWithClient(client API, envName string) *Provider {
	return &Provider{client: client, prefix: envName}
}

// StackName returns the CloudFormation stack name for a unit id.
func (p *Provider) StackName(unitID string) string {
	if p.prefix == "" {
		return unitID
	}
	return p.prefix + "-" + unitID
}

// Apply creates the stack, or updates it if it already exists. An update
// with no changes is a no-op success, which keeps apply idempotent.
func (p *Provider) Apply(ctx context.Context, u *engine.RenderedUnit) (*engine.ApplyResult, error) {
	name := p.StackName(u.ID)

	params := make([]types.Parameter, 0, len(u.Params))
	for k, v := range u.Params {
		key, value := k, v
		params = append(params, types.Parameter{ParameterKey: &key, ParameterValue: &value})
	}
	capabilities := []types.Capability{
		types.CapabilityCapabilityIam,
		types.CapabilityCapabilityNamedIam,
	}

	exists, _, err := p.describe(ctx, name)
	if err != nil {
		return nil, err
	}

	if !exists {
		_, err = p.client.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    &name,
			TemplateBody: &u.Body,
			Parameters:   params,
			Capabilities: capabilities,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stack %s: %w", name, err)
		}
		return &engine.ApplyResult{}, nil
	}

	_, err = p.client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    &name,
		TemplateBody: &u.Body,
		Parameters:   params,
		Capabilities: capabilities,
	})
	if err != nil {
		if isNoUpdateErr(err) {
			return &engine.ApplyResult{}, nil
		}
		return nil, fmt.Errorf("failed to update stack %s: %w", name, err)
	}
	return &engine.ApplyResult{}, nil
}

// Outputs reads the stack's outputs. Only meaningful once the stack is
// complete.
func (p *Provider) Outputs(ctx context.Context, unitID string) (map[string]string, error) {
	name := p.StackName(unitID)
	exists, stack, err := p.describe(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("stack %s does not exist", name)
	}

	outputs := make(map[string]string, len(stack.Outputs))
	for _, o := range stack.Outputs {
		if o.OutputKey != nil && o.OutputValue != nil {
			outputs[*o.OutputKey] = *o.OutputValue
		}
	}
	return outputs, nil
}

// Delete removes the stack. A stack that is already gone is success.
func (p *Provider) Delete(ctx context.Context, unitID string) (engine.DeleteResult, error) {
	name := p.StackName(unitID)
	exists, _, err := p.describe(ctx, name)
	if err != nil {
		return engine.DeleteOK, err
	}
	if !exists {
		return engine.DeleteAlreadyAbsent, nil
	}

	_, err = p.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{StackName: &name})
	if err != nil {
		return engine.DeleteOK, fmt.Errorf("failed to delete stack %s: %w", name, err)
	}
	return engine.DeleteOK, nil
}

// Query maps the stack status onto the engine's probe states. Rollbacks and
// failures are terminal: CloudFormation will not converge out of them by
// waiting.
func (p *Provider) Query(ctx context.Context, unitID string) (engine.Probe, error) {
	name := p.StackName(unitID)
	exists, stack, err := p.describe(ctx, name)
	if err != nil {
		return engine.Probe{}, err
	}
	if !exists {
		return engine.Probe{State: engine.StateNotReady}, nil
	}

	status := string(stack.StackStatus)
	switch {
	case status == string(types.StackStatusCreateComplete),
		status == string(types.StackStatusUpdateComplete):
		return engine.Probe{State: engine.StateReady}, nil
	case strings.HasSuffix(status, "_IN_PROGRESS"):
		return engine.Probe{State: engine.StateNotReady}, nil
	default:
		reason := status
		if stack.StackStatusReason != nil {
			reason = fmt.Sprintf("%s: %s", status, *stack.StackStatusReason)
		}
		return engine.Probe{State: engine.StateTerminalFailure, Reason: reason}, nil
	}
}

func (p *Provider) describe(ctx context.Context, name string) (bool, *types.Stack, error) {
	out, err := p.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: &name})
	if err != nil {
		if isNotFoundErr(err) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to describe stack %s: %w", name, err)
	}
	if len(out.Stacks) == 0 {
		return false, nil, nil
	}
	stack := out.Stacks[0]
	// A fully deleted stack can still be described by id; treat it as absent.
	if stack.StackStatus == types.StackStatusDeleteComplete {
		return false, nil, nil
	}
	return true, &stack, nil
}

// isNotFoundErr matches the ValidationError CloudFormation returns for a
// stack name that does not exist.
func isNotFoundErr(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" &&
			strings.Contains(apiErr.ErrorMessage(), "does not exist")
	}
	return false
}

// isNoUpdateErr matches the ValidationError for an update with no changes.
func isNoUpdateErr(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" &&
			strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
	}
	return false
}
