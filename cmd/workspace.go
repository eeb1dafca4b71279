package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/common/tokens"
	"github.com/pulumi/pulumi/sdk/v3/go/common/workspace"

	"github.com/chalkan3/codeserver-stack/pkg/config"
	"github.com/chalkan3/codeserver-stack/pkg/stack"
)

// passthroughEnv lists the variables forwarded to the Pulumi subprocess
var passthroughEnv = []string{
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_SESSION_TOKEN",
	"AWS_PROFILE",
	"AWS_REGION",
	"AWS_S3_ENDPOINT",
	"AWS_S3_USE_PATH_STYLE",
	"AWS_S3_FORCE_PATH_STYLE",
	"PULUMI_BACKEND_URL",
	"PULUMI_CONFIG_PASSPHRASE",
}

// workspaceOptions builds the project and environment shared by every workspace
func workspaceOptions() []auto.LocalWorkspaceOption {
	project := workspace.Project{
		Name:    tokens.PackageName(projectName),
		Runtime: workspace.NewProjectRuntimeInfo("go", nil),
	}

	backendURL := os.Getenv("PULUMI_BACKEND_URL")
	if backendURL != "" {
		project.Backend = &workspace.ProjectBackend{URL: backendURL}
	}

	opts := []auto.LocalWorkspaceOption{auto.Project(project)}

	envVars := make(map[string]string)
	for _, key := range passthroughEnv {
		if val := os.Getenv(key); val != "" {
			envVars[key] = val
		}
	}

	if backendURL != "" {
		opts = append(opts, auto.SecretsProvider("passphrase"))
		if _, ok := envVars["PULUMI_CONFIG_PASSPHRASE"]; !ok {
			envVars["PULUMI_CONFIG_PASSPHRASE"] = ""
		}
	}

	if len(envVars) > 0 {
		opts = append(opts, auto.EnvVars(envVars))
	}
	return opts
}

// createWorkspaceWithS3Support creates a Pulumi workspace with S3/MinIO backend support
func createWorkspaceWithS3Support(ctx context.Context) (auto.Workspace, error) {
	return auto.NewLocalWorkspace(ctx, workspaceOptions()...)
}

// upsertStack creates or selects the stack with the code-server program inlined
func upsertStack(ctx context.Context, name string, cfg *config.StackConfig) (auto.Stack, error) {
	s, err := auto.UpsertStackInlineSource(ctx, fullyQualifiedStackName(name), projectName, stack.Program(cfg), workspaceOptions()...)
	if err != nil {
		return auto.Stack{}, fmt.Errorf("failed to create or select stack '%s': %w", name, err)
	}
	return s, nil
}

// selectStack selects an existing stack without a program, for outputs and destroy
func selectStack(ctx context.Context, name string) (auto.Stack, error) {
	ws, err := createWorkspaceWithS3Support(ctx)
	if err != nil {
		return auto.Stack{}, fmt.Errorf("failed to create workspace: %w", err)
	}

	s, err := auto.SelectStack(ctx, fullyQualifiedStackName(name), ws)
	if err != nil {
		return auto.Stack{}, fmt.Errorf("failed to select stack '%s': %w", name, err)
	}
	return s, nil
}

// stackOutputs returns the outputs of an existing stack
func stackOutputs(ctx context.Context, name string) (auto.OutputMap, error) {
	s, err := selectStack(ctx, name)
	if err != nil {
		return nil, err
	}

	outputs, err := s.Outputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stack outputs: %w", err)
	}
	return outputs, nil
}
