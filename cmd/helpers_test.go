package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalkan3/codeserver-stack/pkg/config"
	"github.com/chalkan3/codeserver-stack/pkg/secrets"
)

// withFlags resets the package-level flag variables after a test
func withFlags(t *testing.T, stack, cfg string) {
	t.Helper()
	oldStack, oldCfg := stackName, cfgFile
	stackName, cfgFile = stack, cfg
	t.Cleanup(func() { stackName, cfgFile = oldStack, oldCfg })
}

func TestResolveStackName(t *testing.T) {
	withFlags(t, "", "")
	assert.Equal(t, config.DefaultStackName, resolveStackName(nil))
	assert.Equal(t, "dev", resolveStackName([]string{"dev"}))

	stackName = "flagged"
	assert.Equal(t, "flagged", resolveStackName(nil))
	assert.Equal(t, "dev", resolveStackName([]string{"dev"}))
}

func TestFullyQualifiedStackName(t *testing.T) {
	assert.Equal(t, "organization/codeserver-stack/dev", fullyQualifiedStackName("dev"))
}

func TestParseSetFlags(t *testing.T) {
	got, err := parseSetFlags([]string{"instance.type=t3.xlarge", "editor.password=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"instance.type": "t3.xlarge", "editor.password": "a=b"}, got)

	_, err = parseSetFlags([]string{"novalue"})
	assert.Error(t, err)

	_, err = parseSetFlags([]string{"=x"})
	assert.Error(t, err)
}

func TestLoadStackConfig(t *testing.T) {
	withFlags(t, "", "")
	t.Chdir(t.TempDir())

	cfg, err := loadStackConfig("dev", []string{"instance.type=t3.xlarge"}, "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Metadata.Name)
	assert.Equal(t, "eu-west-1", cfg.Metadata.Region)
	assert.Equal(t, "t3.xlarge", cfg.Instance.Type)
	assert.Equal(t, config.DefaultEditorPort, cfg.Editor.Port)
}

func TestLoadStackConfig_UsesDefaultFile(t *testing.T) {
	withFlags(t, "", "")
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := config.Default()
	cfg.Instance.Type = "t3.medium"
	require.NoError(t, config.Save(cfg, filepath.Join(dir, defaultConfigFile)))

	assert.Equal(t, defaultConfigFile, configPath())
	loaded, err := loadStackConfig("dev", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "t3.medium", loaded.Instance.Type)
}

func TestLoadStackConfig_InvalidSet(t *testing.T) {
	withFlags(t, "", "")
	t.Chdir(t.TempDir())

	_, err := loadStackConfig("dev", []string{"editor.port=abc"}, "")
	assert.Error(t, err)

	_, err = loadStackConfig("dev", []string{"nope.field=1"}, "")
	assert.Error(t, err)
}

func TestBucketFromBackendURL(t *testing.T) {
	assert.Equal(t, "my-state", bucketFromBackendURL("s3://my-state"))
	assert.Equal(t, "my-state", bucketFromBackendURL("s3://my-state?region=us-east-1&endpoint=minio:9000"))
	assert.Equal(t, "", bucketFromBackendURL("file://~"))
	assert.Equal(t, "", bucketFromBackendURL(""))
}

func TestOutputString(t *testing.T) {
	outputs := auto.OutputMap{
		"editorUrl": {Value: "http://example"},
		"count":     {Value: 2.0},
		"empty":     {Value: nil},
	}
	assert.Equal(t, "http://example", outputString(outputs, "editorUrl"))
	assert.Equal(t, "2", outputString(outputs, "count"))
	assert.Equal(t, "", outputString(outputs, "empty"))
	assert.Equal(t, "", outputString(outputs, "missing"))
}

func TestDisplayOutputs(t *testing.T) {
	outputs := auto.OutputMap{
		"editorUrl":      {Value: "http://example"},
		"editorPassword": {Value: "hunter2", Secret: true},
	}

	masked := displayOutputs(outputs, false)
	assert.Equal(t, "http://example", masked["editorUrl"])
	assert.Equal(t, secrets.Mask, masked["editorPassword"])

	revealed := displayOutputs(outputs, true)
	assert.Equal(t, "hunter2", revealed["editorPassword"])
}

func TestSortedOutputKeys(t *testing.T) {
	outputs := auto.OutputMap{"b": {}, "a": {}, "c": {}}
	assert.Equal(t, []string{"a", "b", "c"}, sortedOutputKeys(outputs))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "just now", formatTime(time.Now()))
	assert.Equal(t, "5m ago", formatTime(time.Now().Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "3h ago", formatTime(time.Now().Add(-3*time.Hour-time.Second)))
	assert.Equal(t, "2d ago", formatTime(time.Now().Add(-49*time.Hour)))
}

func TestValidateOutputFormat(t *testing.T) {
	for _, f := range []string{"table", "json", "yaml"} {
		assert.NoError(t, validateOutputFormat(f))
	}
	assert.Error(t, validateOutputFormat("xml"))
}

func TestWorkspaceOptions_PassesEnvironment(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("PULUMI_BACKEND_URL", "")
	assert.Len(t, workspaceOptions(), 2)

	t.Setenv("PULUMI_BACKEND_URL", "s3://bucket")
	assert.Len(t, workspaceOptions(), 3)
}

func TestMain(m *testing.M) {
	home, err := os.MkdirTemp("", "codeserver-stack-cmd")
	if err != nil {
		panic(err)
	}
	os.Setenv("HOME", home)
	code := m.Run()
	os.RemoveAll(home)
	os.Exit(code)
}
