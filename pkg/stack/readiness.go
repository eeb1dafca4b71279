package stack

import (
	"fmt"
	"time"

	"github.com/chalkan3/codeserver-stack/pkg/config"
	"github.com/pulumi/pulumi-command/sdk/go/command/local"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// ReadinessComponent blocks the deployment until the editor answers through the load balancer
type ReadinessComponent struct {
	pulumi.ResourceState

	Status pulumi.StringOutput `pulumi:"status"`
}

// waitScript polls url until it returns anything other than a connection
// failure or a 5xx, or until timeout elapses.
func waitScript(url string, timeout, interval time.Duration) string {
	return fmt.Sprintf(`deadline=$(( $(date +%%s) + %d ))
while true; do
  code=$(curl -s -o /dev/null -w '%%{http_code}' --max-time 10 '%[2]s' || true)
  case "$code" in
    000|5??) ;;
    *) echo "ready: $code"; exit 0 ;;
  esac
  if [ "$(date +%%s)" -ge "$deadline" ]; then
    echo "timed out waiting for %[2]s (last status $code)" >&2
    exit 1
  fi
  sleep %[3]d
done
`, int(timeout.Seconds()), url, int(interval.Seconds()))
}

// NewReadinessComponent declares a local command that waits for url to serve the editor
func NewReadinessComponent(
	ctx *pulumi.Context,
	name string,
	readyCfg config.ReadinessConfig,
	url pulumi.StringOutput,
	dependsOn []pulumi.Resource,
	opts ...pulumi.ResourceOption,
) (*ReadinessComponent, error) {
	component := &ReadinessComponent{}
	err := ctx.RegisterComponentResource("codeserver:readiness:Gate", name, component, opts...)
	if err != nil {
		return nil, err
	}

	ctx.Log.Info(fmt.Sprintf("⏳ Waiting up to %s for code-server to answer", readyCfg.Timeout), nil)

	create := url.ApplyT(func(u string) string {
		return waitScript(u, readyCfg.Timeout, readyCfg.Interval)
	}).(pulumi.StringOutput)

	// leave headroom over the script's own deadline
	timeout := readyCfg.Timeout + time.Minute

	cmd, err := local.NewCommand(ctx, fmt.Sprintf("%s-wait", name), &local.CommandArgs{
		Create:      create,
		Interpreter: pulumi.StringArray{pulumi.String("/bin/sh"), pulumi.String("-c")},
	}, pulumi.Parent(component), pulumi.DependsOn(dependsOn), pulumi.Timeouts(&pulumi.CustomTimeouts{
		Create: timeout.String(),
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create readiness check: %w", err)
	}

	component.Status = cmd.Stdout

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"status": component.Status,
	}); err != nil {
		return nil, err
	}

	return component, nil
}
