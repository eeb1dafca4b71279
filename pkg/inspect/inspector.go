// Package inspect checks a deployed stack against the live AWS account and the
// editor endpoint, producing a health.Report.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/chalkan3/codeserver-stack/pkg/health"
	"github.com/chalkan3/codeserver-stack/pkg/retry"
)

const probeTimeout = 10 * time.Second

// EC2API is the subset of the EC2 client used by the inspector
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// ELBAPI is the subset of the ELBv2 client used by the inspector
type ELBAPI interface {
	DescribeTargetHealth(ctx context.Context, params *elbv2.DescribeTargetHealthInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTargetHealthOutput, error)
}

// STSAPI is the subset of the STS client used by the inspector
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// S3API is the subset of the S3 client used by the inspector
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// HTTPDoer sends the editor probe
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Target identifies the deployed resources to inspect, as exported by the stack
type Target struct {
	InstanceID     string
	TargetGroupArn string
	EditorURL      string
}

// Inspector runs live checks against a deployed stack
type Inspector struct {
	ec2   EC2API
	elb   ELBAPI
	sts   STSAPI
	s3    S3API
	http  HTTPDoer
	retry retry.Config
}

// LoadAWSConfig loads the default credential chain pinned to region
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// NewInspector builds an inspector backed by real AWS clients
func NewInspector(cfg aws.Config) *Inspector {
	return NewInspectorWithClients(
		ec2.NewFromConfig(cfg),
		elbv2.NewFromConfig(cfg),
		sts.NewFromConfig(cfg),
		s3.NewFromConfig(cfg),
		newProbeClient(),
	)
}

// NewInspectorWithClients builds an inspector from explicit clients
func NewInspectorWithClients(ec2Client EC2API, elbClient ELBAPI, stsClient STSAPI, s3Client S3API, httpClient HTTPDoer) *Inspector {
	return &Inspector{
		ec2:   ec2Client,
		elb:   elbClient,
		sts:   stsClient,
		s3:    s3Client,
		http:  httpClient,
		retry: retry.ProbeConfig(),
	}
}

// WithRetry overrides the retry policy of the editor probe
func (i *Inspector) WithRetry(cfg retry.Config) *Inspector {
	i.retry = cfg
	return i
}

// The login page redirects, so redirects are reported as-is instead of followed.
func newProbeClient() *http.Client {
	return &http.Client{
		Timeout: probeTimeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Inspect runs every post-deploy check and returns the aggregated report
func (i *Inspector) Inspect(ctx context.Context, stackName string, target Target) *health.Report {
	report := health.NewReport(stackName)

	report.Add(i.CheckCallerIdentity(ctx))
	report.Add(i.CheckInstance(ctx, target.InstanceID))
	report.Add(i.CheckTargetHealth(ctx, target.TargetGroupArn, target.InstanceID))
	report.Add(i.CheckEditor(ctx, target.EditorURL))

	report.Finish()
	return report
}

// Preflight verifies credentials and, when set, the state bucket
func (i *Inspector) Preflight(ctx context.Context, stackName, bucket string) *health.Report {
	report := health.NewReport(stackName)

	report.Add(i.CheckCallerIdentity(ctx))
	if bucket != "" {
		report.Add(i.CheckBucket(ctx, bucket))
	}

	report.Finish()
	return report
}

// CheckCallerIdentity verifies that AWS credentials resolve to an account
func (i *Inspector) CheckCallerIdentity(ctx context.Context) health.CheckResult {
	start := time.Now()
	result := health.CheckResult{Name: "AWS Credentials"}

	out, err := i.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = health.StatusCritical
		result.Message = fmt.Sprintf("failed to resolve caller identity: %v", err)
		result.Remediation = "Configure AWS credentials (AWS_PROFILE or AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY)"
		return result
	}

	result.Status = health.StatusHealthy
	result.Message = fmt.Sprintf("account %s", aws.ToString(out.Account))
	result.Details = []string{aws.ToString(out.Arn)}
	return result
}

// CheckInstance verifies that the editor instance is running
func (i *Inspector) CheckInstance(ctx context.Context, instanceID string) health.CheckResult {
	start := time.Now()
	result := health.CheckResult{Name: "Instance"}

	if instanceID == "" {
		result.Status = health.StatusUnknown
		result.Message = "no instance ID in stack outputs"
		return result
	}

	out, err := i.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = health.StatusCritical
		result.Message = fmt.Sprintf("failed to describe %s: %v", instanceID, err)
		return result
	}

	var instance *ec2types.Instance
	for _, reservation := range out.Reservations {
		for idx := range reservation.Instances {
			instance = &reservation.Instances[idx]
		}
	}
	if instance == nil || instance.State == nil {
		result.Status = health.StatusCritical
		result.Message = fmt.Sprintf("instance %s not found", instanceID)
		result.Remediation = "Run 'codeserver-stack deploy' to recreate the instance"
		return result
	}

	state := instance.State.Name
	result.Details = []string{
		fmt.Sprintf("type: %s", instance.InstanceType),
		fmt.Sprintf("public ip: %s", aws.ToString(instance.PublicIpAddress)),
	}

	switch state {
	case ec2types.InstanceStateNameRunning:
		result.Status = health.StatusHealthy
		result.Message = fmt.Sprintf("%s is running", instanceID)
	case ec2types.InstanceStateNamePending:
		result.Status = health.StatusWarning
		result.Message = fmt.Sprintf("%s is pending", instanceID)
		result.Remediation = "Wait for the instance to finish booting"
	default:
		result.Status = health.StatusCritical
		result.Message = fmt.Sprintf("%s is %s", instanceID, state)
		result.Remediation = "Start the instance or run 'codeserver-stack deploy' to replace it"
	}
	return result
}

// CheckTargetHealth verifies that the load balancer sees the instance as healthy
func (i *Inspector) CheckTargetHealth(ctx context.Context, targetGroupArn, instanceID string) health.CheckResult {
	start := time.Now()
	result := health.CheckResult{Name: "Load Balancer Target"}

	if targetGroupArn == "" {
		result.Status = health.StatusUnknown
		result.Message = "no target group in stack outputs"
		return result
	}

	out, err := i.elb.DescribeTargetHealth(ctx, &elbv2.DescribeTargetHealthInput{
		TargetGroupArn: aws.String(targetGroupArn),
	})
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = health.StatusCritical
		result.Message = fmt.Sprintf("failed to describe target health: %v", err)
		return result
	}

	var desc *elbtypes.TargetHealthDescription
	for idx := range out.TargetHealthDescriptions {
		d := &out.TargetHealthDescriptions[idx]
		if instanceID == "" || (d.Target != nil && aws.ToString(d.Target.Id) == instanceID) {
			desc = d
			break
		}
	}
	if desc == nil || desc.TargetHealth == nil {
		result.Status = health.StatusCritical
		result.Message = "instance is not registered with the target group"
		result.Remediation = "Run 'codeserver-stack deploy' to restore the target attachment"
		return result
	}

	th := desc.TargetHealth
	if th.Reason != "" {
		result.Details = append(result.Details, string(th.Reason))
	}
	if th.Description != nil {
		result.Details = append(result.Details, aws.ToString(th.Description))
	}

	switch th.State {
	case elbtypes.TargetHealthStateEnumHealthy:
		result.Status = health.StatusHealthy
		result.Message = "target is healthy"
	case elbtypes.TargetHealthStateEnumInitial:
		result.Status = health.StatusWarning
		result.Message = "target registration in progress"
		result.Remediation = "The editor may still be installing; check again in a few minutes"
	default:
		result.Status = health.StatusCritical
		result.Message = fmt.Sprintf("target is %s", th.State)
		result.Remediation = "Inspect /var/log/cloud-init-output.log on the instance"
	}
	return result
}

// CheckEditor probes the public editor URL
func (i *Inspector) CheckEditor(ctx context.Context, url string) health.CheckResult {
	start := time.Now()
	result := health.CheckResult{Name: "Editor Endpoint"}

	if url == "" {
		result.Status = health.StatusUnknown
		result.Message = "no editor URL in stack outputs"
		return result
	}

	code, err := i.ProbeEditor(ctx, url)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = health.StatusCritical
		result.Message = fmt.Sprintf("%s unreachable: %v", url, err)
		result.Remediation = "Check the target health and the security group source CIDR"
		return result
	}

	result.Status = health.StatusHealthy
	result.Message = fmt.Sprintf("%s answered %d", url, code)
	return result
}

// ProbeEditor sends GET requests to url until it answers below 500.
// Connection failures and 5xx responses are retried with the probe policy.
func (i *Inspector) ProbeEditor(ctx context.Context, url string) (int, error) {
	return retry.DoWithDataContext(ctx, retry.New(i.retry), func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, fmt.Errorf("invalid editor URL: %w", err)
		}

		resp, err := i.http.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return 0, err
			}
			return 0, retry.NewRetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return resp.StatusCode, retry.NewRetryableError(fmt.Errorf("editor returned %d", resp.StatusCode))
		}
		return resp.StatusCode, nil
	})
}

// CheckBucket verifies that the state bucket is reachable
func (i *Inspector) CheckBucket(ctx context.Context, bucket string) health.CheckResult {
	start := time.Now()
	result := health.CheckResult{Name: "State Bucket"}

	_, err := i.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = health.StatusCritical
		result.Message = fmt.Sprintf("bucket %s not reachable: %v", bucket, err)
		result.Remediation = fmt.Sprintf("Create the bucket with 'aws s3 mb s3://%s' or fix the backend URL", bucket)
		return result
	}

	result.Status = health.StatusHealthy
	result.Message = fmt.Sprintf("bucket %s reachable", bucket)
	return result
}
