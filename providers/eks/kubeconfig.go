// Package eks resolves cluster connection details from the EKS control
// plane. Manifest collaborators get their Kubernetes client configuration
// from here, so no kubeconfig file has to exist on disk.
package eks

import (
	"context"
	"encoding/base64"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// API is the slice of the EKS client used here.
type API interface {
	DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
}

// Client resolves EKS cluster credentials.
type Client struct {
	api    API
	region string
}

func New(ctx context.Context, region, profile string) (*Client, error) {
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
	return &Client{api: eks.NewFromConfig(cfg), region: region}, nil
}

// NewWithAPI injects an API implementation, primarily for tests.
func NewWithAPI(api API, region string) *Client {
	return &Client{api: api, region: region}
}

// Kubeconfig builds a client-go API config for the named cluster using the
// endpoint and CA from DescribeCluster and exec-based authentication
// through `aws eks get-token`.
func (c *Client) Kubeconfig(ctx context.Context, clusterName string) (*clientcmdapi.Config, error) {
	out, err := c.api.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: &clusterName})
	if err != nil {
		return nil, fmt.Errorf("failed to describe cluster %s: %w", clusterName, err)
	}
	cluster := out.Cluster
	if cluster == nil || cluster.Endpoint == nil || cluster.CertificateAuthority == nil || cluster.CertificateAuthority.Data == nil {
		return nil, fmt.Errorf("cluster %s has no endpoint yet", clusterName)
	}

	caData, err := base64.StdEncoding.DecodeString(*cluster.CertificateAuthority.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cluster CA: %w", err)
	}

	cfg := clientcmdapi.NewConfig()
	cfg.Clusters[clusterName] = &clientcmdapi.Cluster{
		Server:                   *cluster.Endpoint,
		CertificateAuthorityData: caData,
	}
	cfg.AuthInfos[clusterName] = &clientcmdapi.AuthInfo{
		Exec: &clientcmdapi.ExecConfig{
			APIVersion:      "client.authentication.k8s.io/v1beta1",
			Command:         "aws",
			Args:            []string{"eks", "get-token", "--cluster-name", clusterName, "--region", c.region},
			InteractiveMode: clientcmdapi.NeverExecInteractiveMode,
		},
	}
	cfg.Contexts[clusterName] = &clientcmdapi.Context{
		Cluster:  clusterName,
		AuthInfo: clusterName,
	}
	cfg.CurrentContext = clusterName
	return cfg, nil
}

// RESTConfig resolves a rest.Config for the named cluster.
func (c *Client) RESTConfig(ctx context.Context, clusterName string) (*rest.Config, error) {
	cfg, err := c.Kubeconfig(ctx, clusterName)
	if err != nil {
		return nil, err
	}
	restCfg, err := clientcmd.NewNonInteractiveClientConfig(*cfg, clusterName, &clientcmd.ConfigOverrides{}, nil).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build REST config for %s: %w", clusterName, err)
	}
	return restCfg, nil
}
