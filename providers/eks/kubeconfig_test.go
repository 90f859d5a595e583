package eks

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEKS struct {
	cluster *types.Cluster
	err     error
}

func (f *fakeEKS) DescribeCluster(_ context.Context, params *eks.DescribeClusterInput, _ ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &eks.DescribeClusterOutput{Cluster: f.cluster}, nil
}

const testCA = "test-certificate-authority"

func describedCluster() *types.Cluster {
	return &types.Cluster{
		Name:     aws.String("prod-eks"),
		Endpoint: aws.String("https://ABCDEF.gr7.eu-west-1.eks.amazonaws.com"),
		CertificateAuthority: &types.Certificate{
			Data: aws.String(base64.StdEncoding.EncodeToString([]byte(testCA))),
		},
	}
}

func TestKubeconfig(t *testing.T) {
	c := NewWithAPI(&fakeEKS{cluster: describedCluster()}, "eu-west-1")

	cfg, err := c.Kubeconfig(context.Background(), "prod-eks")
	require.NoError(t, err)

	assert.Equal(t, "prod-eks", cfg.CurrentContext)
	cluster := cfg.Clusters["prod-eks"]
	require.NotNil(t, cluster)
	assert.Equal(t, "https://ABCDEF.gr7.eu-west-1.eks.amazonaws.com", cluster.Server)
	assert.Equal(t, []byte(testCA), cluster.CertificateAuthorityData)

	auth := cfg.AuthInfos["prod-eks"]
	require.NotNil(t, auth)
	require.NotNil(t, auth.Exec)
	assert.Equal(t, "aws", auth.Exec.Command)
	assert.Equal(t, []string{"eks", "get-token", "--cluster-name", "prod-eks", "--region", "eu-west-1"}, auth.Exec.Args)
}

func TestKubeconfig_DescribeError(t *testing.T) {
	c := NewWithAPI(&fakeEKS{err: errors.New("access denied")}, "eu-west-1")

	_, err := c.Kubeconfig(context.Background(), "prod-eks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to describe cluster prod-eks")
}

func TestKubeconfig_ClusterNotReadyYet(t *testing.T) {
	// A cluster mid-creation can be described without an endpoint.
	c := NewWithAPI(&fakeEKS{cluster: &types.Cluster{Name: aws.String("prod-eks")}}, "eu-west-1")

	_, err := c.Kubeconfig(context.Background(), "prod-eks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no endpoint yet")
}

func TestKubeconfig_BadCertificateData(t *testing.T) {
	cluster := describedCluster()
	cluster.CertificateAuthority.Data = aws.String("not base64 !!!")
	c := NewWithAPI(&fakeEKS{cluster: cluster}, "eu-west-1")

	_, err := c.Kubeconfig(context.Background(), "prod-eks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode cluster CA")
}

func TestRESTConfig(t *testing.T) {
	c := NewWithAPI(&fakeEKS{cluster: describedCluster()}, "eu-west-1")

	restCfg, err := c.RESTConfig(context.Background(), "prod-eks")
	require.NoError(t, err)
	assert.Equal(t, "https://ABCDEF.gr7.eu-west-1.eks.amazonaws.com", restCfg.Host)
	assert.Equal(t, []byte(testCA), restCfg.TLSClientConfig.CAData)
	require.NotNil(t, restCfg.ExecProvider)
	assert.Equal(t, "aws", restCfg.ExecProvider.Command)
}

func TestKubeconfig_NilCluster(t *testing.T) {
	c := NewWithAPI(&fakeEKS{}, "eu-west-1")

	_, err := c.Kubeconfig(context.Background(), "prod-eks")
	require.Error(t, err)
}
