package outputs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PublishAndResolve(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.Publish("net", "VpcId", "vpc-1"))
	require.NoError(t, store.Publish("net", "SubnetIds", "subnet-1,subnet-2"))

	v, err := store.Resolve("net", "VpcId")
	require.NoError(t, err)
	assert.Equal(t, "vpc-1", v)
	assert.Equal(t, 2, store.Len())
}

func TestStore_WriteOnce(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Publish("net", "VpcId", "vpc-1"))

	// A second publish fails even with an identical value.
	err := store.Publish("net", "VpcId", "vpc-1")
	var dup *DuplicatePublishError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "net", dup.UnitID)
	assert.Equal(t, "VpcId", dup.Name)

	// The original value survives.
	v, err := store.Resolve("net", "VpcId")
	require.NoError(t, err)
	assert.Equal(t, "vpc-1", v)
}

func TestStore_ResolveMissing(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Publish("net", "VpcId", "vpc-1"))

	_, err := store.Resolve("net", "ClusterArn")
	var missing *MissingOutputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "net", missing.UnitID)
	assert.Equal(t, "ClusterArn", missing.Name)

	_, err = store.Resolve("cluster", "VpcId")
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "cluster", missing.UnitID)
}

func TestStore_ByUnit(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Publish("net", "VpcId", "vpc-1"))
	require.NoError(t, store.Publish("net", "SubnetIds", "subnet-1"))
	require.NoError(t, store.Publish("cluster", "ClusterArn", "arn:cluster-1"))

	assert.Equal(t, map[string]string{
		"VpcId":     "vpc-1",
		"SubnetIds": "subnet-1",
	}, store.ByUnit("net"))
	assert.Empty(t, store.ByUnit("workload"))
}
