package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posebench/internal/estimator"
	"github.com/banshee-data/posebench/internal/geom"
	"github.com/banshee-data/posebench/internal/mesh"
)

func TestServeOracle(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, lis) }()

	client, err := estimator.Dial(estimator.ClientConfig{Addr: lis.Addr().String(), Device: "cpu", Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer client.Close()

	m := mesh.Box(r3.Vector{X: 0.1, Y: 0.1, Z: 0.1})
	require.NoError(t, client.ResetObject(context.Background(), estimator.NewObject(1, m, nil)))

	gt := geom.PoseFromRt([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, [3]float64{0.1, 0, 0.5})
	pose, err := client.Register(context.Background(), &estimator.Observation{ObjectID: 1, GTPose: &gt})
	require.NoError(t, err)
	assert.Equal(t, gt, pose)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
