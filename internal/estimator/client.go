package estimator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/banshee-data/posebench/internal/geom"
)

// DeviceMetadataKey carries the compute device selection on every call.
const DeviceMetadataKey = "x-device"

// maxMsgSize bounds a single observation: a 640x480 colour PNG plus float
// depth and mask comes to a few MB.
const maxMsgSize = 64 * 1024 * 1024

// ClientConfig configures a gRPC estimator client.
type ClientConfig struct {
	Addr        string
	Device      string
	Timeout     time.Duration // per call; 0 means no limit beyond ctx
	DialOptions []grpc.DialOption
}

// Client talks to a remote estimator over gRPC.
type Client struct {
	conn    *grpc.ClientConn // owned connection, nil for NewClient
	cc      grpc.ClientConnInterface
	device  string
	timeout time.Duration
}

var _ Estimator = (*Client)(nil)

// Dial connects to the estimator at cfg.Addr. The connection is plaintext;
// estimators run next to the driver.
func Dial(cfg ClientConfig) (*Client, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
		),
	}
	opts = append(opts, cfg.DialOptions...)
	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial estimator %s: %w", cfg.Addr, err)
	}
	c := NewClient(conn, cfg)
	c.conn = conn
	return c, nil
}

// NewClient wraps an existing connection. Close does not close cc.
func NewClient(cc grpc.ClientConnInterface, cfg ClientConfig) *Client {
	return &Client{cc: cc, device: cfg.Device, timeout: cfg.Timeout}
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.device != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, DeviceMetadataKey, c.device)
	}
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// ResetObject uploads obj as the model for subsequent Register calls.
func (c *Client) ResetObject(ctx context.Context, obj *Object) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	resp := dynamicpb.NewMessage(schema.resetResp)
	if err := c.cc.Invoke(ctx, resetObjectMethod, encodeObject(obj), resp); err != nil {
		return fromStatus("reset object", err)
	}
	return nil
}

// Register estimates the pose of the loaded object in obs.
func (c *Client) Register(ctx context.Context, obs *Observation) (geom.Pose, error) {
	req, err := encodeObservation(obs)
	if err != nil {
		return geom.Pose{}, err
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	resp := dynamicpb.NewMessage(schema.registerResp)
	if err := c.cc.Invoke(ctx, registerMethod, req, resp); err != nil {
		return geom.Pose{}, fromStatus("register", err)
	}
	pose, err := decodePose(resp)
	if err != nil {
		return geom.Pose{}, fmt.Errorf("register: %w", err)
	}
	return pose, nil
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// fromStatus maps gRPC codes back to the package's sentinel errors.
func fromStatus(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch st.Code() {
	case codes.FailedPrecondition:
		return fmt.Errorf("%s: %w: %s", op, ErrNotReady, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%s: %w", op, context.Canceled)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", op, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s: %s: %s", op, st.Code(), st.Message())
}

// toStatus is the server-side inverse of fromStatus.
func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrNotReady):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}
