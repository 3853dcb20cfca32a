package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
	"github.com/alfredjeanlab/fleetreplay/internal/server"
	"github.com/alfredjeanlab/fleetreplay/internal/session"
)

// GRPCClient implements PlaybackClient using the gRPC transport.
type GRPCClient struct {
	conn *grpc.ClientConn
}

var _ PlaybackClient = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client.
// When token is non-empty it is sent as a Bearer token on every call. Extra
// dial options are appended after the defaults.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if token != "" {
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(bearerInterceptor(token)))
	}
	dialOpts = append(dialOpts, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn}, nil
}

func bearerInterceptor(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// --- Queries ---

func (c *GRPCClient) State(ctx context.Context) (*session.State, error) {
	return c.state(ctx, "GetState", &emptypb.Empty{})
}

func (c *GRPCClient) ListTrips(ctx context.Context, status string) ([]model.Trip, error) {
	var resp tripList
	if err := c.invoke(ctx, "ListTrips", wrapperspb.String(status), &resp); err != nil {
		return nil, err
	}
	return resp.Trips, nil
}

func (c *GRPCClient) GetTrip(ctx context.Context, id string) (*model.Trip, error) {
	var trip model.Trip
	if err := c.invoke(ctx, "GetTrip", wrapperspb.String(id), &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

func (c *GRPCClient) ListEvents(ctx context.Context, limit int) ([]model.Event, error) {
	var resp eventList
	if err := c.invoke(ctx, "ListEvents", wrapperspb.Int32(int32(limit)), &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *GRPCClient) Metrics(ctx context.Context) (*model.FleetMetrics, error) {
	var m model.FleetMetrics
	if err := c.invoke(ctx, "GetMetrics", &emptypb.Empty{}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// --- Playback controls ---

func (c *GRPCClient) Play(ctx context.Context) (*session.State, error) {
	return c.state(ctx, "Play", &emptypb.Empty{})
}

func (c *GRPCClient) Pause(ctx context.Context) (*session.State, error) {
	return c.state(ctx, "Pause", &emptypb.Empty{})
}

func (c *GRPCClient) Toggle(ctx context.Context) (*session.State, error) {
	return c.state(ctx, "Toggle", &emptypb.Empty{})
}

func (c *GRPCClient) Reset(ctx context.Context) (*session.State, error) {
	return c.state(ctx, "Reset", &emptypb.Empty{})
}

func (c *GRPCClient) SetSpeed(ctx context.Context, factor float64) (*session.State, error) {
	return c.state(ctx, "SetSpeed", wrapperspb.Double(factor))
}

// --- Health ---

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	out := &wrapperspb.StringValue{}
	if err := c.conn.Invoke(ctx, methodName("Health"), &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// --- internal helpers ---

func methodName(rpc string) string {
	return "/" + server.PlaybackServiceName + "/" + rpc
}

func (c *GRPCClient) state(ctx context.Context, rpc string, in proto.Message) (*session.State, error) {
	var st session.State
	if err := c.invoke(ctx, rpc, in, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// invoke calls rpc and decodes its Struct result into out through JSON, so
// the same tags serve both transports.
func (c *GRPCClient) invoke(ctx context.Context, rpc string, in proto.Message, out any) error {
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, methodName(rpc), in, resp); err != nil {
		return err
	}
	return decodeStruct(resp, out)
}

func decodeStruct(s *structpb.Struct, out any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
