package server

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// PlaybackServiceName is the fully-qualified gRPC service name. Messages are
// protobuf well-known types; structured results travel as a Struct holding
// the same JSON document the HTTP API returns.
const PlaybackServiceName = "fleetreplay.v1.PlaybackService"

const playbackHealthMethod = "/" + PlaybackServiceName + "/Health"

// PlaybackServiceServer is the server API for the playback service.
type PlaybackServiceServer interface {
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListTrips(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetTrip(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListEvents(context.Context, *wrapperspb.Int32Value) (*structpb.Struct, error)
	GetMetrics(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Play(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Pause(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Toggle(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Reset(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetSpeed(context.Context, *wrapperspb.DoubleValue) (*structpb.Struct, error)
	Health(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

var _ PlaybackServiceServer = (*PlaybackServer)(nil)

// PlaybackServiceDesc describes the playback service for grpc.Server.
var PlaybackServiceDesc = grpc.ServiceDesc{
	ServiceName: PlaybackServiceName,
	HandlerType: (*PlaybackServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetState", PlaybackServiceServer.GetState),
		unary("ListTrips", PlaybackServiceServer.ListTrips),
		unary("GetTrip", PlaybackServiceServer.GetTrip),
		unary("ListEvents", PlaybackServiceServer.ListEvents),
		unary("GetMetrics", PlaybackServiceServer.GetMetrics),
		unary("Play", PlaybackServiceServer.Play),
		unary("Pause", PlaybackServiceServer.Pause),
		unary("Toggle", PlaybackServiceServer.Toggle),
		unary("Reset", PlaybackServiceServer.Reset),
		unary("SetSpeed", PlaybackServiceServer.SetSpeed),
		unary("Health", PlaybackServiceServer.Health),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fleetreplay/v1/playback.proto",
}

// unary builds the method descriptor for one RPC, decoding the request into
// a fresh Req and running it through the server's interceptor chain.
func unary[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](method string, call func(PlaybackServiceServer, context.Context, PReq) (Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + PlaybackServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PlaybackServiceServer), ctx, req.(PReq))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
		},
	}
}

// NewGRPCServer creates a gRPC server with the standard interceptor chain and
// registers the playback service, the gRPC health service and reflection.
func NewGRPCServer(ps *PlaybackServer, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(ps.logger),
			LoggingInterceptor(ps.logger),
			AuthInterceptor(authToken),
		),
	)

	srv.RegisterService(&PlaybackServiceDesc, ps)

	hs := health.NewServer()
	hs.SetServingStatus(PlaybackServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)
	return srv
}

// GetState returns the session state without its event list.
func (s *PlaybackServer) GetState(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.state()
	return respond(st, err)
}

// ListTrips returns the trips, optionally filtered by status.
func (s *PlaybackServer) ListTrips(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	trips, err := s.trips(req.GetValue())
	if err != nil {
		return nil, grpcError(err)
	}
	return respond(map[string]any{"trips": trips, "total": len(trips)}, nil)
}

// GetTrip returns one trip by id.
func (s *PlaybackServer) GetTrip(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	t, err := s.trip(req.GetValue())
	return respond(t, err)
}

// ListEvents returns the most recently applied events, oldest first. A zero
// limit returns them all.
func (s *PlaybackServer) ListEvents(_ context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	evts, err := s.events(int(req.GetValue()))
	if err != nil {
		return nil, grpcError(err)
	}
	return respond(map[string]any{"events": evts, "total": len(evts)}, nil)
}

// GetMetrics returns the fleet summary.
func (s *PlaybackServer) GetMetrics(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	m, err := s.session.Metrics()
	return respond(m, err)
}

func (s *PlaybackServer) Play(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return respond(s.control(ctx, s.session.Play))
}

func (s *PlaybackServer) Pause(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return respond(s.control(ctx, s.session.Pause))
}

func (s *PlaybackServer) Toggle(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return respond(s.control(ctx, s.session.Toggle))
}

func (s *PlaybackServer) Reset(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return respond(s.control(ctx, s.session.Reset))
}

// SetSpeed changes the playback multiplier.
func (s *PlaybackServer) SetSpeed(ctx context.Context, req *wrapperspb.DoubleValue) (*structpb.Struct, error) {
	if req == nil {
		return nil, grpcError(inputError("speed is required"))
	}
	return respond(s.setSpeed(ctx, req.GetValue()))
}

// Health returns the service health status.
func (s *PlaybackServer) Health(_ context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("ok"), nil
}

// respond converts a result to a Struct, mapping err to a gRPC status.
func respond[T any](v T, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, grpcError(err)
	}
	out, err := toStruct(v)
	if err != nil {
		return nil, grpcError(err)
	}
	return out, nil
}

// toStruct encodes v with its JSON tags and decodes the result into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert response: %w", err)
	}
	return out, nil
}
