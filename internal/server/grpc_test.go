package server

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// startGRPC serves ps over an in-memory listener and returns a client conn.
func startGRPC(t *testing.T, ps *PlaybackServer, token string) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(ps, token)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func invoke(t *testing.T, conn *grpc.ClientConn, method string, in proto.Message) (*structpb.Struct, error) {
	t.Helper()
	out := &structpb.Struct{}
	err := conn.Invoke(context.Background(), "/"+PlaybackServiceName+"/"+method, in, out)
	return out, err
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if status.Code(err) != code {
		t.Fatalf("expected code %v, got %v (%v)", code, status.Code(err), err)
	}
}

func TestGRPC_GetStateAndControls(t *testing.T) {
	ps, m, _ := newTestServer(t)
	conn := startGRPC(t, ps, "")

	st, err := invoke(t, conn, "GetState", &emptypb.Empty{})
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if got := st.GetFields()["cursor_index"].GetNumberValue(); got != 2 {
		t.Fatalf("cursor_index = %v", got)
	}
	if _, ok := st.GetFields()["applied_events"]; ok {
		t.Fatal("state should omit applied events")
	}

	st, err = invoke(t, conn, "Play", &emptypb.Empty{})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !st.GetFields()["is_playing"].GetBoolValue() || !m.Playing() {
		t.Fatal("expected playing after Play")
	}

	st, err = invoke(t, conn, "SetSpeed", wrapperspb.Double(4))
	if err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if st.GetFields()["speed"].GetNumberValue() != 4 {
		t.Fatalf("speed = %v", st.GetFields()["speed"])
	}

	if _, err := invoke(t, conn, "Toggle", &emptypb.Empty{}); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if m.Playing() {
		t.Fatal("expected paused after Toggle")
	}

	st, err = invoke(t, conn, "Reset", &emptypb.Empty{})
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if st.GetFields()["speed"].GetNumberValue() != 1 {
		t.Fatalf("speed after reset = %v", st.GetFields()["speed"])
	}
}

func TestGRPC_Queries(t *testing.T) {
	ps, _, _ := newTestServer(t)
	conn := startGRPC(t, ps, "")

	trips, err := invoke(t, conn, "ListTrips", wrapperspb.String("in_progress"))
	if err != nil {
		t.Fatalf("ListTrips: %v", err)
	}
	if trips.GetFields()["total"].GetNumberValue() != 2 {
		t.Fatalf("trips = %v", trips)
	}

	trip, err := invoke(t, conn, "GetTrip", wrapperspb.String("A"))
	if err != nil {
		t.Fatalf("GetTrip: %v", err)
	}
	if trip.GetFields()["id"].GetStringValue() != "A" {
		t.Fatalf("trip = %v", trip)
	}

	evts, err := invoke(t, conn, "ListEvents", wrapperspb.Int32(1))
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if n := len(evts.GetFields()["events"].GetListValue().GetValues()); n != 1 {
		t.Fatalf("events = %d", n)
	}

	metrics, err := invoke(t, conn, "GetMetrics", &emptypb.Empty{})
	if err != nil {
		t.Fatalf("GetMetrics: %v", err)
	}
	if metrics.GetFields()["active"].GetNumberValue() != 2 {
		t.Fatalf("metrics = %v", metrics)
	}
}

func TestGRPC_ErrorCodes(t *testing.T) {
	ps, _, _ := newTestServer(t)
	conn := startGRPC(t, ps, "")

	for _, tc := range []struct {
		name   string
		method string
		in     proto.Message
		code   codes.Code
	}{
		{"GetTrip/NotFound", "GetTrip", wrapperspb.String("Z"), codes.NotFound},
		{"GetTrip/MissingID", "GetTrip", wrapperspb.String(""), codes.InvalidArgument},
		{"ListTrips/BadStatus", "ListTrips", wrapperspb.String("parked"), codes.InvalidArgument},
		{"ListEvents/Negative", "ListEvents", wrapperspb.Int32(-1), codes.InvalidArgument},
		{"SetSpeed/Zero", "SetSpeed", wrapperspb.Double(0), codes.InvalidArgument},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := invoke(t, conn, tc.method, tc.in)
			requireCode(t, err, tc.code)
		})
	}
}

func TestGRPC_NotStarted(t *testing.T) {
	hub := NewHub(quietLogger())
	ps := NewPlaybackServer(newSessionManager(t, hub), hub, quietLogger())
	conn := startGRPC(t, ps, "")

	_, err := invoke(t, conn, "GetState", &emptypb.Empty{})
	requireCode(t, err, codes.FailedPrecondition)
}

func TestGRPC_AuthAndHealth(t *testing.T) {
	ps, _, _ := newTestServer(t)
	conn := startGRPC(t, ps, "secret")

	_, err := invoke(t, conn, "GetState", &emptypb.Empty{})
	requireCode(t, err, codes.Unauthenticated)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer secret")
	if err := conn.Invoke(ctx, "/"+PlaybackServiceName+"/GetState", &emptypb.Empty{}, &structpb.Struct{}); err != nil {
		t.Fatalf("GetState with token: %v", err)
	}

	out := &wrapperspb.StringValue{}
	if err := conn.Invoke(context.Background(), playbackHealthMethod, &emptypb.Empty{}, out); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if out.GetValue() != "ok" {
		t.Fatalf("health = %q", out.GetValue())
	}

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: PlaybackServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}
