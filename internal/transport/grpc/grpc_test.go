package grpcx

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestUnaryInterceptor_RecoversPanic(t *testing.T) {
	ic := UnaryServerInterceptor(discard)
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Svc/Boom"}

	_, err := ic(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
}

func TestUnaryInterceptor_AddsDeadline(t *testing.T) {
	ic := UnaryServerInterceptor(discard)
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Svc/Call"}

	var hasDeadline bool
	_, err := ic(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		_, hasDeadline = ctx.Deadline()
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !hasDeadline {
		t.Fatal("handler ran without deadline")
	}
}

func TestStreamInterceptor_RecoversPanic(t *testing.T) {
	ic := StreamServerInterceptor(discard)
	info := &grpc.StreamServerInfo{FullMethod: "/test.Svc/Stream"}

	err := ic(nil, nil, info, func(any, grpc.ServerStream) error {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
}

func TestServer_HealthLifecycle(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	s := NewServer("bufnet", discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		cctx, ccancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer ccancel()
		resp, err := client.Check(cctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v, want SERVING", got)
	}

	s.SetNotServing()
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v, want NOT_SERVING", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
