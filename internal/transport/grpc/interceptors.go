package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultDeadline = 10 * time.Second

// UnaryServerInterceptor recovers panics, logs every call and puts a deadline
// on calls that arrive without one.
func UnaryServerInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultDeadline)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc.unary panic",
					slog.String("method", info.FullMethod),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
			log.Debug("grpc.unary",
				slog.String("method", info.FullMethod),
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("code", status.Code(err).String()))
		}()

		return handler(ctx, req)
	}
}

func StreamServerInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc.stream panic",
					slog.String("method", info.FullMethod),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
			log.Debug("grpc.stream",
				slog.String("method", info.FullMethod),
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("code", status.Code(err).String()))
		}()

		return handler(srv, ss)
	}
}
