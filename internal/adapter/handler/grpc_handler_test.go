package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/core/service"
)

const testToken = "back-office-token"

func startBackOffice(t *testing.T, db *memDB) *grpc.ClientConn {
	t.Helper()
	log := zap.NewNop()

	backOffice := service.NewBackOfficeService(service.BackOfficeDeps{
		Orders:     db,
		Products:   db,
		Promotions: db,
		Profiles:   db,
	}, log)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(TokenInterceptor(testToken, log)))
	srv.RegisterService(&BackOfficeServiceDesc, NewGRPCHandler(backOffice, log))
	grpc_health_v1.RegisterHealthServer(srv, health.NewServer())
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
	})
	return conn
}

func seedOrders(db *memDB) {
	now := time.Now()
	db.orders["o-1"] = domain.Order{
		ID: "o-1", Reference: "LB-1001", CustomerName: "Thandi",
		Status: domain.OrderStatusPending, PaymentMethod: domain.PaymentMethodEFT,
		Total: decimal.NewFromInt(335), CreatedAt: now.Add(-time.Hour),
	}
	db.orders["o-2"] = domain.Order{
		ID: "o-2", Reference: "LB-1002", CustomerName: "Sipho",
		Status: domain.OrderStatusDelivered, PaymentMethod: domain.PaymentMethodEFT,
		Total: decimal.NewFromInt(485), CreatedAt: now,
	}
}

func authed(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+testToken)
}

func invoke(ctx context.Context, conn *grpc.ClientConn, method string, in, out any) error {
	return conn.Invoke(ctx, "/"+backOfficeService+"/"+method, in, out, grpc.CallContentSubtype(JSONCodecName))
}

func TestGRPC_ListOrders(t *testing.T) {
	db := newMemDB()
	seedOrders(db)
	conn := startBackOffice(t, db)

	var resp ListOrdersResponse
	require.NoError(t, invoke(authed(t), conn, "ListOrders", &ListOrdersRequest{}, &resp))
	require.Len(t, resp.Orders, 2)
	assert.Equal(t, "LB-1002", resp.Orders[0].Reference)

	require.NoError(t, invoke(authed(t), conn, "ListOrders", &ListOrdersRequest{Status: "Pending"}, &resp))
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, "o-1", resp.Orders[0].ID)
	assert.Equal(t, "335", resp.Orders[0].Total.String())

	err := invoke(authed(t), conn, "ListOrders", &ListOrdersRequest{Status: "lost"}, &resp)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_UpdateOrderStatus(t *testing.T) {
	db := newMemDB()
	seedOrders(db)
	conn := startBackOffice(t, db)

	var order OrderDTO
	require.NoError(t, invoke(authed(t), conn, "UpdateOrderStatus", &UpdateOrderStatusRequest{OrderID: "o-1", Status: "shipped"}, &order))
	assert.Equal(t, "shipped", order.Status)
	assert.Equal(t, domain.OrderStatusShipped, db.orders["o-1"].Status)

	tests := []struct {
		name string
		req  *UpdateOrderStatusRequest
		want codes.Code
	}{
		{"delivered is final", &UpdateOrderStatusRequest{OrderID: "o-2", Status: "pending"}, codes.FailedPrecondition},
		{"unknown order", &UpdateOrderStatusRequest{OrderID: "o-9", Status: "shipped"}, codes.NotFound},
		{"unknown status", &UpdateOrderStatusRequest{OrderID: "o-1", Status: "returned"}, codes.InvalidArgument},
		{"missing id", &UpdateOrderStatusRequest{Status: "shipped"}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := invoke(authed(t), conn, "UpdateOrderStatus", tt.req, &order)
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestGRPC_TokenRequired(t *testing.T) {
	conn := startBackOffice(t, newMemDB())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var resp ListOrdersResponse
	err := invoke(ctx, conn, "ListOrders", &ListOrdersRequest{}, &resp)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	wrong := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer nope")
	err = invoke(wrong, conn, "ListOrders", &ListOrdersRequest{}, &resp)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	// health checks stay open for probes
	hc, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, hc.Status)
}

func TestTokenInterceptor_EmptyTokenRejectsCalls(t *testing.T) {
	interceptor := TokenInterceptor("", zap.NewNop())
	called := false
	next := func(ctx context.Context, req any) (any, error) {
		called = true
		return "ok", nil
	}

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"no metadata", context.Background()},
		{"empty bearer", metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &grpc.UnaryServerInfo{FullMethod: "/" + backOfficeService + "/UpdateOrderStatus"}
			_, err := interceptor(tt.ctx, nil, info, next)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
		})
	}
	assert.False(t, called)

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	resp, err := interceptor(context.Background(), nil, info, next)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}
