package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/core/service"
)

// JSONCodecName is the content subtype clients must request
// (grpc.CallContentSubtype) to talk to the back-office service.
const JSONCodecName = "json"

const backOfficeService = "storefront.v1.BackOffice"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type ListOrdersRequest struct {
	Status string `json:"status,omitempty"`
}

type ListOrdersResponse struct {
	Orders []OrderDTO `json:"orders"`
}

type UpdateOrderStatusRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type BackOfficeServer interface {
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error)
	UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderDTO, error)
}

var BackOfficeServiceDesc = grpc.ServiceDesc{
	ServiceName: backOfficeService,
	HandlerType: (*BackOfficeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListOrders", Handler: listOrdersHandler},
		{MethodName: "UpdateOrderStatus", Handler: updateOrderStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/backoffice.json",
}

func listOrdersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListOrdersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BackOfficeServer).ListOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + backOfficeService + "/ListOrders"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(BackOfficeServer).ListOrders(ctx, req.(*ListOrdersRequest))
	})
}

func updateOrderStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpdateOrderStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BackOfficeServer).UpdateOrderStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + backOfficeService + "/UpdateOrderStatus"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(BackOfficeServer).UpdateOrderStatus(ctx, req.(*UpdateOrderStatusRequest))
	})
}

type GRPCHandler struct {
	backOffice *service.BackOfficeService
	log        *zap.Logger
}

func NewGRPCHandler(backOffice *service.BackOfficeService, log *zap.Logger) *GRPCHandler {
	return &GRPCHandler{backOffice: backOffice, log: log}
}

func (h *GRPCHandler) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	var want domain.OrderStatus
	if req.Status != "" {
		s, err := domain.ParseOrderStatus(req.Status)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		want = s
	}

	orders, err := h.backOffice.ListOrders(ctx)
	if err != nil {
		return nil, h.statusError(err)
	}

	resp := &ListOrdersResponse{Orders: make([]OrderDTO, 0, len(orders))}
	for _, o := range orders {
		if want == "" || o.Status == want {
			resp.Orders = append(resp.Orders, toOrderDTO(o))
		}
	}
	return resp, nil
}

func (h *GRPCHandler) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderDTO, error) {
	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	order, err := h.backOffice.UpdateOrderStatus(ctx, req.OrderID, next)
	if err != nil {
		return nil, h.statusError(err)
	}
	dto := toOrderDTO(order)
	return &dto, nil
}

func (h *GRPCHandler) statusError(err error) error {
	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrIllegalTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		h.log.Error("back-office rpc failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

const healthServicePrefix = "/grpc.health.v1.Health/"

// TokenInterceptor requires the bearer token in the authorization metadata
// for everything but health checks. With an empty token no call but a
// health check gets through.
func TokenInterceptor(token string, log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		if !strings.HasPrefix(info.FullMethod, healthServicePrefix) && !hasToken(ctx, token) {
			log.Warn("rejected back-office call", zap.String("method", info.FullMethod))
			return nil, status.Error(codes.Unauthenticated, "missing or invalid token")
		}

		resp, err := handler(ctx, req)
		log.Debug("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}

func hasToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return false
	}
	for _, v := range md.Get("authorization") {
		if subtle.ConstantTimeCompare([]byte(v), []byte("Bearer "+token)) == 1 {
			return true
		}
	}
	return false
}
