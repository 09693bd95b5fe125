// Package grpcserver exposes a quoter over gRPC. Messages are JSON
// encoded; clients select the codec with grpc.CallContentSubtype("json").
package grpcserver

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gigadex/domain/layout"
	"gigadex/domain/quote"
	"gigadex/service"
	"gigadex/snapshot"
)

const ServiceName = "gigadex.v1.Quoter"

type Quoter interface {
	Key() solana.PublicKey
	Label() string
	ProgramID() solana.PublicKey
	ReserveMints() []solana.PublicKey
	AccountsToUpdate() []solana.PublicKey
	Ready() bool
	Quote(quote.Request) (quote.Response, error)
	TopOfBook() (service.TopOfBook, error)
}

// Server adapts a Quoter to gRPC.
type Server struct {
	q Quoter
}

func NewServer(q Quoter) *Server {
	return &Server{q: q}
}

// Register adds the quoter service to gs.
func Register(gs *grpc.Server, s *Server) {
	gs.RegisterService(&serviceDesc, s)
}

// NewGRPCServer returns a server that logs every call.
func NewGRPCServer(log *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(logging(log.Named("grpc"))))
	return grpc.NewServer(opts...)
}

// -------------------- Queries --------------------

func (s *Server) Quote(_ context.Context, req *QuoteRequest) (*QuoteReply, error) {
	in, err := solana.PublicKeyFromBase58(req.InputMint)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "input_mint: %v", err)
	}
	var out solana.PublicKey
	if req.OutputMint != "" {
		if out, err = solana.PublicKeyFromBase58(req.OutputMint); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "output_mint: %v", err)
		}
	}

	resp, err := s.q.Quote(quote.Request{InputMint: in, OutputMint: out, InAmount: req.InAmount})
	if err != nil {
		return nil, toStatus(err)
	}
	return &QuoteReply{
		NotEnoughLiquidity: resp.NotEnoughLiquidity,
		InAmount:           resp.InAmount,
		OutAmount:          resp.OutAmount,
		FeeAmount:          resp.FeeAmount,
		FeeMint:            resp.FeeMint.String(),
		MinInAmount:        resp.MinInAmount,
		MinOutAmount:       resp.MinOutAmount,
		OutAmountUI:        quote.FormatUnits(resp.OutAmount),
	}, nil
}

func (s *Server) TopOfBook(_ context.Context, _ *TopOfBookRequest) (*TopOfBookReply, error) {
	top, err := s.q.TopOfBook()
	if err != nil {
		return nil, toStatus(err)
	}
	spread, _ := top.Spread()
	return &TopOfBookReply{
		BestBid:    top.BestBid,
		BestAsk:    top.BestAsk,
		Spread:     spread,
		Generation: top.Generation,
		Slot:       top.Slot,
	}, nil
}

func (s *Server) Market(_ context.Context, _ *MarketRequest) (*MarketReply, error) {
	return &MarketReply{
		Key:              s.q.Key().String(),
		Label:            s.q.Label(),
		ProgramID:        s.q.ProgramID().String(),
		ReserveMints:     keyStrings(s.q.ReserveMints()),
		AccountsToUpdate: keyStrings(s.q.AccountsToUpdate()),
		Ready:            s.q.Ready(),
	}, nil
}

// -------------------- Converters --------------------

func toStatus(err error) error {
	switch {
	case errors.Is(err, quote.ErrUnknownMint):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, snapshot.ErrNotReady):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, layout.ErrLayout),
		errors.Is(err, quote.ErrArithmeticOverflow),
		errors.Is(err, quote.ErrInvalidFeeConfiguration):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func keyStrings(keys []solana.PublicKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func logging(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			log.Debug("call failed", zap.String("method", info.FullMethod), zap.Stringer("code", status.Code(err)), zap.Error(err))
		}
		return resp, err
	}
}

// -------------------- Descriptor --------------------

type quoterServer interface {
	Quote(context.Context, *QuoteRequest) (*QuoteReply, error)
	TopOfBook(context.Context, *TopOfBookRequest) (*TopOfBookReply, error)
	Market(context.Context, *MarketRequest) (*MarketReply, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*quoterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Quote", Handler: unary("Quote", func(s quoterServer, ctx context.Context, r *QuoteRequest) (any, error) {
			return s.Quote(ctx, r)
		})},
		{MethodName: "TopOfBook", Handler: unary("TopOfBook", func(s quoterServer, ctx context.Context, r *TopOfBookRequest) (any, error) {
			return s.TopOfBook(ctx, r)
		})},
		{MethodName: "Market", Handler: unary("Market", func(s quoterServer, ctx context.Context, r *MarketRequest) (any, error) {
			return s.Market(ctx, r)
		})},
	},
	Metadata: "gigadex/v1/quoter",
}

func unary[Req any](method string, call func(quoterServer, context.Context, *Req) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(quoterServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		})
	}
}
