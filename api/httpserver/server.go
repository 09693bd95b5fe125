// Package httpserver serves health, metrics and a JSON mirror of the
// gRPC quoter API.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gigadex/api/grpcserver"
	"gigadex/domain/orderbook"
	"gigadex/domain/quote"
	"gigadex/infra/cache"
)

type Readiness interface {
	Ready() bool
}

// TopCache holds the top of book last published for a market, possibly
// by another replica.
type TopCache interface {
	Get(ctx context.Context, market string) (cache.Top, bool, error)
}

type Option func(*handler)

// WithTopCache makes /v1/top answer from c while the local snapshot is
// still incomplete. Such replies carry X-Top-Source: cache.
func WithTopCache(c TopCache, market string) Option {
	return func(h *handler) {
		h.cache = c
		h.market = market
	}
}

type handler struct {
	api    *grpcserver.Server
	ready  Readiness
	cache  TopCache
	market string
	log    *zap.Logger
}

// NewRouter mounts the routes. gatherer backs /metrics.
func NewRouter(api *grpcserver.Server, ready Readiness, gatherer prometheus.Gatherer, log *zap.Logger, opts ...Option) http.Handler {
	h := &handler{api: api, ready: ready, log: log.Named("http")}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logging)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", h.readyz)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/market", h.marketRoute)
		r.Get("/top", h.top)
		r.Get("/quote", h.quoteQuery)
		r.Post("/quote", h.quoteBody)
	})
	return r
}

func (h *handler) readyz(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Ready() {
		http.Error(w, "snapshot incomplete", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ready"))
}

func (h *handler) marketRoute(w http.ResponseWriter, r *http.Request) {
	reply, err := h.api.Market(r.Context(), &grpcserver.MarketRequest{})
	h.respond(w, reply, err)
}

func (h *handler) top(w http.ResponseWriter, r *http.Request) {
	reply, err := h.api.TopOfBook(r.Context(), &grpcserver.TopOfBookRequest{})
	if err != nil && h.cache != nil && status.Code(err) == codes.Unavailable {
		t, ok, cerr := h.cache.Get(r.Context(), h.market)
		if cerr != nil {
			h.log.Debug("cached top of book", zap.Error(cerr))
		}
		if ok {
			spread, _ := orderbook.Top{BestBid: t.BestBid, BestAsk: t.BestAsk}.Spread()
			w.Header().Set("X-Top-Source", "cache")
			reply, err = &grpcserver.TopOfBookReply{
				BestBid:    t.BestBid,
				BestAsk:    t.BestAsk,
				Spread:     spread,
				Generation: t.Generation,
				Slot:       t.Slot,
			}, nil
		}
	}
	h.respond(w, reply, err)
}

// quoteQuery reads ?input_mint=&output_mint= and either amount, in raw
// units, or ui_amount, a decimal in whole tokens.
func (h *handler) quoteQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := parseAmount(q.Get("amount"), q.Get("ui_amount"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reply, err := h.api.Quote(r.Context(), &grpcserver.QuoteRequest{
		InputMint:  q.Get("input_mint"),
		OutputMint: q.Get("output_mint"),
		InAmount:   amount,
	})
	h.respond(w, reply, err)
}

func (h *handler) quoteBody(w http.ResponseWriter, r *http.Request) {
	var req grpcserver.QuoteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		http.Error(w, "body: "+err.Error(), http.StatusBadRequest)
		return
	}
	reply, err := h.api.Quote(r.Context(), &req)
	h.respond(w, reply, err)
}

func parseAmount(raw, ui string) (uint64, error) {
	if raw != "" || ui == "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("amount: %w", err)
		}
		return v, nil
	}
	d, err := decimal.NewFromString(ui)
	if err != nil {
		return 0, fmt.Errorf("ui_amount: %w", err)
	}
	v, ok := quote.Raw(d)
	if !ok {
		return 0, fmt.Errorf("ui_amount %s out of range", ui)
	}
	return v, nil
}

func (h *handler) respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		st := status.Convert(err)
		http.Error(w, st.Message(), httpStatus(st.Code()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("write response", zap.Error(err))
	}
}

func httpStatus(c codes.Code) int {
	switch c {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
