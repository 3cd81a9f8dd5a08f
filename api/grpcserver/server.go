package grpcserver

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"reclaim/infra/logging"
	"reclaim/service"
)

// Reclaimer is what the admin service exposes.
type Reclaimer interface {
	Collect(ctx context.Context) (service.CycleReport, error)
	Stats() service.Stats
}

// Server adapts a Reclaimer to gRPC.
type Server struct {
	svc Reclaimer
}

func NewServer(svc Reclaimer) *Server {
	return &Server{svc: svc}
}

// Register attaches the admin service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&AdminServiceDesc, s)
}

// -------------------- Commands --------------------

func (s *Server) Collect(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	rep, err := s.svc.Collect(ctx)
	if err != nil {
		code := codes.Internal
		if errors.Is(err, service.ErrScan) {
			code = codes.Unavailable
		}
		return nil, status.Error(code, err.Error())
	}
	return reportStruct(rep)
}

// -------------------- Queries --------------------

func (s *Server) Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	st := s.svc.Stats()
	return structpb.NewStruct(map[string]any{
		"instance":    st.Instance,
		"backend":     st.Backend,
		"cycles":      float64(st.Cycles),
		"retired":     float64(st.Retired),
		"duplicates":  float64(st.Duplicates),
		"freed":       float64(st.Freed),
		"misses":      float64(st.Misses),
		"forced":      float64(st.Forced),
		"scan_errors": float64(st.ScanErrors),
		"carried":     st.Carried,
		"threads":     st.Threads,
		"pending":     st.Pending,
	})
}

// -------------------- Converters --------------------

func reportStruct(rep service.CycleReport) (*structpb.Struct, error) {
	stalled := make([]any, len(rep.Stalled))
	for i, id := range rep.Stalled {
		stalled[i] = float64(id)
	}
	return structpb.NewStruct(map[string]any{
		"cycle":      float64(rep.Cycle),
		"instance":   rep.Instance,
		"retired":    rep.Retired,
		"duplicates": rep.Duplicates,
		"live":       rep.Live,
		"misses":     rep.Misses,
		"freed":      rep.Freed,
		"carried":    rep.Carried,
		"stalled":    stalled,
		"duration":   rep.Duration.String(),
	})
}

// -------------------- Interceptors --------------------

// UnaryLogger logs every admin call with its outcome and latency.
func UnaryLogger(log *logging.Logger) grpc.UnaryServerInterceptor {
	log = log.Component("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.InfoContext(ctx, "call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"took", time.Since(start),
		)
		return resp, err
	}
}
