package periodrpc

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/internal/logging"
	"github.com/signalsfoundry/flowview/internal/observability"
	"github.com/signalsfoundry/flowview/model"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// PeriodStore is the storage the server reads from. kb.Store satisfies it.
type PeriodStore interface {
	Range() model.Range
	Get(period int) (*model.Snapshot, error)
}

// Server implements PeriodServiceServer over a PeriodStore.
type Server struct {
	store PeriodStore
	log   logging.Logger
}

var _ PeriodServiceServer = (*Server)(nil)

// NewServer returns a Server reading from store.
func NewServer(store PeriodStore, log logging.Logger) *Server {
	return &Server{store: store, log: logging.OrNoop(log)}
}

// GetRange returns the servable periods.
func (s *Server) GetRange(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	rng := s.store.Range()
	logging.FromContext(ctx, s.log).Debug(ctx, "range requested", logging.String("range", rng.String()))
	return rangeToStruct(rng), nil
}

// GetPeriod returns the snapshot document for the requested period.
func (s *Server) GetPeriod(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	period := int(req.GetValue())
	ctx, span := observability.StartSpan(ctx, "periodrpc.GetPeriod", "period", strconv.Itoa(period))
	defer span.End()
	log := logging.FromContext(ctx, s.log)

	snap, err := s.store.Get(period)
	if err != nil {
		span.RecordError(err)
		log.Debug(ctx, "period unavailable", logging.Period(period), logging.Err(err))
		return nil, ToStatusError(err)
	}
	st, err := snapshotToStruct(snap)
	if err != nil {
		span.RecordError(err)
		log.Error(ctx, "encode period failed", logging.Period(period), logging.Err(err))
		return nil, ToStatusError(err)
	}
	log.Debug(ctx, "period served", logging.Period(period), logging.Int("elements", snap.Len()))
	return st, nil
}

// NewGRPCServer builds a grpc.Server with the standard interceptor chain:
// session id and logger, span enrichment, then RPC metrics. collector may be
// nil.
func NewGRPCServer(log logging.Logger, collector *observability.Collector, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestIDUnaryServerInterceptor(log),
			TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	}
	return grpc.NewServer(append(base, opts...)...)
}

func rangeToStruct(r model.Range) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"first": structpb.NewNumberValue(float64(r.First)),
		"last":  structpb.NewNumberValue(float64(r.Last)),
	}}
}

func rangeFromStruct(st *structpb.Struct) (model.Range, error) {
	first, ok := st.GetFields()["first"]
	if !ok {
		return model.EmptyRange, errors.New("range response missing first")
	}
	last, ok := st.GetFields()["last"]
	if !ok {
		return model.EmptyRange, errors.New("range response missing last")
	}
	return model.Range{First: int(first.GetNumberValue()), Last: int(last.GetNumberValue())}, nil
}

func snapshotToStruct(s *model.Snapshot) (*structpb.Struct, error) {
	data, err := model.EncodeSnapshot(s)
	if err != nil {
		return nil, err
	}
	st := &structpb.Struct{}
	if err := st.UnmarshalJSON(data); err != nil {
		return nil, errors.Wrap(err, "snapshot to struct")
	}
	return st, nil
}

func snapshotFromStruct(st *structpb.Struct) (*model.Snapshot, error) {
	data, err := st.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(err, "struct to snapshot")
	}
	return model.DecodeSnapshot(data)
}
