package periodrpc

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/model"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client reads periods from a remote PeriodService. It satisfies
// datasource.Fetcher.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a period server at target without transport security.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(RequestIDUnaryClientInterceptor()),
	}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, errors.Wrapf(err, "dial period server %s", target)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Periods asks the server for its period range.
func (c *Client) Periods(ctx context.Context) (model.Range, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, GetRangeMethod, &emptypb.Empty{}, out); err != nil {
		return model.EmptyRange, FromStatusError(err)
	}
	return rangeFromStruct(out)
}

// Fetch retrieves one period.
func (c *Client) Fetch(ctx context.Context, period int) (*model.Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, GetPeriodMethod, wrapperspb.Int64(int64(period)), out); err != nil {
		return nil, FromStatusError(err)
	}
	snap, err := snapshotFromStruct(out)
	if err != nil {
		return nil, errors.Wrapf(err, "period %d", period)
	}
	return snap, nil
}
