package client

import (
	"chronolog/comm"
	"chronolog/util"
	"chronolog/util/logging"
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const kDefaultStoreAttempts = 5

// Client talks to a chronolog server.
type Client struct {
	conn          *grpc.ClientConn
	rpcClient     comm.JournalServiceClient
	storeAttempts int
	logger        *logging.PrefixLogger
}

type NodeAddress struct {
	Host string
	Port int
}

func (addr NodeAddress) String() string {
	return fmt.Sprintf("%s:%d", addr.Host, addr.Port)
}

// NewClient dials the server at the given address.
func NewClient(addr NodeAddress) (*Client, error) {
	cc, err := grpc.Dial(addr.String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("unable to establish connection to server: %s: %w", addr.String(), err)
	}
	client := NewClientWithConn(cc)
	client.conn = cc
	client.logger = logging.NewPrefixLogger("client:" + addr.String())
	return client, nil
}

// NewClientWithConn builds a client on an existing connection. Closing the client does not close cc.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{
		rpcClient:     comm.NewJournalServiceClient(cc),
		storeAttempts: kDefaultStoreAttempts,
		logger:        logging.NewPrefixLogger("client"),
	}
}

// Close closes the connection to the server if the client owns it.
func (client *Client) Close() error {
	if client.conn == nil {
		return nil
	}
	return client.conn.Close()
}

// Store stores the payload. Requests that fail because the server is unavailable are retried.
func (client *Client) Store(ctx context.Context, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	req := &wrapperspb.BytesValue{Value: payload}
	var lastErr error
	err := util.DoRetryWithMultiAttempts(func(attempt int) (bool, error) {
		_, lastErr = client.rpcClient.Store(ctx, req)
		if lastErr == nil {
			return false, nil
		}
		if isRetryable(lastErr) && ctx.Err() == nil {
			client.logger.VInfof(1, "Store attempt %d failed due to err: %s. Retrying", attempt, lastErr.Error())
			return true, lastErr
		}
		return false, lastErr
	}, createBackoffFn(), client.storeAttempts)
	if err != nil {
		return newError(lastErr)
	}
	return nil
}

// History returns a consumer for the payloads stored so far. The consumer completes once it reaches the end of the
// journal.
func (client *Client) History(ctx context.Context) (*Consumer, error) {
	return client.openConsumer(ctx, false, func(ctx context.Context) (comm.ValueStreamClient, error) {
		return client.rpcClient.RetrieveHistory(ctx, &emptypb.Empty{})
	})
}

// NewValues returns a consumer for the payloads stored after the call returns.
func (client *Client) NewValues(ctx context.Context) (*Consumer, error) {
	return client.openConsumer(ctx, false, func(ctx context.Context) (comm.ValueStreamClient, error) {
		return client.rpcClient.RetrieveNewValues(ctx, &emptypb.Empty{})
	})
}

// All returns a consumer for the history followed by every new payload. If deleteAfterRead is set, the server
// deletes the cycles the consumer has moved past.
func (client *Client) All(ctx context.Context, deleteAfterRead bool) (*Consumer, error) {
	return client.openConsumer(ctx, false, func(ctx context.Context) (comm.ValueStreamClient, error) {
		return client.rpcClient.RetrieveAll(ctx, &wrapperspb.BoolValue{Value: deleteAfterRead})
	})
}

// Replay returns a consumer that replays the history. The payloads are paced by their original timing sped up by
// acceleration. An acceleration <= 0 replays as fast as possible.
func (client *Client) Replay(ctx context.Context, acceleration float64) (*Consumer, error) {
	return client.openConsumer(ctx, false, func(ctx context.Context) (comm.ValueStreamClient, error) {
		return client.rpcClient.Replay(ctx, &wrapperspb.DoubleValue{Value: acceleration})
	})
}

// ReplayLoop returns a consumer that replays the history with its original timing forever, waiting delay between
// iterations.
func (client *Client) ReplayLoop(ctx context.Context, delay time.Duration) (*Consumer, error) {
	return client.openConsumer(ctx, true, func(ctx context.Context) (comm.ValueStreamClient, error) {
		return client.rpcClient.ReplayLoop(ctx, &wrapperspb.Int64Value{Value: delay.Milliseconds()})
	})
}

func (client *Client) openConsumer(ctx context.Context, loop bool,
	open func(context.Context) (comm.ValueStreamClient, error)) (*Consumer, error) {
	sctx, cancel := context.WithCancel(ctx)
	vs, err := open(sctx)
	if err != nil {
		cancel()
		return nil, newError(err)
	}
	// Wait for the server to position the stream.
	if _, err := vs.Header(); err != nil {
		cancel()
		return nil, newError(err)
	}
	return newConsumer(vs, cancel, loop), nil
}
