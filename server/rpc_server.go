package server

import (
	"chronolog/comm"
	"chronolog/server/base"
	"chronolog/server/journal"
	"chronolog/server/replay"
	"chronolog/server/storage"
	"chronolog/server/stream"
	"chronolog/util/logging"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"path"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var (
	FlagRpcServerHost = flag.String("rpc_server_host", "0.0.0.0", "RPC server host name/IP")
	FlagRpcServerPort = flag.Int("rpc_server_port", 50051, "RPC server port number")
)

const kJournalDirName = "journal"

// RPCServer exposes a journal of raw payloads over gRPC.
type RPCServer struct {
	comm.UnimplementedJournalServiceServer
	host       string
	port       int
	journal    *journal.Journal[[]byte]
	grpcServer *grpc.Server
	logger     *logging.PrefixLogger
	streamID   atomic.Uint64
}

type RPCServerOpts struct {
	// Host to listen on. Defaults to FlagRpcServerHost.
	Host string
	// Port to listen on. Defaults to FlagRpcServerPort.
	Port int
	// Data directory. Defaults to the data_directory flag.
	DataDirectory string
	// Roll cycle of the journal. Defaults to daily.
	RollCycle storage.RollCycle
	// Clock used to timestamp payloads. Defaults to time.Now.
	Clock func() time.Time
}

func NewRPCServer(opts RPCServerOpts) (*RPCServer, error) {
	srv := new(RPCServer)
	srv.logger = logging.NewPrefixLogger("rpc_server")
	srv.host = opts.Host
	if len(srv.host) == 0 {
		srv.host = *FlagRpcServerHost
	}
	srv.port = opts.Port
	if srv.port == 0 {
		srv.port = *FlagRpcServerPort
	}
	dataDir := opts.DataDirectory
	if len(dataDir) == 0 {
		dataDir = base.GetDataDirectory()
	}
	if len(dataDir) == 0 {
		return nil, errors.New("no data directory provided for RPC server")
	}
	j, err := journal.NewJournal(journal.Config[[]byte]{
		Path:      path.Join(dataDir, kJournalDirName),
		Encoder:   journal.BytesEncoder,
		Decoder:   journal.BytesDecoder,
		RollCycle: opts.RollCycle,
		Clock:     opts.Clock,
	})
	if err != nil {
		return nil, err
	}
	srv.journal = j
	srv.grpcServer = grpc.NewServer()
	comm.RegisterJournalServiceServer(srv.grpcServer, srv)
	return srv, nil
}

// Run listens on the configured host and port and serves until Stop is called.
func (srv *RPCServer) Run() error {
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", srv.host, srv.port))
	if err != nil {
		return fmt.Errorf("unable to listen on (%s:%d): %w", srv.host, srv.port, err)
	}
	srv.logger.Infof("Starting RPC server on host: %s, port: %d", srv.host, srv.port)
	return srv.Serve(lis)
}

// Serve serves on the given listener until Stop is called.
func (srv *RPCServer) Serve(lis net.Listener) error {
	if err := srv.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	srv.logger.Infof("RPC server has finished!")
	return nil
}

// Stop closes the journal, which completes all the open streams, and stops the server.
func (srv *RPCServer) Stop() error {
	err := srv.journal.Close()
	srv.grpcServer.GracefulStop()
	return err
}

func (srv *RPCServer) Store(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	if len(req.GetValue()) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "empty payloads cannot be stored")
	}
	if err := srv.journal.Store(req.GetValue()); err != nil {
		return nil, makeStatusError(err, "unable to store payload")
	}
	return &emptypb.Empty{}, nil
}

func (srv *RPCServer) RetrieveHistory(_ *emptypb.Empty, out comm.ValueStreamServer) error {
	return forward(srv.streamLogger("history"), out, srv.journal.RetrieveHistory(), timedPayload)
}

func (srv *RPCServer) RetrieveNewValues(_ *emptypb.Empty, out comm.ValueStreamServer) error {
	return forward(srv.streamLogger("new_values"), out, srv.journal.RetrieveNewValues(), timedPayload)
}

func (srv *RPCServer) RetrieveAll(req *wrapperspb.BoolValue, out comm.ValueStreamServer) error {
	return forward(srv.streamLogger("all_values"), out, srv.journal.RetrieveAll(req.GetValue()), timedPayload)
}

func (srv *RPCServer) Replay(req *wrapperspb.DoubleValue, out comm.ValueStreamServer) error {
	r := srv.journal.Replay()
	if req.GetValue() > 0 {
		r = r.WithTimeAcceleration(req.GetValue())
	}
	return forward[journal.TimedValue[[]byte]](srv.streamLogger("replay"), out, r, timedPayload)
}

func (srv *RPCServer) ReplayLoop(req *wrapperspb.Int64Value, out comm.ValueStreamServer) error {
	if req.GetValue() < 0 {
		return status.Errorf(codes.InvalidArgument, "restart delay must be >= 0")
	}
	delay := time.Duration(req.GetValue()) * time.Millisecond
	loop := srv.journal.Replay().WithOriginalTiming().InLoop(delay)
	// Payloads are never empty so an empty value marks the start of every iteration after the first one.
	marker := &wrapperspb.BytesValue{}
	started := false
	send := func(v replay.Value[journal.TimedValue[[]byte]]) error {
		if v.LoopRestart && started {
			if err := out.Send(marker); err != nil {
				return err
			}
		}
		started = true
		return out.Send(&wrapperspb.BytesValue{Value: v.Value.Value})
	}
	return forwardEach(srv.streamLogger("replay_loop"), out, loop, send)
}

func (srv *RPCServer) streamLogger(kind string) *logging.PrefixLogger {
	return srv.logger.Child(fmt.Sprintf("%s:%d", kind, srv.streamID.Add(1)))
}

func timedPayload(tv journal.TimedValue[[]byte]) []byte {
	return tv.Value
}

// forward sends every value of s to out until s completes, fails or the client goes away.
func forward[T any](logger *logging.PrefixLogger, out comm.ValueStreamServer, s stream.Stream[T],
	payloadOf func(T) []byte) error {
	return forwardEach(logger, out, s, func(v T) error {
		return out.Send(&wrapperspb.BytesValue{Value: payloadOf(v)})
	})
}

func forwardEach[T any](logger *logging.PrefixLogger, out comm.ValueStreamServer, s stream.Stream[T],
	send func(T) error) error {
	ctx := out.Context()
	sub := s.Subscribe()
	defer sub.Cancel()
	// Subscribing positions the tailers so the header tells the client that the stream is live.
	if err := out.SendHeader(metadata.MD{}); err != nil {
		return err
	}
	logger.VInfof(1, "Stream opened")
	count := 0
	for {
		v, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.VInfof(1, "Stream completed after %d values", count)
				return nil
			}
			logger.Warningf("Stream terminated after %d values due to err: %s", count, err.Error())
			return makeStatusError(err, "stream failed")
		}
		if err := send(v); err != nil {
			logger.VInfof(1, "Unable to send value to client due to err: %s", err.Error())
			return err
		}
		count++
	}
}
