// Package gameserver exposes the simulation to operators over gRPC.
package gameserver

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/rogue/internal/clock"
	"github.com/cory-johannsen/rogue/internal/game/event"
	"github.com/cory-johannsen/rogue/internal/game/sim"
	"github.com/cory-johannsen/rogue/internal/gameserver/controlv1"
)

// DefaultStreamBuffer is the per-stream event queue length.
const DefaultStreamBuffer = 256

// Simulation is the engine surface the control service drives. *sim.Engine
// satisfies it.
type Simulation interface {
	Pause()
	Resume()
	Disposed() bool
	Snapshot() sim.Snapshot
	Subscribe(o event.Observer) event.Subscription
	Unsubscribe(sub event.Subscription) bool
}

// ControlService implements controlv1.ControlServer.
type ControlService struct {
	sim    Simulation
	clk    clock.Clock
	logger *zap.Logger
	buffer int
}

var _ controlv1.ControlServer = (*ControlService)(nil)

// NewControlService creates a ControlService.
//
// Precondition: s, clk and logger must be non-nil.
func NewControlService(s Simulation, clk clock.Clock, logger *zap.Logger) *ControlService {
	return &ControlService{sim: s, clk: clk, logger: logger.Named("control"), buffer: DefaultStreamBuffer}
}

func (c *ControlService) live() error {
	if c.sim.Disposed() {
		return status.Error(codes.FailedPrecondition, sim.ErrDisposed.Error())
	}
	return nil
}

// Pause stops the simulation.
func (c *ControlService) Pause(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	if err := c.live(); err != nil {
		return nil, err
	}
	c.sim.Pause()
	c.logger.Info("paused by operator")
	return &emptypb.Empty{}, nil
}

// Resume restarts the simulation.
func (c *ControlService) Resume(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	if err := c.live(); err != nil {
		return nil, err
	}
	c.sim.Resume()
	c.logger.Info("resumed by operator")
	return &emptypb.Empty{}, nil
}

// Snapshot returns the current run.
func (c *ControlService) Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	if err := c.live(); err != nil {
		return nil, err
	}
	out, err := toStruct(c.sim.Snapshot())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding snapshot: %v", err)
	}
	return out, nil
}

// Events streams {kind, at, data} structs. Events that arrive while the
// stream's queue is full are dropped.
func (c *ControlService) Events(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if err := c.live(); err != nil {
		return err
	}
	ctx := stream.Context()
	queue := make(chan *structpb.Struct, c.buffer)
	sub := c.sim.Subscribe(event.ObserverFunc(func(e event.Event) error {
		msg, err := eventStruct(e, c.clk.Now())
		if err != nil {
			return err
		}
		select {
		case queue <- msg:
			return nil
		default:
			return errStreamFull
		}
	}))
	defer c.sim.Unsubscribe(sub)
	c.logger.Info("event stream opened")
	defer c.logger.Info("event stream closed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-queue:
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

var errStreamFull = errors.New("event stream queue full")

// Server hosts the control service as a lifecycle service.
type Server struct {
	addr   string
	grpc   *grpc.Server
	logger *zap.Logger
}

// NewServer registers svc on a new gRPC server listening on addr.
func NewServer(addr string, svc controlv1.ControlServer, logger *zap.Logger) *Server {
	gs := grpc.NewServer()
	controlv1.RegisterControlServer(gs, svc)
	return &Server{addr: addr, grpc: gs, logger: logger.Named("control")}
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("control listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop drains in-flight calls, forcing the stop when ctx ends first.
// Open event streams end when their clients leave, so this usually forces.
func (s *Server) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
		<-done
	}
}
