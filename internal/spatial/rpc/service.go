// Package rpc exposes the pipeline over gRPC: a state snapshot, a live
// stream of delivered events, a reset call and the standard health
// service. Messages are well-known protobuf types (Struct, Empty), so the
// service descriptor is declared by hand rather than generated.
package rpc

import (
	"context"
	"encoding/json"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/spatialpointer/internal/monitoring"
	"github.com/banshee-data/spatialpointer/internal/spatial"
	"github.com/banshee-data/spatialpointer/internal/spatial/monitor"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "spatialpointer.v1.Pointer"

const (
	methodGetSnapshot  = "/" + ServiceName + "/GetSnapshot"
	methodReset        = "/" + ServiceName + "/Reset"
	methodStreamEvents = "/" + ServiceName + "/StreamEvents"
)

// streamBuffer is the per-subscriber backlog; events beyond it are
// dropped for that subscriber.
const streamBuffer = 256

// PointerServer is the server API of the Pointer service.
type PointerServer interface {
	GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Reset(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	StreamEvents(*emptypb.Empty, grpc.ServerStream) error
}

// Resetter is implemented by the pipeline and the device.
type Resetter interface {
	Reset()
}

// Service implements PointerServer and pipeline.Recorder.
type Service struct {
	mon       *monitor.Monitor
	resetters []Resetter

	mu     sync.Mutex
	subs   map[int]chan *structpb.Struct
	nextID int
	drops  uint64

	closeOnce sync.Once
	done      chan struct{}
}

// NewService creates the service. Reset calls each resetter in order.
func NewService(mon *monitor.Monitor, resetters ...Resetter) *Service {
	return &Service{
		mon:       mon,
		resetters: resetters,
		subs:      make(map[int]chan *structpb.Struct),
		done:      make(chan struct{}),
	}
}

// Close ends every open event stream. Streams opened afterwards return
// immediately.
func (svc *Service) Close() {
	svc.closeOnce.Do(func() { close(svc.done) })
}

// Register adds the service to s.
func (svc *Service) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&serviceDesc, svc)
}

func (svc *Service) GetSnapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if svc.mon == nil {
		return nil, status.Error(codes.Unavailable, "no pipeline attached")
	}
	b, err := json.Marshal(svc.mon.Snapshot())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode snapshot: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode snapshot: %v", err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode snapshot: %v", err)
	}
	return st, nil
}

func (svc *Service) Reset(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if len(svc.resetters) == 0 {
		return nil, status.Error(codes.Unimplemented, "reset not enabled")
	}
	for _, r := range svc.resetters {
		r.Reset()
	}
	monitoring.Logf("[gRPC] pipeline reset by client")
	return &emptypb.Empty{}, nil
}

func (svc *Service) StreamEvents(_ *emptypb.Empty, stream grpc.ServerStream) error {
	id, ch := svc.subscribe()
	defer svc.unsubscribe(id)
	monitoring.Debugf("[gRPC] event stream %d opened", id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-svc.done:
			return nil
		case ev := <-ch:
			if err := stream.SendMsg(ev); err != nil {
				return err
			}
		}
	}
}

func (svc *Service) subscribe() (int, chan *structpb.Struct) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.nextID++
	ch := make(chan *structpb.Struct, streamBuffer)
	svc.subs[svc.nextID] = ch
	return svc.nextID, ch
}

func (svc *Service) unsubscribe(id int) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	delete(svc.subs, id)
}

// Dropped returns the number of events not sent to a slow stream.
func (svc *Service) Dropped() uint64 {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.drops
}

// Subscribers returns the number of open event streams.
func (svc *Service) Subscribers() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return len(svc.subs)
}

func (svc *Service) RecordBatch(uint64, []spatial.RawSample) {}

// RecordDelivered fans delivered events out to open streams.
func (svc *Service) RecordDelivered(events []spatial.CanonicalEvent) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.subs) == 0 {
		return
	}
	for _, e := range events {
		msg, err := EventStruct(e)
		if err != nil {
			continue
		}
		for _, ch := range svc.subs {
			select {
			case ch <- msg:
			default:
				svc.drops++
			}
		}
	}
}

// EventStruct encodes a delivered event.
func EventStruct(e spatial.CanonicalEvent) (*structpb.Struct, error) {
	q := e.InteractionRayRotation
	return structpb.NewStruct(map[string]interface{}{
		"tick":                 e.Tick,
		"slot":                 e.Slot,
		"interaction_id":       e.InteractionID(),
		"phase":                e.Phase.String(),
		"synthesized":          e.Synthesized,
		"raw_id":               e.RawID,
		"kind":                 e.Kind.String(),
		"device_position":      []interface{}{e.DevicePosition.X, e.DevicePosition.Y, e.DevicePosition.Z},
		"interaction_rotation": []interface{}{q.Real, q.Imag, q.Jmag, q.Kmag},
	})
}

func getSnapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PointerServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetSnapshot}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PointerServer).GetSnapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func resetHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PointerServer).Reset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodReset}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PointerServer).Reset(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func streamEventsHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(PointerServer).StreamEvents(in, stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PointerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSnapshot", Handler: getSnapshotHandler},
		{MethodName: "Reset", Handler: resetHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamEvents", Handler: streamEventsHandler, ServerStreams: true},
	},
	Metadata: "spatialpointer/v1/pointer.proto",
}
