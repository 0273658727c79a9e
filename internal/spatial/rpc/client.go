package rpc

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the Pointer service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// GetSnapshot fetches the current pipeline snapshot.
func (c *Client) GetSnapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetSnapshot, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Reset clears the pipeline and the device.
func (c *Client) Reset(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, methodReset, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

// StreamEvents calls fn for every delivered event until ctx is done, the
// server closes the stream or fn returns an error.
func (c *Client) StreamEvents(ctx context.Context, fn func(*structpb.Struct) error, opts ...grpc.CallOption) error {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], methodStreamEvents, opts...)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		ev := new(structpb.Struct)
		if err := stream.RecvMsg(ev); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
