package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/spatialpointer/internal/monitoring"
	"github.com/banshee-data/spatialpointer/internal/spatial/l1samples"
	"github.com/banshee-data/spatialpointer/internal/spatial/pipeline"
	"github.com/banshee-data/spatialpointer/internal/timeutil"
)

// UDPSocket defines the UDP socket operations the listener needs.
// This abstraction enables unit testing without real network connections.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// UDPSocketFactory creates UDP sockets.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory implements UDPSocketFactory using net.ListenUDP.
type RealUDPSocketFactory struct{}

func (RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// maxDatagram fits a header plus a thousand records.
const maxDatagram = l1samples.BatchHeaderSize + 1000*l1samples.RecordSize

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address       string
	RcvBuf        int
	Sink          pipeline.Sink
	Clock         timeutil.Clock
	SocketFactory UDPSocketFactory // defaults to RealUDPSocketFactory
}

// UDPListener receives native sample datagrams.
type UDPListener struct {
	cfg       UDPListenerConfig
	datagrams atomic.Uint64
	errors    atomic.Uint64
}

// NewUDPListener creates a listener; call Start to receive.
func NewUDPListener(cfg UDPListenerConfig) *UDPListener {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.SocketFactory == nil {
		cfg.SocketFactory = RealUDPSocketFactory{}
	}
	return &UDPListener{cfg: cfg}
}

// Datagrams returns the number of datagrams handled and rejected.
func (l *UDPListener) Datagrams() (handled, rejected uint64) {
	return l.datagrams.Load(), l.errors.Load()
}

// Start listens until ctx is cancelled or the socket is closed.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := l.cfg.SocketFactory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	if l.cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(l.cfg.RcvBuf); err != nil {
			monitoring.Logf("[udp] failed to set receive buffer to %d: %v", l.cfg.RcvBuf, err)
		}
	}
	monitoring.Logf("[udp] listening on %s", l.cfg.Address)

	buffer := make([]byte, maxDatagram)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Short deadline so cancellation is noticed on a quiet socket.
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			monitoring.Logf("[udp] read error: %v", err)
			continue
		}
		if err := l.HandleDatagram(buffer[:n]); err != nil {
			monitoring.Logf("[udp] datagram from %v: %v", from, err)
		}
	}
}

// HandleDatagram decodes one datagram and hands it to the sink.
func (l *UDPListener) HandleDatagram(datagram []byte) error {
	l.datagrams.Add(1)
	if err := DeliverDatagram(l.cfg.Sink, datagram, l.cfg.Clock.Now()); err != nil {
		l.errors.Add(1)
		return err
	}
	return nil
}

// DeliverDatagram decodes a native datagram stamped with ts and passes
// the batch to sink, counting decode problems when sink keeps stats.
func DeliverDatagram(sink pipeline.Sink, datagram []byte, ts time.Time) error {
	samples, stats, err := l1samples.DecodeDatagram(datagram, ts, 0)
	if err != nil {
		return err
	}
	if c, ok := sink.(DecodeCounter); ok {
		c.CountDecode(stats)
	}
	sink.OnBatch(samples)
	return nil
}
