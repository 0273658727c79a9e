package serialmux

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// TestableSerialPort implements SerialPorter with scripted reads and
// captured writes. Reads block until data is added or the port closes.
type TestableSerialPort struct {
	mu       sync.Mutex
	readBuf  bytes.Buffer
	writeBuf bytes.Buffer
	closed   bool
	eof      bool
	readCond *sync.Cond

	// WriteError is returned by the next Write call if set.
	WriteError error
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	t := &TestableSerialPort{}
	t.readCond = sync.NewCond(&t.mu)
	return t
}

func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.closed && !t.eof && t.readBuf.Len() == 0 {
		t.readCond.Wait()
	}
	if t.closed {
		return 0, errors.New("serial port closed")
	}
	if t.readBuf.Len() == 0 {
		return 0, io.EOF
	}
	return t.readBuf.Read(p)
}

func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, errors.New("serial port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	return t.writeBuf.Write(p)
}

// Close marks the port as closed and wakes blocked readers.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.readCond.Broadcast()
	return nil
}

// AddReadData queues data for subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readBuf.Write(data)
	t.readCond.Broadcast()
}

// EOF makes Read return io.EOF once the queued data is consumed.
func (t *TestableSerialPort) EOF() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eof = true
	t.readCond.Broadcast()
}

// Written returns everything written to the port.
func (t *TestableSerialPort) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeBuf.String()
}
