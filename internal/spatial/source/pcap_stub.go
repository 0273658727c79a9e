//go:build !pcap
// +build !pcap

package source

import (
	"context"
	"errors"
)

// ErrPCAPDisabled is returned by ReplayPCAP in builds without pcap support.
var ErrPCAPDisabled = errors.New("PCAP support not enabled: rebuild with -tags=pcap to enable PCAP replay")

// ReplayPCAP is a stub implementation when PCAP support is disabled.
func ReplayPCAP(ctx context.Context, cfg PCAPConfig) (PCAPStats, error) {
	return PCAPStats{}, ErrPCAPDisabled
}
