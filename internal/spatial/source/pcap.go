//go:build pcap
// +build pcap

package source

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/spatialpointer/internal/monitoring"
)

// ReplayPCAP feeds the native datagrams captured in a pcap file to
// cfg.Sink, stamping each batch with its capture time. With a positive
// Speed the original inter-packet gaps are reproduced, scaled by Speed.
// This function is only available when building with the 'pcap' build tag.
func ReplayPCAP(ctx context.Context, cfg PCAPConfig) (PCAPStats, error) {
	var stats PCAPStats

	handle, err := pcap.OpenOffline(cfg.Path)
	if err != nil {
		return stats, fmt.Errorf("failed to open PCAP file %s: %w", cfg.Path, err)
	}
	defer handle.Close()

	if cfg.UDPPort > 0 {
		filter := fmt.Sprintf("udp port %d", cfg.UDPPort)
		if err := handle.SetBPFFilter(filter); err != nil {
			return stats, fmt.Errorf("failed to set BPF filter '%s': %w", filter, err)
		}
	}

	packets := gopacket.NewPacketSource(handle, handle.LinkType()).Packets()
	pacer := newPacer(cfg.Speed)
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case packet, ok := <-packets:
			if !ok || packet == nil {
				monitoring.Logf("[pcap] replay complete: %d packets, %d batches in %v", stats.Packets, stats.Batches, time.Since(start))
				return stats, nil
			}
			stats.Packets++

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			ts := packet.Metadata().Timestamp
			if err := pacer.wait(ctx, ts); err != nil {
				return stats, err
			}
			if err := DeliverDatagram(cfg.Sink, udp.Payload, ts); err != nil {
				stats.Rejected++
				monitoring.Debugf("[pcap] packet %d: %v", stats.Packets, err)
				continue
			}
			stats.Batches++
		}
	}
}
