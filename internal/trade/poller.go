package trade

import (
	"context"
	"log/slog"
	"time"
)

// Poller drives the pull-based refresh loop: every interval it recomputes
// positions for each address with a live WebSocket subscriber and
// broadcasts the result. Each tick is an independent, stateless pass; a
// superseded tick simply discards its result via context cancellation.
type Poller struct {
	svc      *Service
	hub      *WSHub
	interval time.Duration
}

// NewPoller creates a refresh poller.
func NewPoller(svc *Service, hub *WSHub, interval time.Duration) *Poller {
	return &Poller{svc: svc, hub: hub, interval: interval}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	for _, address := range p.hub.WatchedAddresses() {
		tickCtx, cancel := context.WithTimeout(ctx, p.interval)
		resp, err := p.svc.Refresh(tickCtx, address)
		cancel()

		if err != nil {
			// Transient collaborator failure: log and let the next tick
			// retry with a fresh snapshot.
			slog.Warn("position refresh failed", "address", address, "err", err)
			continue
		}

		p.hub.Broadcast(WSMessage{
			Type:    "positions_refresh",
			Address: address,
			Long:    resp.Long,
			Short:   resp.Short,
			Warning: resp.Warning,
		})
	}
}
