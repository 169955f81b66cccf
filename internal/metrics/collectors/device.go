// Package collectors samples device state into Prometheus gauges.
package collectors

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/effectnode/internal/effect"
	"github.com/smazurov/effectnode/internal/infrared"
	"github.com/smazurov/effectnode/internal/logging"
	"github.com/smazurov/effectnode/internal/metrics"
)

// DefaultInterval is the sampling period.
const DefaultInterval = 5 * time.Second

// EffectSource lists effect snapshots.
type EffectSource interface {
	List() []effect.Snapshot
}

// InfraredSource reports IR device status.
type InfraredSource interface {
	Status() infrared.Status
}

// DeviceCollector polls effect and IR status into gauges that are not
// updated on events: frame counters, pending mailbox items and listener
// liveness.
type DeviceCollector struct {
	effects  EffectSource
	ir       InfraredSource
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewDeviceCollector creates a collector. ir may be nil.
func NewDeviceCollector(effects EffectSource, ir InfraredSource) *DeviceCollector {
	return &DeviceCollector{
		effects:  effects,
		ir:       ir,
		interval: DefaultInterval,
		logger:   logging.GetLogger("metrics"),
	}
}

// Start begins sampling until ctx is done or Stop is called.
func (c *DeviceCollector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop stops sampling and waits for the loop to exit.
func (c *DeviceCollector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *DeviceCollector) run(ctx context.Context) {
	defer c.wg.Done()
	c.logger.Info("Starting device metrics collection", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Collect()
		}
	}
}

// Collect takes one sample.
func (c *DeviceCollector) Collect() {
	if c.effects != nil {
		for _, s := range c.effects.List() {
			metrics.SetEffectTicks(s.Name, s.Ticks)
		}
	}

	if c.ir == nil {
		return
	}
	st := c.ir.Status()
	metrics.SetMailboxPending(st.Name, st.Pending)
	if st.Initialized {
		metrics.SetListenerUp(st.Name, st.Listener.Running)
	}
}
