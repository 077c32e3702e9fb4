package session

import (
	"context"
	"time"
)

// Start launches the background connection monitor. It probes the
// backend health endpoint immediately and then at the configured
// interval, folding the result into ConnectionStatus. Start returns
// right away; Close (or ctx cancellation) stops the loop. Calling
// Start on a running controller is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.probeStop != nil {
		c.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	c.probeStop = stop
	c.probeDone = done
	c.mu.Unlock()

	go c.monitor(ctx, stop, done)
	return nil
}

func (c *Controller) monitor(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.config.ProbeInterval)
	defer ticker.Stop()

	c.probe(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

// probe runs one health check. Any successful reply counts as
// connected; the gateway applies its own probe timeout.
func (c *Controller) probe(ctx context.Context) {
	health, err := c.backend.Health(ctx)
	if err != nil {
		c.logger.Debug("health probe failed", "error", err)
		c.setConnection(StatusDisconnected)
		return
	}
	c.logger.Debug("health probe ok", "status", health.Status)
	c.setConnection(StatusConnected)
}

// setConnection transitions the connection status and notifies the
// callback. No-op when the status is unchanged.
func (c *Controller) setConnection(s ConnectionStatus) {
	c.mu.Lock()
	if c.conn == s {
		c.mu.Unlock()
		return
	}
	prev := c.conn
	c.conn = s
	fn := c.onConn
	c.mu.Unlock()

	c.logger.Info("connection status changed", "from", prev, "to", s)
	if fn != nil {
		fn(s)
	}
}
