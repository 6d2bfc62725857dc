package cloudsync

import (
	"context"
	"time"
)

// Watch pulls from the remote every interval while remote sync is
// enabled, until ctx is done. A non-positive interval returns at once.
func (c *Coordinator) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.log.Debug(ctx, "auto-sync watcher started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	st, err := c.settings.Get(ctx)
	if err != nil {
		c.log.Warn(ctx, "auto-sync skipped: settings unavailable", "error", err)
		return
	}
	if !st.EnableDriveSync {
		return
	}

	r := c.SyncFromRemote(ctx)
	if !r.Success {
		c.log.Warn(ctx, "auto-sync pull failed", "message", r.Message)
	}
}
