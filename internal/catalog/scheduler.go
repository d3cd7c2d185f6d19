package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// StartRefresh reloads store on a standard five-field cron schedule, e.g.
// "0 3 * * *" after the nightly warehouse load. The caller owns Stop.
func StartRefresh(schedule string, store *Store, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := store.Reload(ctx); err != nil {
			log.Warn().Err(err).Str("schedule", schedule).Msg("scheduled catalog refresh failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("catalog refresh schedule %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
