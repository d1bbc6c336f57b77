package cron

import (
	"context"
	"fmt"
	"time"
)

// userRetention is how long soft-deleted user rows are kept before the
// purge removes them for good.
const userRetention = 30 * 24 * time.Hour

// ProbeUpstreamHealth checks that the upstream API answers. A failure is
// only logged; the gateway keeps serving and relays upstream errors as they
// happen.
func (m *CronManager) ProbeUpstreamHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jobName := "upstream_health_probe"

	if err := m.upstream.HealthCheck(ctx); err != nil {
		m.logJobError(jobName, fmt.Errorf("upstream unreachable: %w", err))
		return
	}

	m.logJobComplete(jobName, "upstream reachable")
}

// PurgeDeletedUsers permanently removes user rows soft-deleted longer than
// the retention period ago.
func (m *CronManager) PurgeDeletedUsers() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "purge_deleted_users"

	purged, err := m.users.PurgeDeletedBefore(ctx, time.Now().Add(-userRetention))
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("%d user rows purged", purged))
}
