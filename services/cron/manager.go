package cron

import (
	"log"

	"github.com/nanogpt-proxy/api/services"
	"github.com/nanogpt-proxy/api/services/nanogpt"
	"github.com/robfig/cron/v3"
)

// CronManager manages all scheduled maintenance jobs
type CronManager struct {
	cron     *cron.Cron
	users    *services.UserService
	upstream *nanogpt.Client
}

// NewCronManager creates a new cron manager
func NewCronManager(users *services.UserService, upstream *nanogpt.Client) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:     c,
		users:    users,
		upstream: upstream,
	}
}

// Start registers and starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

func (m *CronManager) registerJobs() error {
	// Every hour: probe the upstream API
	_, err := m.cron.AddFunc("0 0 * * * *", func() {
		m.logJobStart("upstream_health_probe")
		m.ProbeUpstreamHealth()
	})
	if err != nil {
		return err
	}

	// Daily at 2 AM: purge users soft-deleted past retention
	_, err = m.cron.AddFunc("0 0 2 * * *", func() {
		m.logJobStart("purge_deleted_users")
		m.PurgeDeletedUsers()
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s", jobName)
}

func (m *CronManager) logJobComplete(jobName string, message string) {
	log.Printf("[CRON] Job %s completed: %s", jobName, message)
}

func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] Job %s failed: %v", jobName, err)
}
