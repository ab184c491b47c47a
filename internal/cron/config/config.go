package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Spool ingestion, every 15 minutes
	CronScheduleIngestReports string `env:"CRON_SCHEDULE_INGEST_REPORTS" envDefault:"0 */15 * * * *"`
	// Leader election lease, only used inside Kubernetes
	LeaseName      string `env:"CRON_LEADER_LEASE_NAME" envDefault:"dmarcstack-cron-leader"`
	LeaseNamespace string `env:"CRON_LEADER_LEASE_NAMESPACE" envDefault:"default"`
}
