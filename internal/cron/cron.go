package cron

import (
	"context"
	"os"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/dmarcstack/interfaces"
	cron_config "github.com/customeros/dmarcstack/internal/cron/config"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/tracing"
	"github.com/customeros/dmarcstack/internal/utils"
)

const (
	// GroupIngestion serializes every job that runs the ingestion pipeline
	GroupIngestion = "ingestion"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second

	appSourceCron = "dmarcstack-cron"
)

var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupIngestion: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg        *cron_config.Config
	log        logger.Logger
	cron       *cronv3.Cron
	cronMutex  sync.Mutex
	k8s        kubernetes.Interface
	stopCh     chan struct{}
	stopOnce   sync.Once
	jobIDs     map[string]cronv3.EntryID
	ingestion  interfaces.IngestionService
	source     interfaces.ReportSource
	batchLimit int
}

func NewCronManager(cfg *cron_config.Config, log logger.Logger, k8s kubernetes.Interface,
	ingestion interfaces.IngestionService, source interfaces.ReportSource, batchLimit int) *CronManager {
	if cfg == nil {
		cfg = &cron_config.Config{}
	}
	return &CronManager{
		cfg:        cfg,
		log:        log,
		k8s:        k8s,
		stopCh:     make(chan struct{}),
		jobIDs:     make(map[string]cronv3.EntryID),
		ingestion:  ingestion,
		source:     source,
		batchLimit: batchLimit,
	}
}

// NewKubernetesClient returns nil outside a cluster.
func NewKubernetesClient(log logger.Logger) kubernetes.Interface {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Infof("Not running in Kubernetes: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Warnf("Could not create Kubernetes client: %v", err)
		return nil
	}
	return client
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName string) error {
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      cm.cfg.LeaseName,
			Namespace: cm.cfg.LeaseNamespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.stopCron()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-cm.stopCh
			cancel()
		}()
		le.Run(ctx)
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	cm.stopCron()
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}

func (cm *CronManager) stopCron() {
	cm.cronMutex.Lock()
	defer cm.cronMutex.Unlock()

	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
		cm.cron = nil
	}
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	if cm.cfg.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cm.cfg.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cm.cfg.CronScheduleHeartbeat)
	}

	if cm.cfg.CronScheduleIngestReports != "" && cm.source != nil && cm.ingestion != nil {
		id, err := c.AddFunc(cm.cfg.CronScheduleIngestReports, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupIngestion].Lock()
			defer jobLocks.locks[GroupIngestion].Unlock()
			cm.ingestReports()
		})
		if err != nil {
			cm.log.Fatalf("Could not add ingest reports cron job: %v", err)
		}
		cm.jobIDs["ingest_reports"] = id
		cm.log.Infof("Registered ingest reports job with schedule: %s", cm.cfg.CronScheduleIngestReports)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.cronMutex.Lock()
	defer cm.cronMutex.Unlock()

	if cm.cron != nil {
		return
	}
	cm.log.Info("Starting cron manager")
	c := cronv3.New(
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// ingestReports pulls one batch from the source. The batch is acknowledged
// only when the run completes; otherwise it is picked up again next time and
// already ingested reports are skipped as duplicates.
func (cm *CronManager) ingestReports() {
	ctx := utils.SetAppSourceInContext(context.Background(), appSourceCron)

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.ingestReports")
	defer span.Finish()
	tracing.TagComponentCronJob(span)
	span.SetTag("source", cm.source.Name())

	reports, err := cm.source.Fetch(ctx, cm.batchLimit)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to fetch reports from %s: %v", cm.source.Name(), err)
		return
	}
	if len(reports) == 0 {
		cm.log.Debugf("No reports waiting in %s", cm.source.Name())
		return
	}

	result, err := cm.ingestion.Run(ctx, reports)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Scheduled ingestion from %s failed: %v", cm.source.Name(), err)
		return
	}
	tracing.LogObjectAsJson(span, "result", result)

	if err = cm.source.Ack(ctx); err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to acknowledge batch from %s: %v", cm.source.Name(), err)
		return
	}
	cm.log.Infof("Scheduled ingestion from %s: %d of %d reports ingested", cm.source.Name(), result.ReportsIngested, result.ReportsSeen)
}
