package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"mapleads/internal/config"
	"mapleads/internal/extract"
	"mapleads/internal/leads"
	"mapleads/internal/logger"
	"mapleads/internal/pace"
	"mapleads/internal/plan"
	rds "mapleads/internal/platform/redis"
	tasks "mapleads/internal/platform/tasks"
	"mapleads/internal/runner"
	"mapleads/internal/search"
	"mapleads/internal/server"
	"mapleads/internal/session"
	"mapleads/internal/verify"
	"mapleads/internal/worker"
)

func main() {
	mode := flag.String("mode", "discover", "discover | verify | enqueue")
	flag.Parse()

	cfg := config.Load()
	logr := logger.New("main")
	logr.LogInfof("mapleads starting (mode=%s env=%s)", *mode, cfg.AppEnv)

	store, err := leads.NewStore(cfg.LeadsFile)
	if err != nil {
		log.Fatalf("open lead store: %v", err)
	}

	switch *mode {
	case "discover":
		runDiscover(&cfg, store, logr)
	case "verify":
		runVerifyWorker(&cfg, store, logr)
	case "enqueue":
		runEnqueue(&cfg, store, logr)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

// runDiscover drives a full browser discovery session until the lead target
// is met, the plan is exhausted, or the process is told to stop.
func runDiscover(cfg *config.Config, store *leads.Store, logr *logger.Logger) {
	categories, err := plan.LoadCategories(cfg.CategoriesFile)
	if err != nil {
		log.Fatalf("load categories: %v", err)
	}
	locations, err := plan.LoadLocations(cfg.LocationsFile)
	if err != nil {
		log.Fatalf("load locations: %v", err)
	}
	ledger, err := plan.OpenLedger(cfg.LedgerFile)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	taskList := plan.Build(categories, locations)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pacer := pace.New(cfg.DelayMin, cfg.DelayMax, cfg.Cooldown, cfg.MaxRetries)
	bound := pacer.Bind(ctx)

	sess, err := session.New(cfg)
	if err != nil {
		log.Fatalf("start browser session: %v", err)
	}
	defer sess.Close()

	if err := sess.WarmUp(); err != nil {
		logr.LogWarnf("warm-up navigation failed: %v", err)
	}

	searcher := search.NewExecutor(bound, cfg.RegionSuffix, cfg.ResultsPerSearch)
	extractor := extract.New(bound)
	run := runner.New(cfg, pacer, store, ledger, searcher, extractor)

	// Optional status server for unattended runs.
	var app *fiber.App
	if cfg.StatusAddr != "" {
		var redisSvc *rds.Service
		if cfg.RedisAddr != "" {
			if svc, rerr := rds.New(rds.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}); rerr == nil {
				redisSvc = svc
				defer redisSvc.Close()
			} else {
				logr.LogWarnf("redis unavailable, health check degraded: %v", rerr)
			}
		}
		app = fiber.New(fiber.Config{AppName: "mapleads", DisableStartupMessage: true})
		server.RegisterRoutes(app, server.Dependencies{Runner: run, Redis: redisSvc})
		go func() {
			if lerr := app.Listen(cfg.StatusAddr); lerr != nil {
				logr.LogWarnf("status server stopped: %v", lerr)
			}
		}()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.Info().Msg("Shutting down...")
		cancel()
	}()

	err = run.Run(ctx, sess.Page(), taskList)
	if app != nil {
		_ = app.ShutdownWithTimeout(3 * time.Second)
	}
	if err != nil && err != context.Canceled {
		log.Fatalf("run failed: %v", err)
	}
	logr.LogInfof("Done: %d leads (%d qualified)", store.Count(), store.QualifiedCount())
}

// runVerifyWorker consumes queued website checks.
func runVerifyWorker(cfg *config.Config, store *leads.Store, logr *logger.Logger) {
	redisSvc, err := rds.New(rds.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer redisSvc.Close()

	verifySvc := verify.New(cfg, store, redisSvc)

	srv := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: cfg.VerifyConcurrency,
		Queues:      map[string]int{tasks.QueueVerify: 1},
	})
	mux := worker.NewMux()
	mux.HandleFunc(tasks.TaskTypeVerifyWebsite, verifySvc.HandleVerifyWebsite)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.Info().Msg("Stopping worker...")
		srv.Shutdown()
	}()

	logr.LogInfof("Verify worker up (concurrency=%d)", cfg.VerifyConcurrency)
	if err := srv.Run(mux.Mux()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// runEnqueue pushes a verification task for every stored lead with a link.
func runEnqueue(cfg *config.Config, store *leads.Store, logr *logger.Logger) {
	redisSvc, err := rds.New(rds.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer redisSvc.Close()

	client := tasks.New(redisSvc)
	defer client.Close()

	queued, err := verify.EnqueueAll(store, client, cfg.MaxRetries)
	if err != nil {
		log.Fatalf("enqueue: %v", err)
	}
	logr.LogInfof("Queued %d website checks", queued)
}
