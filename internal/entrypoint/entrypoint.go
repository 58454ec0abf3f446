package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lectern/internal/config"
	http_controllers "github.com/mrlokans/lectern/internal/http"
	"github.com/mrlokans/lectern/internal/scheduler"
	"github.com/mrlokans/lectern/internal/settingsstore"
	"github.com/mrlokans/lectern/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill -9 can't be caught, so only SIGINT and SIGTERM are handled
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the listener goes away
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Lectern v%s", version)

	app, err := Build(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.Close()

	log.Printf("Records stored with the %s backend, book content with the %s backend", cfg.Storage.Backend, cfg.Content.Backend)

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Storage.DatabasePath, tasks.NewConfig(cfg.Tasks))
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewGroundBookQueue(app.Grounding),
			tasks.NewGroundAllBooksQueue(app.Library, app.States, taskClient),
			tasks.NewPruneAuditQueue(app.Auditor),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		if cfg.Audit.RetentionDays > 0 {
			if _, err := taskClient.Enqueue(tasks.PruneAuditTask{RetentionDays: cfg.Audit.RetentionDays}); err != nil {
				log.Printf("WARNING: failed to enqueue audit pruning: %v", err)
			}
		}
	}

	// Background grounding needs the task queue to hand work to
	var prefetch *scheduler.GroundingPrefetchScheduler
	if taskClient != nil {
		prefetch = scheduler.NewGroundingPrefetchScheduler(
			settingsstore.NewPrefetchConfigFromEnv(cfg.Grounding),
			func(ctx context.Context) error {
				_, err := taskClient.Enqueue(tasks.GroundAllBooksTask{})
				return err
			},
		)
		if err := prefetch.Start(context.Background()); err != nil {
			log.Printf("WARNING: grounding prefetch disabled: %v", err)
			prefetch = nil
		}
	} else if cfg.Grounding.PrefetchEnabled {
		log.Printf("WARNING: grounding prefetch requires TASKS_ENABLED, skipping")
	}

	limiter := http_controllers.NewRateLimiter(cfg.HTTP.ModelRequestsPerMinute, time.Minute)

	routerCfg := http_controllers.RouterConfig{
		Books:        app.Library,
		Reader:       app.Reader,
		Chat:         app.Conversation,
		Diagrams:     app.Diagrams,
		Settings:     app.Settings,
		DefaultModel: cfg.Providers.DefaultModel,
		ModelLimiter: limiter,
		Version:      version,
	}
	// Leave the interfaces nil rather than wrapping nil pointers
	if app.DB != nil {
		routerCfg.Database = app.DB
	}
	if taskClient != nil {
		routerCfg.Tasks = taskClient
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if prefetch != nil {
			prefetch.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		limiter.Stop()
		app.Reader.Close(ctx)
	}

	Serve(router, cfg, onShutdown)
}
