package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/vitatrack/fitness_backend/internal/audit"
	"github.com/vitatrack/fitness_backend/internal/config"
	"github.com/vitatrack/fitness_backend/internal/httpserver"
	"github.com/vitatrack/fitness_backend/internal/logging"
	"github.com/vitatrack/fitness_backend/internal/middleware"
	"github.com/vitatrack/fitness_backend/internal/reauth"
	"github.com/vitatrack/fitness_backend/internal/repo"
	"github.com/vitatrack/fitness_backend/internal/service"
	"github.com/vitatrack/fitness_backend/internal/stepup"
	"github.com/vitatrack/fitness_backend/internal/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	var sink audit.Sink
	var kafkaSink *audit.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink = audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		sink = kafkaSink
	} else {
		sink = &audit.LogSink{Log: logger}
	}
	dispatcher := audit.NewDispatcher(sink, cfg.AuditBuffer, logger)

	var challenges reauth.ChallengeStore
	var used stepup.UsedStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		challenges = reauth.NewRedisStore(rdb, "reauth")
		used = stepup.NewRedisUsedStore(rdb, "stepup")
	} else {
		// process-local stores: single-instance deployments only
		challenges = reauth.NewMemoryStore(nil)
		used = stepup.NewMemoryUsedStore(nil)
	}

	issuer := &tokens.Issuer{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		ReauthSecret:  cfg.ReauthSecret,
	}
	credentials := &repo.CredentialRepo{DB: db}
	gate := &stepup.Gate{
		ReauthSecret: cfg.ReauthSecret,
		Used:         used,
		Audit:        dispatcher,
	}

	authSvc := &service.AuthService{
		Repo:   credentials,
		Issuer: issuer,
		Gate:   gate,
		Audit:  dispatcher,
	}
	reauthMgr := &reauth.Manager{
		Repo:   credentials,
		Store:  challenges,
		Issuer: issuer,
		Sender: &reauth.LogSender{Log: logger},
		Audit:  dispatcher,
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{
			Svc:    authSvc,
			Reauth: reauthMgr,
		},
		AccessSecret: cfg.AccessSecret,
	})

	go func() {
		if err := e.Start(cfg.Addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}

	dispatcher.Close()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			log.Printf("kafka close: %v", err)
		}
	}
}
