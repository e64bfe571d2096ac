// Package server assembles the attendance services from configuration and runs them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"attendly/internal/attendance"
	"attendly/internal/config"
	"attendly/internal/database"
	"attendly/internal/lease"
	"attendly/internal/metrics"
	"attendly/internal/rotation"
	"attendly/internal/router"
	"attendly/internal/store"
	"attendly/internal/suggest"
	"attendly/internal/util"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// App holds every wired service of a running server.
type App struct {
	Config      *config.Config
	DB          *gorm.DB
	Store       *store.Gorm
	Sessions    *attendance.Manager
	Coordinator *lease.Coordinator
	Engine      *rotation.Engine
	Suggest     *suggest.Service
	Registry    *prometheus.Registry
	Handler     http.Handler
	Log         *zap.Logger
}

// New opens the database and wires the services. The caller owns Close.
func New(cfg *config.Config, clk clock.Clock, log *zap.Logger) (*App, error) {
	db, err := database.Init(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	app, err := Wire(cfg, db, clk, log)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return app, nil
}

// Wire builds the services on an open, migrated database.
func Wire(cfg *config.Config, db *gorm.DB, clk clock.Clock, log *zap.Logger) (*App, error) {
	hasher, err := util.NewClientIDHasher(cfg.Security.ClientIDSecret)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}

	s := store.New(db)
	a := &App{
		Config:      cfg,
		DB:          db,
		Store:       s,
		Coordinator: lease.NewCoordinator(s, clk, cfg.Attendance.LeaseDuration(), log.Named("lease"), m),
		Engine:      rotation.NewEngine(s, clk, cfg.Attendance.Grace(), log.Named("rotation"), m),
		Sessions: attendance.NewManager(s, hasher, clk, attendance.Options{
			SessionWindow: cfg.Attendance.SessionWindow(),
			Grace:         cfg.Attendance.Grace(),
		}, log.Named("attendance"), m),
		Suggest:  suggest.NewService(s, cfg.Suggest.BatchSize, cfg.Suggest.Limit, log.Named("suggest")),
		Registry: reg,
		Log:      log,
	}

	engine := router.SetupRouter(router.Deps{
		Config:      cfg,
		Store:       s,
		Sessions:    a.Sessions,
		Coordinator: a.Coordinator,
		Engine:      a.Engine,
		Suggest:     a.Suggest,
		Clock:       clk,
		Gatherer:    reg,
		Log:         log.Named("http"),
	})
	a.Handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(engine)
	return a, nil
}

// Run serves HTTP and sweeps expired sessions until ctx is done or either fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Server.Addr(),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return a.Sessions.RunSweeper(ctx, a.Config.Attendance.SweepInterval())
	})
	return g.Wait()
}

func (a *App) Close() error {
	return database.Close(a.DB)
}
