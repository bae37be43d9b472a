package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"cache2k25/cmd/buildCFG"
	"cache2k25/internal/api/api"
	"cache2k25/internal/catalog"
	rabbitReader "cache2k25/internal/consumerWorker"
	"cache2k25/internal/gateway"
	"cache2k25/internal/mailer"
	"cache2k25/internal/rabbit"
	"cache2k25/internal/repo"
	"cache2k25/internal/service"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", ""); err != nil {
		log.Warn().Err(err).Msg("config.yaml not loaded, using environment and defaults")
	}

	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	dbCfg, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	repository, closeDB := openRepository(dbCfg, &log)
	defer closeDB()

	events := catalog.Default()
	if serverCfg.CatalogPath != "" {
		events, err = catalog.Load(serverCfg.CatalogPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load event catalog")
		}
	}

	gwCfg := buildCFG.BuildGatewayConfig(cfg, &log)
	gw := gateway.NewClient(gateway.Config{
		MerchantID: gwCfg.MerchantID,
		SaltKey:    gwCfg.SaltKey,
		SaltIndex:  gwCfg.SaltIndex,
		BaseURL:    gwCfg.BaseURL,
		Timeout:    gwCfg.Timeout,
	}, &log)

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}
	mailCfg, err := buildCFG.BuildMailConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load mail config")
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var publisher service.Publisher
	var reader *rabbitReader.Reader
	if rabbitCfg.Enabled {
		rmq, err := rabbit.NewRabbit(rabbit.Config{
			URL:      rabbitCfg.Url,
			Exchange: rabbitCfg.Exchange,
			Queue:    rabbitCfg.Queue,
		}, &log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()
		publisher = rmq

		var notifier rabbitReader.Notifier
		if mailCfg.Enabled {
			notifier = mailer.New(mailer.Config{
				Host:     mailCfg.Host,
				Port:     mailCfg.Port,
				From:     mailCfg.From,
				Password: mailCfg.Password,
			}, &log)
		}
		reader = rabbitReader.NewReader(rmq, notifier, &log)
		reader.Start(workerCtx)
	}

	serviceInstance := service.NewService(gw, repository, events, publisher, &log, serverCfg.FrontendURL)
	app := api.NewRouters(&api.Routers{
		Service:        serviceInstance,
		Log:            &log,
		AllowedOrigins: serverCfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + serverCfg.Port,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down server")
	}

	cancelWorkers()
	if reader != nil {
		reader.Stop()
	}
	log.Info().Msg("Shutdown complete")
}

// openRepository exits the process when the store is unreachable; nothing
// can be served without it.
func openRepository(dbCfg buildCFG.DBConfig, log *zerolog.Logger) (repo.Repository, func()) {
	if dbCfg.Driver == buildCFG.DriverSQLite {
		repository, sqlDB, err := repo.NewSQLiteRepository(dbCfg.SQLitePath, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open SQLite store")
		}
		log.Info().Str("path", dbCfg.SQLitePath).Msg("SQLite store opened")
		return repository, func() { _ = sqlDB.Close() }
	}

	db, err := dbpg.New(dbCfg.MasterDSN, dbCfg.SlaveDSNs, &dbpg.Options{
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}

	repository, err := repo.NewRepository(db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize repository")
	}
	log.Info().Msg("Database connected successfully")

	if err := repository.MigrateUp(dbCfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")

	return repository, func() { _ = db.Master.Close() }
}
