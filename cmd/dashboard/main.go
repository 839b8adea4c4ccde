package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-dashboard-client/apiclient"
	"github.com/jrsteele09/go-dashboard-client/cache"
	"github.com/jrsteele09/go-dashboard-client/controller"
	"github.com/jrsteele09/go-dashboard-client/internal/config"
	"github.com/jrsteele09/go-dashboard-client/session"
	"github.com/jrsteele09/go-dashboard-client/store/sqlitestore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running client: %s\n", err)
	}
	log.Printf("Client stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	displayAppname(c.AppName)

	logger := newLogger(c.LogLevel)

	db, err := sqlitestore.Open(c.StorePath)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer db.Close() //nolint:errcheck

	tokens := session.NewTokenStore(db)
	scope := session.NewScopeStore(db)

	client, err := apiclient.New(c.APIBaseURL, tokens, scope,
		apiclient.WithRetries(c.RetryBudget),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		return errors.Wrap(err, "build api client")
	}

	requestCache, err := cache.New(client, scope, db,
		cache.WithDedupeInterval(c.DedupeInterval),
		cache.WithMaxEntries(c.MaxCacheEntries),
		cache.WithLogger(logger),
	)
	if err != nil {
		return errors.Wrap(err, "build request cache")
	}

	sessionController, err := controller.New(controller.Deps{
		Tokens: tokens,
		Scope:  scope,
		API:    apiclient.NewDashboardAPI(client),
		Cache:  requestCache,
	}, client.Expiry(), controller.WithLogger(logger))
	if err != nil {
		return errors.Wrap(err, "build session controller")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := sessionController.Restore(ctx); err != nil {
		cancel()
		return errors.Wrap(err, "restore session")
	}
	cancel()

	logger.Info().
		Str("state", string(sessionController.State())).
		Msg("session state after restore")
	if id, ok := sessionController.ActiveAdvertiserID(); ok {
		logger.Info().Int64("advertiser", id).Msg("active advertiser")
	}

	waitForStopSignal()

	if err := requestCache.SaveSnapshot(); err != nil {
		logger.Warn().Err(err).Msg("cache snapshot not saved")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
