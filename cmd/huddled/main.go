package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/huddle-dev/huddle/internal/hub"
	"github.com/huddle-dev/huddle/internal/logging"
	"github.com/huddle-dev/huddle/internal/server"
	"github.com/huddle-dev/huddle/internal/version"
)

func main() {
	addr := flag.String("addr", defaultAddr(), "listen address")
	flag.Parse()

	// the quiet default suits the TUI binary; a server wants its lifecycle logs
	log := logging.New("huddled")
	hubLog := logging.New("hub")
	if _, ok := os.LookupEnv("LOG_LEVEL"); !ok {
		log = log.Level(zerolog.InfoLevel)
		hubLog = hubLog.Level(zerolog.InfoLevel)
	}
	log.Info().Str("version", version.Version).Str("addr", *addr).Msg("starting signaling server")

	h := hub.New(hubLog)
	go h.Run()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           server.NewRouter(h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func defaultAddr() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}
