// Command postflopd serves solver sessions over HTTP.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/timpalpant/postflop/server"
	"github.com/timpalpant/postflop/store"
)

// Config is read from the environment, after loading a .env file if one
// exists.
type Config struct {
	Addr         string        `env:"POSTFLOP_ADDR" env-default:"localhost:8080" env-description:"Listen address"`
	StoreDSN     string        `env:"POSTFLOP_STORE_DSN" env-default:"postflop.db" env-description:"postgres:// URL or SQLite path"`
	SolveTimeout time.Duration `env:"POSTFLOP_SOLVE_TIMEOUT" env-default:"10m" env-description:"Maximum duration of one solve request"`
}

func main() {
	envFile := flag.String("env", ".env", "Environment file to load, if present")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		glog.Warningf("Error loading %s: %v", *envFile, err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		help, _ := cleanenv.GetDescription(&cfg, nil)
		glog.Exitf("Invalid configuration: %v\n%s", err, help)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.StoreDSN)
	if err != nil {
		glog.Exitf("Error opening store: %v", err)
	}
	defer st.Close()

	srv := server.New(st)
	srv.SolveTimeout = cfg.SolveTimeout
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	glog.Infof("Listening on %s", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		glog.Exit(err)
	}
}
