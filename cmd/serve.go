package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"perftest/internal/api"
	"perftest/internal/config"
	"perftest/internal/orchestrator"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the load-test orchestrator API",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := config.LoadEnv()
		if err != nil {
			return err
		}

		addr := serveAddr
		if !cmd.Flags().Changed("addr") {
			if v := viper.GetString("PERFTEST_ADDR"); v != "" {
				addr = v
			}
		}

		coord := orchestrator.New(env, &orchestrator.EngineRunner{APIKey: env.APIKey})
		router := api.NewRouter(api.NewHandlers(env, coord))

		// No write timeout: run endpoints hold the response open for the
		// whole test duration.
		server := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			log.WithField("addr", addr).Info("Load-test API listening")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Fatal("Server error")
			}
		}()

		<-done
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8090", "listen address (env PERFTEST_ADDR)")
}
