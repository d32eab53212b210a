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

	"perftest/internal/dummy"
)

var stubAddr string

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Run a local stub gateway to test against",
	Long: `Serves an OpenAI-compatible stub on /v1/chat/completions, /v1/responses,
and /v1/embeddings with simulated latency and the overhead header, so runs
can be exercised without a real gateway.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server := dummy.NewServer(stubAddr)

		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			log.WithField("addr", stubAddr).Info("Stub gateway listening")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Fatal("Stub gateway error")
			}
		}()

		<-done
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	stubCmd.Flags().StringVar(&stubAddr, "addr", ":4000", "listen address")
}
