package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"velicia/wsbridge"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve chat sessions over WebSocket",
	Long: `Start a long-running WebSocket server. Clients connect to /ws to send turns,
manage sessions and list models; every session change is pushed to all
connected clients. /healthz reports liveness.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := newRuntime(runtimeOptions{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer rt.Close()

		addr := rt.cfg.Server.Listen
		if serveListen != "" {
			addr = serveListen
		}

		server := wsbridge.NewServer(wsbridge.Options{
			Controller:     rt.controller,
			Store:          rt.store,
			Catalog:        rt.router,
			Logger:         rt.logger.Named("wsbridge"),
			AllowedOrigins: rt.cfg.Server.AllowedOrigins,
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Serving on ws://%s/ws\n", addr)
		if err := server.ListenAndServe(ctx, addr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("\nShutting down...")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Address to listen on (overrides server.listen)")
}
