package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/compactorclient"
	"github.com/cuemby/compactord/pkg/coordinator"
	"github.com/cuemby/compactord/pkg/log"
	"github.com/cuemby/compactord/pkg/membership"
	"github.com/cuemby/compactord/pkg/metrics"
	"github.com/cuemby/compactord/pkg/retry"
	"github.com/cuemby/compactord/pkg/tserverclient"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "compactord",
	Short:   "External compaction coordinator: dispatches tablet-server compaction work to pulling compactors",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"compactord version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator, serving compactors and tablet servers",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", ":9998", "Address to serve the coordinator gRPC API on")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics on")
	serveCmd.Flags().Duration("poll-interval", 5*time.Second, "How often to poll tablet servers for advertised work")
	serveCmd.Flags().Uint("poll-fanout", 16, "Max concurrent tablet servers polled per cycle")
	serveCmd.Flags().Duration("completion-min-backoff", 100*time.Millisecond, "Minimum backoff when retrying a tablet-server completion notification")
	serveCmd.Flags().Duration("completion-max-backoff", 10*time.Second, "Maximum backoff when retrying a tablet-server completion notification")
	serveCmd.Flags().Int("completion-max-retries", 5, "Max attempts notifying a tablet server of job completion before giving up")
	serveCmd.Flags().StringSlice("tserver", nil, "Tablet server address (host:port), repeatable; static membership until a cluster membership service is wired in")
}

func runServe(cmd *cobra.Command, args []string) error {
	listen, _ := cmd.Flags().GetString("listen")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
	pollFanout, _ := cmd.Flags().GetUint("poll-fanout")
	minBackoff, _ := cmd.Flags().GetDuration("completion-min-backoff")
	maxBackoff, _ := cmd.Flags().GetDuration("completion-max-backoff")
	maxRetries, _ := cmd.Flags().GetInt("completion-max-retries")
	tserverAddrs, _ := cmd.Flags().GetStringSlice("tserver")

	servers, err := parseTabletServers(tserverAddrs)
	if err != nil {
		return err
	}
	members := membership.NewStatic(servers...)

	cfg := coordinator.Config{
		PollInterval: pollInterval,
		PollFanout:   pollFanout,
		CompletionRetry: retry.Config{
			MinBackoff: minBackoff,
			MaxBackoff: maxBackoff,
			MaxRetries: maxRetries,
		},
		ListenAddr: listen,
	}

	co := coordinator.New(cfg, tserverclient.NewGRPCDialer(), compactorclient.NewGRPCDialer(), members, nil)

	metrics.SetVersion(Version)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		fmt.Printf("metrics endpoint: http://%s/metrics\n", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := co.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	fmt.Printf("coordinator serving on %s (%d static tablet servers)\n", listen, len(servers))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("shutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "coordinator error: %v\n", err)
	}

	co.Stop()
	return nil
}

func parseTabletServers(addrs []string) ([]compaction.TabletServerID, error) {
	out := make([]compaction.TabletServerID, 0, len(addrs))
	for _, addr := range addrs {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid --tserver %q: %w", addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --tserver %q: port must be numeric: %w", addr, err)
		}
		out = append(out, compaction.TabletServerID{Host: host, Port: port, Session: "static"})
	}
	return out, nil
}
