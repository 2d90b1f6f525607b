package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/schemalens/internal/config"
	"github.com/koustreak/schemalens/internal/database"
	"github.com/koustreak/schemalens/internal/database/mysql"
	"github.com/koustreak/schemalens/internal/database/postgres"
	"github.com/koustreak/schemalens/internal/database/scylla"
	"github.com/koustreak/schemalens/internal/logger"
	"github.com/koustreak/schemalens/internal/mcpserver"
	"github.com/koustreak/schemalens/internal/mcpserver/metrics"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configFile string
	envFile    string
	transport  string
	listenAddr string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "schemalens",
	Short: "Read-only schema introspection over MCP",
	Long: `schemalens serves read-only catalog introspection for one PostgreSQL,
MySQL or ScyllaDB/Cassandra database as MCP tools. Connection settings come
from POSTGRES_*, MYSQL_* or SCYLLA_* environment variables, optionally backed
by a YAML file and a dotenv file.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("schemalens %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// backendFactory resolves settings for one backend kind.
type backendFactory func(src *config.Source) (database.Backend, error)

func backendCmd(kind database.Kind, short string, factory backendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   string(kind),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, kind, factory)
		},
	}
}

func serve(cmd *cobra.Command, kind database.Kind, factory backendFactory) error {
	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
	}
	src, err := config.NewSource(configFile, os.LookupEnv)
	if err != nil {
		return err
	}

	logCfg := src.Log()
	if cmd.Flags().Changed("log-level") {
		logCfg.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		logCfg.Format = logFormat
	}
	log := logger.New(&logger.Config{
		Level:      logCfg.Level,
		Format:     logCfg.Format,
		TimeFormat: "rfc3339",
		Output:     os.Stderr,
	})

	backend, err := factory(src)
	if err != nil {
		log.ErrorWith("invalid configuration", err, map[string]interface{}{"backend": string(kind)})
		return err
	}

	srvCfg := src.Server()
	if cmd.Flags().Changed("transport") {
		srvCfg.Transport = transport
	}
	if cmd.Flags().Changed("listen") {
		srvCfg.Listen = listenAddr
	}

	server, err := mcpserver.New(mcpserver.Config{
		Logger:     log,
		Backend:    backend,
		Version:    version,
		Transport:  srvCfg.Transport,
		ListenAddr: srvCfg.Listen,
	})
	if err != nil {
		return err
	}
	metrics.BuildInfo.WithLabelValues(version, commit, date, string(kind)).Set(1)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.InfoWith("schemalens starting", map[string]interface{}{
		"backend":   string(kind),
		"transport": srvCfg.Transport,
		"version":   version,
	})
	if err := server.Run(ctx); err != nil {
		log.ErrorWith("server stopped with error", err, nil)
		return err
	}
	log.Info("schemalens stopped")
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML settings file (environment variables take precedence)")
	pf.StringVar(&envFile, "env-file", "", "dotenv file loaded into the environment before reading settings")
	pf.StringVar(&transport, "transport", mcpserver.TransportStdio, "MCP transport: stdio or http")
	pf.StringVar(&listenAddr, "listen", "127.0.0.1:8080", "listen address for the http transport")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "json", "log format: json or console")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(backendCmd(database.KindPostgres, "Serve a PostgreSQL database",
		func(src *config.Source) (database.Backend, error) {
			cfg, err := src.Postgres()
			if err != nil {
				return nil, err
			}
			return postgres.New(cfg), nil
		}))
	rootCmd.AddCommand(backendCmd(database.KindMySQL, "Serve a MySQL database",
		func(src *config.Source) (database.Backend, error) {
			cfg, err := src.MySQL()
			if err != nil {
				return nil, err
			}
			return mysql.New(cfg), nil
		}))
	rootCmd.AddCommand(backendCmd(database.KindScylla, "Serve a ScyllaDB or Cassandra cluster",
		func(src *config.Source) (database.Backend, error) {
			cfg, err := src.Scylla()
			if err != nil {
				return nil, err
			}
			return scylla.New(cfg), nil
		}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
