package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/janael-pinheiro/sos-agent/pkg/agent"
	"github.com/janael-pinheiro/sos-agent/pkg/display"
	"github.com/janael-pinheiro/sos-agent/pkg/logging"
	"github.com/janael-pinheiro/sos-agent/pkg/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	exitConfigError  = 2
	exitStartupAbort = 3
	exitFaulted      = 4
)

var (
	version = "dev"

	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sosagent",
		Short: "Water and humidity monitoring agent",
		Long: `sosagent samples temperature, humidity and a water-presence input,
sounds a local alert when humidity crosses the configured threshold and
reports telemetry to an MQTT or AMQP broker over mutual TLS.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/sosagent/config.yaml", "config file path")
	rootCmd.AddCommand(newRunCmd(), newValidateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring loop in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(run())
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := utils.LoadAgentConfig(configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
				os.Exit(exitConfigError)
			}
			fmt.Printf("%s is valid (%s broker %s:%d)\n", configPath, conf.Broker.Protocol, conf.Broker.Host, conf.Broker.Port)
			return nil
		},
	}
}

func run() int {
	conf, err := utils.LoadAgentConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return exitConfigError
	}
	if logLevel != "" {
		conf.Log.Level = logLevel
	}

	logger, closer := logging.NewRotatingLogrus(conf.Log.Level, conf.Log.File)
	defer closer.Close()
	log := logger.Get("Main")

	a, err := agent.New(conf, logger, display.NewConsole(os.Stdout))
	if err != nil {
		log.Errorf("cannot start agent: %v", err)
		if errors.Is(err, agent.ErrStartup) {
			return exitStartupAbort
		}
		return exitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = a.Run(ctx); err != nil {
		log.Errorf("agent stopped: %v", err)
		return exitFaulted
	}
	log.Infoln("agent stopped")
	return 0
}
