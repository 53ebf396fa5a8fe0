package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"interaction-gateway/internal/config"
	"interaction-gateway/internal/logging"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "interaction-gateway",
		Short:        "Video interaction event ingestion gateway",
		SilenceUsage: true,
	}

	cmd.SetOut(os.Stdout)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMaterializeCmd())
	cmd.AddCommand(newReplayCmd())

	return cmd
}

// setup loads configuration and builds the process logger.
func setup() (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
