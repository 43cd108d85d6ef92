package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/balancednetwork/balanced-network-interface-sub005/config"
	"github.com/balancednetwork/balanced-network-interface-sub005/internal/relayer"
)

var (
	environment string
	configFile  string
	rootCmd     = &cobra.Command{
		Use:   "relayer",
		Short: "Balanced cross-chain transfer relayer",
		Run:   run,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, args []string) {
	config.LoadEnv()
	config.InitLogger()
	if err := config.Load(environment); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	service, err := relayer.NewService(config.GlobalConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create relayer service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := service.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start relayer service")
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down relayer...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	service.Stop(shutdownCtx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&environment,
		"env",
		"local",
		"Environment name resolving the chains configuration file",
	)
	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Chains configuration file, overrides data/<env>/chains.json",
	)
	viper.BindPFlag("env", rootCmd.PersistentFlags().Lookup("env"))
	viper.BindPFlag("CONFIG_CHAINS", rootCmd.PersistentFlags().Lookup("config"))
}
