package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jekabolt/grbpwr-attribution/config"
	"github.com/jekabolt/grbpwr-attribution/internal/attribution"
	"github.com/jekabolt/grbpwr-attribution/internal/store"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "grbpwr-attribution",
		Short: "Service serving attribution and cohort metrics",
		RunE:  run,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the grbpwr-attribution service version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	modelsCmd = &cobra.Command{
		Use:   "models",
		Short: "List the supported attribution models",
		Run: func(cmd *cobra.Command, args []string) {
			for _, d := range attribution.Models() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", d.Model, d.Label)
			}
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the metadata store migrations and exit",
		RunE:  migrate,
	}

	cfgFile string
	version string
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file (optional)")
	rootCmd.AddCommand(versionCmd, modelsCmd, migrateCmd, cohortCmd)
	if err := rootCmd.Execute(); err != nil {
		slog.Default().Error("can't start the service", slog.String("err", err.Error()))
		os.Exit(-1)
	}
}

func migrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("cannot load a config %v", err.Error())
	}
	cfg.DB.Automigrate = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db, err := store.New(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("cannot migrate the metadata store %v", err.Error())
	}
	db.Close()
	return nil
}
