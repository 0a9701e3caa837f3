package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tariff-migration/internal/config"
	"tariff-migration/internal/migration"
	"tariff-migration/internal/model"
	"tariff-migration/internal/report"
	"tariff-migration/internal/scenario"
)

var (
	// Global flags
	configFile   string
	scenarioFile string
	outPath      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Predict customer migration between electricity tariffs",
		Long: `Runs the tariff migration engine on a scenario file (YAML or JSON) holding
customers, tariffs, evaluations and current subscriptions.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config (default: built-in)")
	rootCmd.PersistentFlags().StringVarP(&scenarioFile, "scenario", "s", "examples/scenario.yaml", "Path to scenario file")

	rootCmd.AddCommand(predictCmd(migration.KindPublish))
	rootCmd.AddCommand(predictCmd(migration.KindRevoke))
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// predictCmd runs one prediction; kind selects publish ("predict") or revoke.
func predictCmd(kind string) *cobra.Command {
	use, short := "predict", "Predict subscriptions after publishing the scenario's candidate"
	if kind == migration.KindRevoke {
		use, short = "revoke", "Predict subscriptions after revoking the scenario's candidate"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := scenario.Load(scenarioFile)
			if err != nil {
				return fmt.Errorf("failed to load scenario: %w", err)
			}
			if kind == migration.KindRevoke && s.Candidate == nil {
				return fmt.Errorf("revoke needs a candidate in %s", scenarioFile)
			}
			tariffs, customers, err := s.Build()
			if err != nil {
				return err
			}
			orch, err := migration.New(cfg, tariffs, customers)
			if err != nil {
				return err
			}

			req := s.Request()
			var predicted model.Predicted
			if kind == migration.KindRevoke {
				predicted, err = orch.PredictMigrationForRevoke(context.Background(), req)
			} else {
				predicted, err = orch.PredictMigration(context.Background(), req)
			}
			if err != nil {
				return err
			}

			var candidate model.TariffID
			if s.Candidate != nil {
				candidate = s.Candidate.ID
			}
			rows := report.Rows(s.Subscriptions, predicted, candidate)
			if outPath != "" {
				if err := report.WriteCSVFile(outPath, rows); err != nil {
					return err
				}
				fmt.Printf("Wrote %d rows to %s\n", len(rows), outPath)
			}

			fmt.Printf("%-10s %-10s %-12s %-12s\n", "tariff", "candidate", "current", "predicted")
			for _, t := range report.Totals(rows) {
				mark := ""
				if t.TariffID == candidate {
					mark = "*"
				}
				fmt.Printf("%-10d %-10s %-12.3f %-12.3f\n", t.TariffID, mark, t.Current, t.Predicted)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Optional path to write the per-customer CSV (e.g. results/migration.csv)")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config and scenario files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := scenario.Load(scenarioFile)
			if err != nil {
				return err
			}
			fmt.Printf("config ok: chain=%v engine=%s dummy=%s profiles=%d\n",
				cfg.Predictor.Chain, cfg.Regression.Engine, cfg.Predictor.DummyPolicy, len(cfg.Profiles))
			fmt.Printf("scenario ok: %d customers, %d tariffs, %d competitors, candidate=%v\n",
				len(s.Customers), len(s.Tariffs), len(s.Competitors), s.Candidate != nil)
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
