package main

import (
	"errors"
	"fmt"

	"StockSim/internal/di"
	"StockSim/internal/domain/models"
	xhttp "StockSim/pkg/http"

	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	var req models.SeedRequest
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a synthetic daily close series into ClickHouse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if verrs := xhttp.ValidateRequest(cmd.Context(), &req); len(verrs) > 0 {
				return xhttp.ValidationFailed(verrs)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cli, err := di.InitializeCLI(cfg)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer cli.Close()
			if cli.Seed == nil {
				return errors.New("seed requires clickhouse.enabled")
			}

			table, series, err := cli.Seed.Seed(cmd.Context(), req)
			if err != nil {
				return err
			}
			first, last := series.Points[0], series.Points[series.Len()-1]
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s (%s %.4f .. %s %.4f)\n",
				series.Len(), table,
				first.Date.Format("2006-01-02"), first.Close,
				last.Date.Format("2006-01-02"), last.Close)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Target.Database, "database", "default", "target database")
	f.StringVar(&req.Target.Table, "table", "DEMO_PRICES", "target table (replaced)")
	f.StringVar(&req.Symbol, "symbol", "DEMO", "symbol written to every row")
	f.StringVar(&req.Start, "start", "2024-01-02", "first trading day")
	f.IntVar(&req.Days, "days", 252, "number of trading days")
	f.Float64Var(&req.StartPrice, "price", 100, "first close")
	f.Float64Var(&req.Drift, "drift", 0.0003, "daily drift")
	f.Float64Var(&req.Volatility, "volatility", 0.015, "daily volatility")
	f.Uint64Var(&req.Seed, "seed", 42, "random seed")
	f.StringVar(&req.Exchange, "exchange", "xnys", "exchange calendar (ISO 10383 MIC, empty for every day)")
	return cmd
}
