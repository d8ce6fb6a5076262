package main

import (
	"encoding/json"
	"fmt"

	"StockSim/internal/di"
	"StockSim/internal/domain/models"
	xhttp "StockSim/pkg/http"

	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	var (
		req       models.SimulationRequest
		seed      uint64
		saveDB    string
		saveTable string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one simulation and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if saveDB != "" {
				req.Save = &models.SaveTarget{Database: saveDB, Table: saveTable}
				if req.Save.Table == "" {
					req.Save.Table = cfg.Results.Table
				}
			}
			if verrs := xhttp.ValidateRequest(cmd.Context(), &req); len(verrs) > 0 {
				return xhttp.ValidationFailed(verrs)
			}

			cli, err := di.InitializeCLI(cfg)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer cli.Close()

			out, err := cli.Simulation.Simulate(cmd.Context(), req, models.TriggerCLI)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out.Response(req.IncludePaths))
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Source, "source", models.SourceClickHouse, "series source: clickhouse or yahoo")
	f.StringVar(&req.Database, "database", "", "ClickHouse database")
	f.StringVar(&req.Table, "table", "", "ClickHouse table")
	f.StringVar(&req.DateColumn, "date-column", "", "date column")
	f.StringVar(&req.CloseColumn, "close-column", "", "closing price column")
	f.StringVar(&req.Symbol, "symbol", "", "Yahoo symbol (e.g. SPX, AAPL)")
	f.StringVar(&req.From, "from", "", "series start (RFC3339, YYYY-MM-DD or unix seconds)")
	f.StringVar(&req.To, "to", "", "series end")
	f.IntVar(&req.Days, "days", 100, "trading days to simulate")
	f.IntVar(&req.Runs, "runs", 20, "number of simulated paths")
	f.Uint64Var(&seed, "seed", 0, "random seed (random when unset)")
	f.StringVar(&req.Scope, "scope", "", "summary scope: all or terminal (default simulation.default_scope)")
	f.BoolVar(&req.IncludePaths, "paths", false, "include every (day, run, close) row")
	f.StringVar(&saveDB, "save-database", "", "save rows into this ClickHouse database")
	f.StringVar(&saveTable, "save-table", "", "table for saved rows (default results.table)")
	return cmd
}
