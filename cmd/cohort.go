package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jekabolt/grbpwr-attribution/app"
	"github.com/jekabolt/grbpwr-attribution/config"
	"github.com/jekabolt/grbpwr-attribution/internal/dto"
	"github.com/jekabolt/grbpwr-attribution/internal/engine"
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/spf13/cobra"
)

var cohortFlags struct {
	account     string
	start       string
	end         string
	granularity string
	maxPeriods  int
	productIDs  []int64
}

var cohortCmd = &cobra.Command{
	Use:   "cohort",
	Short: "Print a cohort retention report for one shop as JSON",
	RunE:  cohort,
}

func init() {
	f := cohortCmd.Flags()
	f.StringVar(&cohortFlags.account, "account", "", "shop account")
	f.StringVar(&cohortFlags.start, "start", "", "first acquisition day, 2006-01-02")
	f.StringVar(&cohortFlags.end, "end", "", "last acquisition day, 2006-01-02 (defaults to start)")
	f.StringVar(&cohortFlags.granularity, "granularity", string(entity.CohortMonth), "week, month, quarter or year")
	f.IntVar(&cohortFlags.maxPeriods, "max-periods", 0, "periods per cohort (0 uses the granularity default)")
	f.Int64SliceVar(&cohortFlags.productIDs, "product-id", nil, "restrict to orders containing these products")
	cohortCmd.MarkFlagRequired("account")
	cohortCmd.MarkFlagRequired("start")
}

func cohort(cmd *cobra.Command, args []string) error {
	req := engine.CohortRequest{
		Account:     cohortFlags.account,
		Granularity: entity.CohortGranularity(cohortFlags.granularity),
		MaxPeriods:  cohortFlags.maxPeriods,
		ProductIDs:  cohortFlags.productIDs,
	}
	var err error
	if req.StartDate, err = time.Parse(time.DateOnly, cohortFlags.start); err != nil {
		return fmt.Errorf("bad --start: %w", err)
	}
	req.EndDate = req.StartDate
	if cohortFlags.end != "" {
		if req.EndDate, err = time.Parse(time.DateOnly, cohortFlags.end); err != nil {
			return fmt.Errorf("bad --end: %w", err)
		}
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("cannot load a config %v", err.Error())
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.Engine(cfg).Cohorts(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(dto.CohortsResponse{
		Meta:        dto.ConvertEnvelope(res.Envelope),
		Granularity: string(res.Granularity),
		Cohorts:     dto.ConvertCohorts(res.Cohorts),
		Summary:     dto.ConvertCohortSummary(res.Summary),
	})
}
