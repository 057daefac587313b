package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/klejdi94/weft/runlog"
)

var (
	serveAddr string
	serveMax  int

	statsTemplate string
	statsModel    string
	statsGroupBy  string
	statsSince    time.Duration
	statsLimit    int
	statsPrices   []string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVar(&serveMax, "max", 100000, "max in-memory records when store=memory (0 = unbounded)")

	statsCmd.Flags().StringVar(&statsTemplate, "template", "", "filter by template name")
	statsCmd.Flags().StringVar(&statsModel, "model", "", "filter by model")
	statsCmd.Flags().StringVar(&statsGroupBy, "group-by", "template", "group by template, model, day, or hour")
	statsCmd.Flags().DurationVar(&statsSince, "since", 0, "only runs newer than this (e.g. 24h)")
	statsCmd.Flags().IntVar(&statsLimit, "limit", 0, "cap the number of rows")
	statsCmd.Flags().StringArrayVar(&statsPrices, "price", nil, "model rate in USD per 1K tokens, model=input:output (repeatable)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run log over HTTP",
	Long:  "Serve the run log store over HTTP: POST /records, GET /summary, GET /health.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openRunlog(serveMax)
		if err != nil {
			return err
		}
		defer closeStore()
		srv := runlog.NewServer(store, serveAddr, logger)
		return srv.ListenAndServe()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pricing, err := runlog.ParsePricing(statsPrices)
		if err != nil {
			return err
		}
		store, closeStore, err := openRunlog(0)
		if err != nil {
			return err
		}
		defer closeStore()
		query := runlog.Query{
			Template: statsTemplate,
			Model:    statsModel,
			GroupBy:  statsGroupBy,
			Limit:    statsLimit,
		}
		if statsSince > 0 {
			query.From = time.Now().Add(-statsSince)
		}
		summaries, err := store.Summarize(cmd.Context(), query)
		if err != nil {
			return err
		}
		for _, s := range summaries {
			fmt.Printf("%s\truns=%d\tfailures=%d\tavg_ms=%.0f\ttokens=%d/%d",
				s.Key, s.Invocations, s.Failures, s.AvgLatencyMs, s.PromptTokens, s.CompletionTokens)
			if len(pricing) > 0 {
				fmt.Printf("\tcost=$%.4f", pricing.SummaryCost(s))
			}
			fmt.Println()
		}
		return nil
	},
}
