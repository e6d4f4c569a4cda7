package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spigell/lead-matcher/internal/location"
	"github.com/spigell/lead-matcher/internal/logger"
	"github.com/spigell/lead-matcher/internal/matching"
	"github.com/spigell/lead-matcher/internal/realestate"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Show the filter verdicts and the score breakdown for one client",
	PreRun: func(cmd *cobra.Command, _ []string) {
		bindInputFlags(cmd)
	},
	Run: func(cmd *cobra.Command, _ []string) {
		explain(cmd)
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)

	addInputFlags(explainCmd, defaultConfig())
	explainCmd.Flags().String("client", "", "client id to explain")
	explainCmd.Flags().String("listing", "", "listing id to check against the client. Default is the client ranking.")
	explainCmd.MarkFlagRequired("client")
}

func explain(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	resolver := location.New(*config.Locations)
	listings, clients := loadInputs(config, resolver, logger)

	clientID := cmd.Flag("client").Value.String()
	client := clients.FindByID(clientID)
	if client == nil {
		logger.Fatal("client not found", zap.String("client_id", clientID))
	}

	engine := matching.NewEngine(config.Match, resolver, listings, logger)

	if listingID := cmd.Flag("listing").Value.String(); listingID != "" {
		listing := listings.FindByID(listingID)
		if listing == nil {
			logger.Fatal("listing not found", zap.String("listing_id", listingID))
		}
		pretty, _ := json.MarshalIndent(pairReport(engine.Evaluate(listing, client), config.Match.MinScore), "", "  ")
		logger.Info(string(pretty), zap.String("client_id", client.ID), zap.String("listing_id", listing.ID))
		return
	}

	batch, err := engine.Run(context.Background(), &realestate.Clients{Items: []*realestate.ClientProfile{client}})
	if err != nil {
		logger.Fatal("ranking client", zap.Error(err))
	}

	if matches := batch.Matches(); matches.Len() > 0 {
		pretty, _ := json.MarshalIndent(matches.ReportByClient(), "", "  ")
		logger.Info(string(pretty), zap.Int("matches count", matches.Len()))
		return
	}

	reports, _ := engine.Unmatched(batch)
	pretty, _ := json.MarshalIndent(unmatchedReport(reports, config.Match.MinScore), "", "  ")
	logger.Info(string(pretty), zap.String("client_id", client.ID))
}

func pairReport(eval matching.Evaluation, minScore float64) map[string]string {
	verdict := "candidate"
	switch {
	case !eval.Filter.Passes:
		verdict = "rejected by hard filters"
	case eval.Score.Score < minScore:
		verdict = "below min score"
	}

	report := map[string]string{
		"verdict":   verdict,
		"score":     fmt.Sprintf("%.4f", eval.Score.Score),
		"min_score": fmt.Sprintf("%g", minScore),
		"neutral":   fmt.Sprintf("%t", eval.Score.Neutral),
	}
	if !eval.Filter.Passes {
		report["reasons"] = eval.Filter.Reasons.Labels(minScore)
	}
	for _, c := range eval.Score.Active {
		report["s_"+string(c)] = fmt.Sprintf("%.4f", eval.Score.Detail.Get(c))
	}
	return report
}
