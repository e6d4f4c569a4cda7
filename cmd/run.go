package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spigell/lead-matcher/internal/dataset"
	"github.com/spigell/lead-matcher/internal/location"
	"github.com/spigell/lead-matcher/internal/logger"
	"github.com/spigell/lead-matcher/internal/matching"
	"github.com/spigell/lead-matcher/internal/realestate"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptWrite           = "Write results to files"
	PromptReportByClients = "Report by clients"
	PromptReportUnmatched = "Report unmatched clients"
	PromptReviewClient    = "Review a client"
	PromptExit            = "Exit"
	PromptBack            = "back"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Procced?",
	Items: []string{PromptWrite, PromptReportByClients, PromptReportUnmatched, PromptReviewClient, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Rank the catalog for every client and explain the clients left without a match",
	PreRun: func(cmd *cobra.Command, _ []string) {
		bindInputFlags(cmd)
		viper.BindPFlag("output.matches", cmd.Flags().Lookup("matches"))
		viper.BindPFlag("output.unmatched", cmd.Flags().Lookup("unmatched"))
		viper.BindPFlag("match.workers", cmd.Flags().Lookup("workers"))
	},
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	defaults := defaultConfig()

	runCmd.Flags().BoolP("auto-approve", "y", false, "write the results without asking")
	runCmd.Flags().String("matches", defaults.Output.Matches, "where to write the matches (csv or json)")
	runCmd.Flags().String("unmatched", defaults.Output.Unmatched, "where to write the unmatched clients (csv or json)")
	runCmd.Flags().Int("workers", defaults.Match.Workers, "clients ranked concurrently")
	addInputFlags(runCmd, defaults)
}

type results struct {
	config    *Config
	matches   *matching.Matches
	unmatched []*matching.UnmatchedReport
	summary   matching.UnmatchedSummary
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the lead-matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	for _, warning := range config.Match.Validate() {
		logger.Warn("questionable configuration", zap.String("warning", warning))
	}

	resolver := location.New(*config.Locations)
	listings, clients := loadInputs(config, resolver, logger)

	engine := matching.NewEngine(config.Match, resolver, listings, logger)
	engine.LogFilters()

	batch, err := engine.Run(ctx, clients)
	if err != nil {
		logger.Fatal("ranking clients", zap.Error(err))
	}

	res := &results{config: config, matches: batch.Matches()}
	logger.Info("matching finished",
		zap.Int("matches", res.matches.Len()),
		zap.Int("matched_clients", batch.MatchedClients()),
		zap.Int("clients", clients.Len()),
	)
	logClientSummary(logger, res.matches.Summary(), clients.Len())

	res.unmatched, res.summary = engine.Unmatched(batch)
	logUnmatchedSummary(logger, res.summary, config.Match.MinScore)

	matching.Diagnose(res.matches, config.Match.Scoring.Weights).Log(logger)

	autoApprove := cmd.Flag("auto-approve").Value.String() == "true"
	if autoApprove {
		if err := writeResults(logger, res); err != nil {
			logger.Fatal("writing results", zap.Error(err))
		}
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, res, clients); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, res *results, clients *realestate.Clients) error {
	switch action {
	case PromptWrite:
		return writeResults(logger, res)
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptReportByClients:
		pretty, _ := json.MarshalIndent(res.matches.ReportByClient(), "", "  ")
		logger.Info(string(pretty), zap.Int("matches count", res.matches.Len()))
		return nil
	case PromptReportUnmatched:
		pretty, _ := json.MarshalIndent(unmatchedReport(res.unmatched, res.config.Match.MinScore), "", "  ")
		logger.Info(string(pretty), zap.Int("unmatched count", len(res.unmatched)))
		return nil
	case PromptReviewClient:
		return reviewClients(logger, res, clients)
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func writeResults(logger *zap.Logger, res *results) error {
	if res.matches.Len() == 0 {
		logger.Info("skipping matches file", zap.String("reason", "no matches"), zap.String("filename", res.config.Output.Matches))
	} else {
		if err := dataset.WriteMatches(res.config.Output.Matches, res.matches); err != nil {
			return fmt.Errorf("write matches: %w", err)
		}
		logger.Info("matches written", zap.String("filename", res.config.Output.Matches), zap.Int("rows", res.matches.Len()))
	}

	if err := dataset.WriteUnmatched(res.config.Output.Unmatched, res.unmatched, res.config.Match.MinScore); err != nil {
		return fmt.Errorf("write unmatched: %w", err)
	}
	logger.Info("unmatched written", zap.String("filename", res.config.Output.Unmatched), zap.Int("rows", len(res.unmatched)))
	return nil
}

// reviewClients lets the operator pick one client and prints its candidates or its near miss.
func reviewClients(logger *zap.Logger, res *results, clients *realestate.Clients) error {
	unmatched := make(map[string]*matching.UnmatchedReport, len(res.unmatched))
	for _, r := range res.unmatched {
		unmatched[r.ClientID] = r
	}

	for {
		items := make([]string, 0, clients.Len()+1)
		for _, c := range clients.Items {
			items = append(items, fmt.Sprintf("%s %s / %d matches", c.ID, c.Name, len(res.matches.ForClient(c.ID))))
		}

		clientPrompt := promptui.Select{
			Label: "Choose a client and press ENTER",
			Items: append(items, PromptBack),
			Size:  15,
		}

		_, selected, err := clientPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		clientID := strings.Split(selected, " ")[0]
		client := clients.FindByID(clientID)
		if client == nil {
			return fmt.Errorf("there is no such client id %s", clientID)
		}

		if candidates := res.matches.ForClient(clientID); len(candidates) > 0 {
			report := &matching.Matches{Items: candidates}
			pretty, _ := json.MarshalIndent(report.ReportByClient(), "", "  ")
			logger.Info(string(pretty), zap.Int("matches count", len(candidates)))
			continue
		}
		if r, ok := unmatched[clientID]; ok {
			pretty, _ := json.MarshalIndent(unmatchedReport([]*matching.UnmatchedReport{r}, res.config.Match.MinScore), "", "  ")
			logger.Info(string(pretty))
			continue
		}
		logger.Info("client has no matches", zap.String("client_id", clientID))
	}
}

func logClientSummary(log *zap.Logger, summary []matching.ClientSummary, total int) {
	for _, s := range summary {
		log.Debug("client candidates", append(logger.ClientFields(s.ClientID, s.ClientName), zap.Int("candidates", s.Candidates))...)
	}

	pct := 0.0
	if total > 0 {
		pct = float64(len(summary)) / float64(total) * 100
	}
	log.Info("clients with matches",
		zap.String("matched", fmt.Sprintf("%d/%d", len(summary), total)),
		zap.String("share", fmt.Sprintf("%.1f%%", pct)),
	)
}

func logUnmatchedSummary(log *zap.Logger, summary matching.UnmatchedSummary, minScore float64) {
	log.Info("unmatched clients",
		zap.Int("total", summary.Total),
		zap.Int("unmatched", summary.Unmatched),
	)
	for _, rc := range summary.Reasons {
		log.Info("unmatched reason",
			zap.String("reason", string(rc.Reason)),
			zap.String("label", rc.Reason.LabelWithThreshold(minScore)),
			zap.Int("clients", rc.Clients),
			zap.String("share", fmt.Sprintf("%.1f%%", rc.Percent)),
		)
	}
}

// unmatchedReport renders reports the way ReportByClient renders matches.
func unmatchedReport(reports []*matching.UnmatchedReport, minScore float64) map[string]map[string]string {
	out := make(map[string]map[string]string, len(reports))
	for _, r := range reports {
		entry := map[string]string{
			"source":  r.CandidateSource,
			"score":   fmt.Sprintf("%.3f", r.Score),
			"reasons": r.Reasons.Labels(minScore),
			"wanted": fmt.Sprintf("%s / price %s / rooms %s / %s", r.Client.Operation, r.Client.Price,
				r.Client.Rooms, realestate.JoinTokens(r.Client.LocationTokens)),
		}
		if r.Listing != nil {
			entry["listing"] = r.Listing.ID
			entry["url"] = r.Listing.Link
			entry["listing_reasons"] = r.ListingReasons.Labels(minScore)
		}
		out[fmt.Sprintf("%s (%s)", r.ClientName, r.ClientID)] = entry
	}
	return out
}
