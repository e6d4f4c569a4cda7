package cmd

import (
	"errors"

	"github.com/spigell/lead-matcher/internal/dataset"
	"github.com/spigell/lead-matcher/internal/location"
	"github.com/spigell/lead-matcher/internal/logger"
	"github.com/spigell/lead-matcher/internal/realestate"
	"github.com/spigell/lead-matcher/internal/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const maxRawLogLength = 60

// addInputFlags registers the dataset flags. Flag defaults are the built-in defaults, since
// viper falls back to them over the prefilled config.
func addInputFlags(cmd *cobra.Command, defaults *Config) {
	cmd.Flags().StringP("listings", "l", defaults.Input.Listings, "listings dataset (csv, json or sqlite)")
	cmd.Flags().StringP("clients", "c", defaults.Input.Clients, "clients dataset (csv, json or sqlite)")
}

// bindInputFlags binds the dataset flags of the command being run. Several commands share
// the keys, so binding happens once the command is known.
func bindInputFlags(cmd *cobra.Command) {
	viper.BindPFlag("input.listings", cmd.Flags().Lookup("listings"))
	viper.BindPFlag("input.clients", cmd.Flags().Lookup("clients"))
}

// loadInputs reads and decodes both datasets. Any failure here stops the run: the batch
// needs both the catalog and the clients.
func loadInputs(config *Config, resolver *location.Resolver, log *zap.Logger) (*realestate.Listings, *realestate.Clients) {
	decoder := realestate.NewDecoder(resolver)

	rawListings, err := dataset.Load(config.Input.Listings, config.Input.ListingsTable)
	if err != nil {
		fatalLoad(log, "loading listings", err)
	}
	listings, issues, err := decoder.Listings(rawListings)
	if err != nil {
		log.Fatal("decoding listings", zap.Error(err))
	}
	logIssues(log, "listing", issues)
	log.Info("loaded listings", zap.String("path", config.Input.Listings), zap.Int("count", listings.Len()))

	rawClients, err := dataset.Load(config.Input.Clients, config.Input.ClientsTable)
	if err != nil {
		fatalLoad(log, "loading clients", err)
	}
	clients, issues, err := decoder.Clients(rawClients)
	if err != nil {
		log.Fatal("decoding clients", zap.Error(err))
	}
	logIssues(log, "client", issues)
	log.Info("loaded clients", zap.String("path", config.Input.Clients), zap.Int("count", clients.Len()))

	if listings.Len() == 0 {
		log.Warn("catalog is empty", zap.String("hint", "every client will be reported as sin_inventario"))
	}

	return listings, clients
}

func fatalLoad(log *zap.Logger, step string, err error) {
	if errors.Is(err, dataset.ErrMissingInput) {
		log.Fatal(step, zap.Error(err),
			zap.String("hint", "set input.listings and input.clients in the config or pass --listings and --clients"),
		)
	}
	log.Fatal(step, zap.Error(err))
}

func logIssues(log *zap.Logger, kind string, issues []realestate.DecodeIssue) {
	for _, issue := range issues {
		log.Debug("decoding "+kind,
			append(logger.StringFields(
				logger.StringField{Key: "id", Value: issue.ID},
				logger.StringField{Key: "field", Value: issue.Field},
				logger.StringField{Key: "raw", Value: utils.TruncateForLog(issue.Raw, maxRawLogLength)},
				logger.StringField{Key: "problem", Value: issue.Problem},
			), zap.Int("record", issue.Record))...,
		)
	}
	if len(issues) > 0 {
		log.Warn("decoded with issues", zap.String("kind", kind), zap.Int("issues", len(issues)))
	}
}
