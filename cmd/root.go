package cmd

import (
	"errors"
	"log"

	"github.com/spigell/lead-matcher/internal/location"
	"github.com/spigell/lead-matcher/internal/matching"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "lead-matcher"
)

type Config struct {
	Input     *InputConfig     `mapstructure:"input"`
	Output    *OutputConfig    `mapstructure:"output"`
	Match     matching.Config  `mapstructure:"match"`
	Locations *location.Tables `mapstructure:"locations"`
}

type InputConfig struct {
	Listings      string `mapstructure:"listings"`
	Clients       string `mapstructure:"clients"`
	ListingsTable string `mapstructure:"listings-table"`
	ClientsTable  string `mapstructure:"clients-table"`
}

type OutputConfig struct {
	Matches   string `mapstructure:"matches"`
	Unmatched string `mapstructure:"unmatched"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "lead-matcher ranks property listings for every client of a real-estate brokerage",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("input.listings", "LEAD_MATCHER_LISTINGS"); err != nil {
		log.Fatalf("binding LEAD_MATCHER_LISTINGS environment variable: %v", err)
	}
	if err := viper.BindEnv("input.clients", "LEAD_MATCHER_CLIENTS"); err != nil {
		log.Fatalf("binding LEAD_MATCHER_CLIENTS environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is lead-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Only the matching commands read a config.
	if runCmd.CalledAs() == "" && explainCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting has a default, so a missing default config file is fine.
	// An explicit or unparseable one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func defaultConfig() *Config {
	tables := location.DefaultTables()
	return &Config{
		Input: &InputConfig{
			Listings:      "propiedades.csv",
			Clients:       "clientes.csv",
			ListingsTable: "listings",
			ClientsTable:  "clients",
		},
		Output: &OutputConfig{
			Matches:   "matches.csv",
			Unmatched: "matches_unmatched_top.csv",
		},
		Match:     matching.DefaultConfig(),
		Locations: &tables,
	}
}

// getConfig overlays the configured values on the defaults. Location tables from the config
// extend the built-in ones.
func getConfig() (*Config, error) {
	config := defaultConfig()
	err := viper.Unmarshal(config)
	if err != nil {
		return config, err
	}

	return config, nil
}
