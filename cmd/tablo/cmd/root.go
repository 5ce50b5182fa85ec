package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/tablo/internal/config"
	"github.com/MeKo-Tech/tablo/internal/models"
	"github.com/MeKo-Tech/tablo/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tablo",
	Short: "Table extraction from document images",
	Long: `tablo finds the table in a document image, recognizes the words inside it and
rebuilds the rows and columns as a clean grid.

This tool provides:
- Table region detection with an ONNX object detection model
- Word recognition with Tesseract, AWS Textract or Google Cloud Vision
- Reconstruction from pre-recognized word fragments (no models needed)
- JSON, CSV and plain text output
- Both CLI and server modes

Examples:
  tablo image invoice.png --format csv
  tablo pdf statement.pdf --page 2
  tablo fragments words.json --headers Date,Amount
  tablo serve --port 8080`,
	Version:      version.String(),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. fang.Execute is used by main instead; this entry point
// exists for callers that want plain cobra behaviour.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/tablo, /etc/tablo)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	defaultModelsDir := models.DefaultModelsDir
	if envDir := os.Getenv(models.EnvModelsDir); envDir != "" {
		defaultModelsDir = envDir
	}
	rootCmd.PersistentFlags().String("models-dir", defaultModelsDir,
		"directory containing ONNX models and tessdata (can also be set via "+models.EnvModelsDir+")")

	mustBind("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	mustBind("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBind("models_dir", rootCmd.PersistentFlags().Lookup("models-dir"))

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}
		setupLogging(globalConfig)
	}
}

// setupLogging installs a JSON slog handler. Logs go to stderr so table output on stdout
// stays machine readable.
func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the configuration including flags bound after the initial load.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		initConfig()
	}

	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

// mustBind binds a flag to a configuration key on the global viper instance.
func mustBind(key string, flag *pflag.Flag) {
	if err := GetConfigLoader().BindFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", key, err))
	}
}

// bindFlags binds command flags to configuration keys.
func bindFlags(cmd *cobra.Command, bindings map[string]string) {
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			panic("unknown flag " + flag)
		}
		mustBind(key, f)
	}
}
