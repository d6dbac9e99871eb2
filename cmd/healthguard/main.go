package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"healthguard/internal/config"
	"healthguard/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	patientID  string
	timeout    time.Duration
	plain      bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "healthguard",
	Short: "HealthGuard - conversational health management assistant",
	Long: `HealthGuard helps patients track medications and symptoms, look up
medical information and review their health data through a conversational
agent backed by an LLM (OpenAI-compatible or Gemini).

Run without arguments to start the interactive chat.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Starts an interactive conversation for the selected patient.

Commands inside the chat:
  /history  show the saved transcript
  /clear    clear the conversation and the saved transcript
  /exit     leave the chat`,
	RunE: runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send a single message and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the saved transcript for the patient",
	RunE:  runHistory,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved transcript for the patient",
	RunE:  runClear,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample medications, dose logs and symptoms for the patient",
	RunE:  runSeed,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var forceInit bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&patientID, "patient", "p", "", "Patient id (default: tools.default_patient_id)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Timeout for a single message")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "Print answers without markdown rendering")

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and initializes category logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logging.Initialize(cfg.Logging.Options()); err != nil {
		logger.Warn("category logging disabled", zap.Error(err))
	}
	logger.Debug("configuration loaded",
		zap.String("path", configPath),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("database", cfg.Storage.DatabasePath))
	return cfg, nil
}

// resolvePatient picks the --patient flag or the configured default.
func resolvePatient(cfg *config.Config) string {
	if p := strings.TrimSpace(patientID); p != "" {
		return p
	}
	return cfg.Tools.DefaultPatientID
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
