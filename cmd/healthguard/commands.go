package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"healthguard/internal/config"
	"healthguard/internal/session"
	"healthguard/internal/store"
)

// signalContext cancels on SIGINT/SIGTERM and after timeout.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// runAsk sends one message through a fresh session.
func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	patient := resolvePatient(cfg)

	mgr, err := session.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(context.Background()); err != nil {
			logger.Warn("close sessions", zap.Error(err))
		}
	}()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	s, err := mgr.Get(ctx, patient)
	if err != nil {
		return err
	}

	message := joinArgs(args)
	logger.Info("Processing message", zap.String("patient", patient), zap.Int("length", len(message)))

	turn, err := s.Send(ctx, message)
	if err != nil {
		logger.Warn("transcript not saved", zap.Error(err))
	}
	logger.Debug("turn finished",
		zap.String("turn", turn.ID),
		zap.String("outcome", turn.Outcome.String()),
		zap.Int("steps", len(turn.Steps)),
		zap.Duration("duration", turn.Duration))

	out := newPrinter(cmd.OutOrStdout(), plain)
	out.answer(turn.Answer)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	patient := resolvePatient(cfg)

	msgs, err := store.NewTranscriptStore(cfg.Storage.TranscriptsDir).Load(patient)
	if err != nil {
		return err
	}
	newPrinter(cmd.OutOrStdout(), plain).history(patient, msgs)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	patient := resolvePatient(cfg)

	if err := store.NewTranscriptStore(cfg.Storage.TranscriptsDir).Clear(patient); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Conversation history cleared for patient %s.\n", patient)
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	patient := resolvePatient(cfg)

	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	seeded, err := st.SeedDemoPatient(cmd.Context(), patient)
	if err != nil {
		return err
	}
	if !seeded {
		fmt.Fprintf(cmd.OutOrStdout(), "Patient %s already has medications; nothing seeded.\n", patient)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded sample medications, dose logs and symptoms for patient %s.\n", patient)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !forceInit {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	shown := *cfg
	if shown.LLM.APIKey != "" {
		shown.LLM.APIKey = "********"
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
