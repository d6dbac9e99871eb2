package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"healthguard/internal/agent"
	"healthguard/internal/config"
	"healthguard/internal/logging"
	"healthguard/internal/session"
	"healthguard/internal/types"
)

// WelcomeMessage opens every chat.
const WelcomeMessage = "Welcome to HealthGuard! How can I assist you with your health management today?"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6"))
	roleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8B5CF6"))
	stepStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// printer writes answers as rendered markdown, or verbatim in plain mode.
type printer struct {
	w        io.Writer
	renderer *glamour.TermRenderer
}

func newPrinter(w io.Writer, plain bool) *printer {
	p := &printer{w: w}
	if plain {
		return p
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err == nil {
		p.renderer = renderer
	}
	return p
}

func (p *printer) markdown(text string) string {
	if p.renderer == nil {
		return text + "\n"
	}
	out, err := p.renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func (p *printer) answer(text string) {
	fmt.Fprint(p.w, p.markdown(text))
}

func (p *printer) history(patient string, msgs []types.Message) {
	if len(msgs) == 0 {
		fmt.Fprintf(p.w, "No conversation history for patient %s.\n", patient)
		return
	}
	for _, m := range msgs {
		label := "You"
		if m.Role == types.RoleAssistant {
			label = "HealthGuard"
		}
		fmt.Fprintln(p.w, roleStyle.Render(label+":"))
		fmt.Fprint(p.w, p.markdown(m.Content))
	}
}

func (p *printer) step(s agent.Step) {
	switch s.Kind {
	case agent.StepTool:
		fmt.Fprintln(p.w, stepStyle.Render(fmt.Sprintf("  → %s", s.Action.ToolName)))
	case agent.StepMalformed:
		fmt.Fprintln(p.w, stepStyle.Render("  → reminding the model of the reply format"))
	}
}

// runChat runs the interactive loop until /exit, EOF or an interrupt.
func runChat(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if w := startConfigWatcher(ctx); w != nil {
		defer w.Stop()
	}

	s, err := mgr.Get(ctx, patient)
	if err != nil {
		return err
	}

	out := newPrinter(cmd.OutOrStdout(), plain)
	return chatLoop(ctx, cmd.InOrStdin(), out, s)
}

func chatLoop(ctx context.Context, in io.Reader, out *printer, s *session.Session) error {
	fmt.Fprintln(out.w, titleStyle.Render(WelcomeMessage))
	fmt.Fprintf(out.w, "Patient: %s  (type /history, /clear or /exit)\n\n", s.PatientID)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out.w, promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out.w)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			fmt.Fprintln(out.w, "Goodbye! Take care.")
			return nil
		case "/history":
			out.history(s.PatientID, s.History())
			continue
		case "/clear":
			msg, err := s.Clear()
			if err != nil {
				fmt.Fprintln(out.w, errorStyle.Render("Could not delete the saved transcript: "+err.Error()))
			}
			fmt.Fprintln(out.w, msg)
			continue
		}

		turnCtx, cancel := context.WithTimeout(ctx, timeout)
		turn, err := s.Send(turnCtx, line)
		cancel()
		if verbose {
			for _, st := range turn.Steps {
				out.step(st)
			}
		}
		out.answer(turn.Answer)
		if err != nil {
			fmt.Fprintln(out.w, errorStyle.Render("Transcript not saved: "+err.Error()))
		}
	}
}

// startConfigWatcher reapplies logging settings when the config file changes.
func startConfigWatcher(ctx context.Context) *config.Watcher {
	if _, err := os.Stat(configPath); err != nil {
		return nil
	}
	w, err := config.NewWatcher(configPath, func(cfg *config.Config) {
		if err := logging.Initialize(cfg.Logging.Options()); err != nil {
			logger.Warn("reapply logging config", zap.Error(err))
			return
		}
		logger.Info("configuration reloaded", zap.String("path", configPath))
	})
	if err != nil {
		logger.Warn("config watcher disabled", zap.Error(err))
		return nil
	}
	if err := w.Start(ctx); err != nil {
		logger.Warn("config watcher disabled", zap.Error(err))
		return nil
	}
	return w
}
