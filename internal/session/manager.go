package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"healthguard/internal/agent"
	"healthguard/internal/config"
	"healthguard/internal/logging"
	"healthguard/internal/perception"
	"healthguard/internal/store"
	"healthguard/internal/tools"
	"healthguard/internal/tools/analysis"
	"healthguard/internal/tools/medication"
	"healthguard/internal/tools/medinfo"
	"healthguard/internal/tools/symptom"
	"healthguard/internal/types"
)

// ErrClosed is returned by a Manager after Close.
var ErrClosed = errors.New("session manager closed")

// Tool calls use a cooler, shorter completion than the agent itself.
const (
	toolTemperature = 0.1
	toolMaxTokens   = 2000
)

// Dependencies are the shared resources every session draws on.
type Dependencies struct {
	Config      *config.Config
	Store       *store.LocalStore
	Transcripts *store.TranscriptStore

	// AgentLLM drives the conversation loop.
	AgentLLM types.LLMClient
	// ToolLLM parses free-text tool input and writes analyses. Defaults to AgentLLM.
	ToolLLM types.LLMClient
	// Searcher backs medical_info_tool. Nil answers from the LLM only.
	Searcher medinfo.Searcher
}

// Manager maps patient ids to live sessions.
type Manager struct {
	deps Dependencies

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
	group    singleflight.Group
}

// NewManager creates a manager over deps.
func NewManager(deps Dependencies) (*Manager, error) {
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	if deps.Store == nil || deps.Transcripts == nil || deps.AgentLLM == nil {
		return nil, fmt.Errorf("session manager requires a store, a transcript store and an LLM client")
	}
	if deps.ToolLLM == nil {
		deps.ToolLLM = deps.AgentLLM
	}
	return &Manager{deps: deps, sessions: make(map[string]*Session)}, nil
}

// Open builds a manager from cfg: it opens the database and creates the LLM
// clients and the web searcher the configuration asks for.
func Open(cfg *config.Config) (*Manager, error) {
	timer := logging.StartTimer(logging.CategorySession, "session.Open")
	defer timer.Stop()

	agentLLM, err := perception.NewClientFromConfig(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	toolCfg := cfg.LLM
	toolCfg.Temperature = toolTemperature
	toolCfg.MaxTokens = toolMaxTokens
	toolLLM, err := perception.NewClientFromConfig(toolCfg)
	if err != nil {
		return nil, fmt.Errorf("create tool LLM client: %w", err)
	}

	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}

	deps := Dependencies{
		Config:      cfg,
		Store:       st,
		Transcripts: store.NewTranscriptStore(cfg.Storage.TranscriptsDir),
		AgentLLM:    agentLLM,
		ToolLLM:     toolLLM,
	}
	if mi := cfg.Tools.MedicalInfo; mi.SearchEnabled {
		deps.Searcher = medinfo.NewDuckDuckGo(mi.SearchURL, mi.MaxResults, mi.GetTimeout())
	}

	m, err := NewManager(deps)
	if err != nil {
		st.Close()
		return nil, err
	}
	return m, nil
}

// Store returns the shared database.
func (m *Manager) Store() *store.LocalStore { return m.deps.Store }

// Transcripts returns the transcript store.
func (m *Manager) Transcripts() *store.TranscriptStore { return m.deps.Transcripts }

// Get returns the session for patientID, creating it on first use.
// Concurrent first calls for the same patient share one creation.
func (m *Manager) Get(ctx context.Context, patientID string) (*Session, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		patientID = m.deps.Config.Tools.DefaultPatientID
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrClosed
	}
	if s, ok := m.sessions[patientID]; ok {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	v, err, shared := m.group.Do(patientID, func() (interface{}, error) {
		m.mu.RLock()
		if s, ok := m.sessions[patientID]; ok {
			m.mu.RUnlock()
			return s, nil
		}
		m.mu.RUnlock()

		s, err := m.create(patientID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return nil, ErrClosed
		}
		m.sessions[patientID] = s
		return s, nil
	})
	if err != nil {
		logging.SessionError("Get(%s) failed: %v", patientID, err)
		return nil, err
	}
	if shared {
		logging.SessionDebug("Get(%s): shared in-flight creation", patientID)
	}
	return v.(*Session), nil
}

func (m *Manager) create(patientID string) (*Session, error) {
	registry, err := BuildRegistry(m.deps, patientID)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	audit := logging.AuditWithSession(id, patientID)
	a, err := agent.New(m.deps.AgentLLM, registry, m.deps.Config.Agent, agent.WithAudit(audit))
	if err != nil {
		return nil, err
	}
	return newSession(id, patientID, a, audit, m.deps.Transcripts)
}

// BuildRegistry instantiates the four domain tools for one patient.
func BuildRegistry(deps Dependencies, patientID string) (*tools.Registry, error) {
	toolLLM := deps.ToolLLM
	if toolLLM == nil {
		toolLLM = deps.AgentLLM
	}

	registry := tools.NewRegistry()
	all := []tools.Tool{
		medication.New(deps.Store, toolLLM, patientID),
		symptom.New(deps.Store, toolLLM, patientID),
		medinfo.New(toolLLM, deps.Searcher),
		analysis.New(toolLLM),
	}
	for _, t := range all {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Patients returns the ids of the live sessions, sorted.
func (m *Manager) Patients() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Flush rewrites, concurrently, the transcripts of sessions whose appends failed.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	start := time.Now()
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for _, s := range sessions {
		s := s
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			if err := s.Flush(); err != nil {
				return fmt.Errorf("flush %s: %w", s.PatientID, err)
			}
			return nil
		})
	}
	err := eg.Wait()
	logging.Session("Flushed %d sessions in %v", len(sessions), time.Since(start))
	return err
}

// Close flushes sessions with unsaved exchanges and closes the database. It is safe to call twice.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	flushErr := m.Flush(ctx)

	m.mu.Lock()
	for _, s := range m.sessions {
		s.end()
	}
	m.closed = true
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	closeErr := m.deps.Store.Close()
	return errors.Join(flushErr, closeErr)
}
