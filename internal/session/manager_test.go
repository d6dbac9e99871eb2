package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"healthguard/internal/agent"
	"healthguard/internal/config"
	"healthguard/internal/store"
	"healthguard/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// echoLLM answers every conversation with the last user message.
type echoLLM struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (e *echoLLM) Complete(_ context.Context, msgs []types.Message) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail {
		return "", errors.New("provider down")
	}
	return "Response: echo " + msgs[len(msgs)-1].Content, nil
}

func (e *echoLLM) Name() string { return "echo" }

func newTestManager(t *testing.T, llm types.LLMClient) (*Manager, Dependencies) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(store.DriverMattn, filepath.Join(dir, "hg.db"))
	require.NoError(t, err)

	deps := Dependencies{
		Config:      config.DefaultConfig(),
		Store:       st,
		Transcripts: store.NewTranscriptStore(filepath.Join(dir, "transcripts")),
		AgentLLM:    llm,
	}
	m, err := NewManager(deps)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close(context.Background()) })
	return m, deps
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Dependencies{})
	require.Error(t, err)
}

func TestBuildRegistry(t *testing.T) {
	_, deps := newTestManager(t, &echoLLM{})
	reg, err := BuildRegistry(deps, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"medication_tool", "symptom_tool", "medical_info_tool", "health_analysis_tool"}, reg.Names())
}

func TestGetReturnsSameSession(t *testing.T) {
	m, _ := newTestManager(t, &echoLLM{})
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]*Session, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Get(ctx, "p1")
			assert.NoError(t, err)
			got[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range got[1:] {
		assert.Same(t, got[0], s)
	}
	assert.NotEmpty(t, got[0].ID)

	other, err := m.Get(ctx, "p2")
	require.NoError(t, err)
	assert.NotSame(t, got[0], other)
	assert.NotEqual(t, got[0].ID, other.ID)

	def, err := m.Get(ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPatientID, def.PatientID)

	assert.Equal(t, []string{config.DefaultPatientID, "p1", "p2"}, m.Patients())
}

func TestSendPersistsTranscript(t *testing.T) {
	m, deps := newTestManager(t, &echoLLM{})
	ctx := context.Background()

	s, err := m.Get(ctx, "p1")
	require.NoError(t, err)

	turn, err := s.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo Patient: hello", turn.Answer)
	assert.Equal(t, agent.OutcomeResponse, turn.Outcome)

	want := []types.Message{
		types.NewMessage(types.RoleUser, "hello"),
		types.NewMessage(types.RoleAssistant, "echo Patient: hello"),
	}
	assert.Equal(t, want, s.History())

	onDisk, err := deps.Transcripts.Load("p1")
	require.NoError(t, err)
	assert.Equal(t, want, onDisk)

	conv := s.Conversation()
	require.Len(t, conv, 3)
	assert.Equal(t, types.RoleSystem, conv[0].Role)
	assert.Contains(t, conv[0].Content, "medication_tool")
}

func TestSessionsAreIsolated(t *testing.T) {
	m, _ := newTestManager(t, &echoLLM{})
	ctx := context.Background()

	a, _ := m.Get(ctx, "alice")
	b, _ := m.Get(ctx, "bob")

	var wg sync.WaitGroup
	for _, s := range []*Session{a, b} {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				_, err := s.Send(ctx, s.PatientID)
				assert.NoError(t, err)
			}
		}(s)
	}
	wg.Wait()

	assert.Len(t, a.History(), 6)
	assert.Len(t, b.History(), 6)
	for _, msg := range a.History() {
		assert.NotContains(t, msg.Content, "bob")
	}
}

func TestProviderFailureStillRecorded(t *testing.T) {
	m, _ := newTestManager(t, &echoLLM{fail: true})
	s, err := m.Get(context.Background(), "p1")
	require.NoError(t, err)

	turn, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeProviderError, turn.Outcome)
	assert.Equal(t, config.DefaultConfig().Agent.ApologyMessage, s.History()[1].Content)
}

func TestClear(t *testing.T) {
	m, deps := newTestManager(t, &echoLLM{})
	ctx := context.Background()
	s, _ := m.Get(ctx, "p1")
	s.Send(ctx, "one")
	s.Send(ctx, "two")

	msg, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, agent.ClearedText, msg)
	assert.Empty(t, s.History())
	assert.Len(t, s.Conversation(), 1)
	assert.NoFileExists(t, deps.Transcripts.Path("p1"))
}

func TestExistingTranscriptLoaded(t *testing.T) {
	m, deps := newTestManager(t, &echoLLM{})
	prior := []types.Message{
		types.NewMessage(types.RoleUser, "earlier"),
		types.NewMessage(types.RoleAssistant, "reply"),
	}
	require.NoError(t, deps.Transcripts.Save("p9", prior))

	s, err := m.Get(context.Background(), "p9")
	require.NoError(t, err)
	assert.Equal(t, prior, s.History())
	assert.Len(t, s.Conversation(), 1, "agent starts from the system prompt")
}

func TestFlushAndClose(t *testing.T) {
	m, deps := newTestManager(t, &echoLLM{})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		s, err := m.Get(ctx, id)
		require.NoError(t, err)
		_, err = s.Send(ctx, "hi "+id)
		require.NoError(t, err)
	}

	// Another writer appends to "a"; a flush of clean sessions must keep it.
	require.NoError(t, deps.Transcripts.Append("a", types.NewMessage(types.RoleUser, "from another process")))

	require.NoError(t, m.Flush(ctx))
	msgs, err := deps.Transcripts.Load("a")
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	require.NoError(t, m.Close(ctx))
	require.NoError(t, m.Close(ctx))
	_, err = m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseAfterClearKeepsTranscriptDeleted(t *testing.T) {
	m, deps := newTestManager(t, &echoLLM{})
	ctx := context.Background()

	s, err := m.Get(ctx, "p2")
	require.NoError(t, err)
	_, err = s.Send(ctx, "hello")
	require.NoError(t, err)
	_, err = s.Clear()
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx))
	assert.NoFileExists(t, deps.Transcripts.Path("p2"))
}

func TestFlushRewritesAfterFailedAppend(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(store.DriverMattn, filepath.Join(dir, "hg.db"))
	require.NoError(t, err)

	blocked := filepath.Join(dir, "transcripts")
	transcripts := store.NewTranscriptStore(blocked)
	m, err := NewManager(Dependencies{
		Config:      config.DefaultConfig(),
		Store:       st,
		Transcripts: transcripts,
		AgentLLM:    &echoLLM{},
	})
	require.NoError(t, err)
	ctx := context.Background()

	s, err := m.Get(ctx, "p1")
	require.NoError(t, err)

	// A regular file where the transcript directory should be makes appends fail.
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0600))
	turn, err := s.Send(ctx, "hello")
	require.Error(t, err)
	assert.Equal(t, "echo Patient: hello", turn.Answer)
	assert.Len(t, s.History(), 2)

	require.NoError(t, os.Remove(blocked))
	require.NoError(t, m.Close(ctx))

	msgs, err := transcripts.Load("p1")
	require.NoError(t, err)
	assert.Equal(t, s.History(), msgs)
}

func TestCollidingPatientIDsStayIsolated(t *testing.T) {
	m, deps := newTestManager(t, &echoLLM{})
	ctx := context.Background()

	dotted, err := m.Get(ctx, "p.1")
	require.NoError(t, err)
	plain, err := m.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotSame(t, dotted, plain)

	_, err = dotted.Send(ctx, "secret of p.1")
	require.NoError(t, err)
	_, err = plain.Send(ctx, "hello from p1")
	require.NoError(t, err)
	require.NoError(t, m.Flush(ctx))

	for id, want := range map[string]string{"p1": "hello from p1", "p.1": "secret of p.1"} {
		msgs, err := deps.Transcripts.Load(id)
		require.NoError(t, err)
		require.Len(t, msgs, 2, id)
		assert.Equal(t, want, msgs[0].Content)
	}
}

func TestOpenFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = config.ProviderOpenAI
	cfg.LLM.APIKey = "test"
	cfg.Storage.Driver = store.DriverModernc
	cfg.Storage.DatabasePath = filepath.Join(dir, "hg.db")
	cfg.Storage.TranscriptsDir = filepath.Join(dir, "transcripts")
	cfg.Tools.MedicalInfo.SearchEnabled = true

	m, err := Open(cfg)
	require.NoError(t, err)
	assert.NotNil(t, m.deps.Searcher)
	assert.Equal(t, "openai", m.deps.ToolLLM.Name())
	assert.Equal(t, store.DriverModernc, m.Store().Driver())

	s, err := m.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, s.Agent().Tools(), 4)
	require.NoError(t, m.Close(context.Background()))

	cfg.LLM.Provider = "llama"
	_, err = Open(cfg)
	require.Error(t, err)
}
