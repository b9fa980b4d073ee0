package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nirolabs/niro/internal/astro"
	"github.com/nirolabs/niro/internal/extract"
	"github.com/nirolabs/niro/internal/genai"
	"github.com/nirolabs/niro/internal/models"
	"github.com/nirolabs/niro/internal/store"
)

// capturingGenerator records the last payload it was asked to render.
type capturingGenerator struct {
	mu      sync.Mutex
	last    *models.GeneratorPayload
	calls   int
	failErr error
}

func (g *capturingGenerator) Generate(ctx context.Context, payload models.GeneratorPayload) (models.NiroReply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	p := payload
	g.last = &p
	if g.failErr != nil {
		return models.NiroReply{}, g.failErr
	}
	return models.NiroReply{Summary: "ok", Reasons: []string{"captured payload"}}, nil
}

type failingProvider struct{}

func (failingProvider) FetchProfile(ctx context.Context, userID string, birth models.BirthDetails) (*models.AstroProfile, error) {
	return nil, errors.New("provider down")
}

func (failingProvider) FetchTransits(ctx context.Context, userID string, birth models.BirthDetails, from, to time.Time) (*models.AstroTransits, error) {
	return nil, errors.New("provider down")
}

func newTestOrchestrator(t *testing.T, gen genai.Generator, provider astro.Provider) (*Orchestrator, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	if provider == nil {
		provider = astro.NewStubProvider()
	}
	cache := astro.NewCache(st, provider)
	orch := New(st, extract.NewExtractor(nil), cache, gen)
	return orch, st
}

func completeBirth() *models.BirthDetails {
	return &models.BirthDetails{DOB: "1985-10-10", TOB: "10:47", Location: "Dehradun"}
}

func TestHandleMessageGatesOnMissingBirthDetails(t *testing.T) {
	orch, st := newTestOrchestrator(t, genai.NewStubGenerator(), nil)

	resp, err := orch.HandleMessage(context.Background(), models.ChatRequest{
		SessionID: "s1",
		Message:   "how is my career looking",
		ActionID:  "ask_career",
	})
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if resp.Mode != models.ModeNeedsBirthDetails {
		t.Errorf("expected needs-birth-details mode, got %s", resp.Mode)
	}
	if resp.Reply.Summary == "" {
		t.Error("expected a non-empty reply even without birth details")
	}
	if len(resp.SuggestedActions) == 0 {
		t.Error("expected suggested actions in needs-details mode")
	}

	state, err := st.GetSession("s1")
	if err != nil || state == nil {
		t.Fatalf("expected persisted session, got state=%v err=%v", state, err)
	}
	if state.MessageCount != 1 {
		t.Errorf("expected message count 1, got %d", state.MessageCount)
	}
}

func TestHandleMessageExtractsBirthDetailsFromText(t *testing.T) {
	orch, st := newTestOrchestrator(t, genai.NewStubGenerator(), nil)

	resp, err := orch.HandleMessage(context.Background(), models.ChatRequest{
		SessionID: "s1",
		Message:   "Manu Pant, 10-10-1985, 10:47am, Dehradun",
	})
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if resp.Mode != models.ModeNormalReading {
		t.Errorf("expected normal reading after extraction, got %s", resp.Mode)
	}

	state, _ := st.GetSession("s1")
	if !state.BirthDetails.Complete() {
		t.Fatal("expected complete birth details on state")
	}
	if state.BirthDetails.DOB != "1985-10-10" || state.BirthDetails.TOB != "10:47" || state.BirthDetails.Location != "Dehradun" {
		t.Errorf("unexpected birth details: %+v", state.BirthDetails)
	}
}

func TestHandleMessagePreSuppliedBirthDetails(t *testing.T) {
	gen := &capturingGenerator{}
	orch, _ := newTestOrchestrator(t, gen, nil)

	resp, err := orch.HandleMessage(context.Background(), models.ChatRequest{
		SessionID:    "s1",
		Message:      "will I get a promotion this year",
		BirthDetails: completeBirth(),
	})
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if resp.Mode != models.ModeNormalReading {
		t.Errorf("expected normal reading, got %s", resp.Mode)
	}
	if resp.Topic != models.TopicCareer {
		t.Errorf("expected career topic from keywords, got %s", resp.Topic)
	}
	if gen.last == nil {
		t.Fatal("expected generator invocation")
	}
	if gen.last.Features.Ascendant == "" {
		t.Error("expected feature bundle with core chart fields in payload")
	}
}

func TestHandleMessageActionIDSetsTopic(t *testing.T) {
	gen := &capturingGenerator{}
	orch, _ := newTestOrchestrator(t, gen, nil)

	resp, err := orch.HandleMessage(context.Background(), models.ChatRequest{
		SessionID:    "s1",
		Message:      "tell me about my job prospects",
		ActionID:     "ask_money",
		BirthDetails: completeBirth(),
	})
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if resp.Topic != models.TopicMoney {
		t.Errorf("expected action id to outrank keywords, got topic %s", resp.Topic)
	}
}

func TestHandleMessageGeneratorFailureFallsBack(t *testing.T) {
	gen := &capturingGenerator{failErr: errors.New("llm down")}
	orch, _ := newTestOrchestrator(t, gen, nil)

	resp, err := orch.HandleMessage(context.Background(), models.ChatRequest{
		SessionID:    "s1",
		Message:      "career outlook please",
		BirthDetails: completeBirth(),
	})
	if err != nil {
		t.Fatalf("expected degraded reply, got error: %v", err)
	}
	if resp.Reply.Summary == "" {
		t.Error("expected deterministic fallback reply")
	}
}

func TestHandleMessageProviderFailureFallsBack(t *testing.T) {
	orch, _ := newTestOrchestrator(t, genai.NewStubGenerator(), failingProvider{})

	resp, err := orch.HandleMessage(context.Background(), models.ChatRequest{
		SessionID:    "s1",
		Message:      "career outlook please",
		BirthDetails: completeBirth(),
	})
	if err != nil {
		t.Fatalf("expected degraded reply, got error: %v", err)
	}
	if resp.Reply.Summary == "" {
		t.Error("expected deterministic fallback reply when chart data is unavailable")
	}
	if resp.Mode != models.ModeNormalReading {
		t.Errorf("provider failure must not flip the mode, got %s", resp.Mode)
	}
}

func TestHandleMessageFirstReadingIsRetrospective(t *testing.T) {
	gen := &capturingGenerator{}
	orch, st := newTestOrchestrator(t, gen, nil)

	_, err := orch.HandleMessage(context.Background(), models.ChatRequest{
		SessionID:    "s1",
		Message:      "how is work going to be",
		BirthDetails: completeBirth(),
	})
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	state, _ := st.GetSession("s1")
	if !state.HasDoneRetro {
		t.Error("expected retrospective flag set after first full reading")
	}
}

func TestHandleMessageDailyGuidanceSkipsRetrospective(t *testing.T) {
	gen := &capturingGenerator{}
	orch, st := newTestOrchestrator(t, gen, nil)

	_, err := orch.HandleMessage(context.Background(), models.ChatRequest{
		SessionID:    "s1",
		Message:      "guidance for today please",
		ActionID:     "daily_guidance",
		BirthDetails: completeBirth(),
	})
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	state, _ := st.GetSession("s1")
	if state.HasDoneRetro {
		t.Error("daily guidance must not count as the retrospective reading")
	}
	if gen.last == nil {
		t.Fatal("expected generator invocation")
	}
	if len(gen.last.Features.PastEvents) != 0 {
		t.Error("expected no past events on a non-retrospective turn")
	}
}

func TestHandleMessageValidation(t *testing.T) {
	orch, _ := newTestOrchestrator(t, genai.NewStubGenerator(), nil)

	if _, err := orch.HandleMessage(context.Background(), models.ChatRequest{Message: "hi"}); err == nil {
		t.Error("expected error for missing session id")
	}
	if _, err := orch.HandleMessage(context.Background(), models.ChatRequest{SessionID: "s1"}); err == nil {
		t.Error("expected error for empty message and action")
	}
}

func TestHandleMessageSerializesPerSession(t *testing.T) {
	orch, st := newTestOrchestrator(t, genai.NewStubGenerator(), nil)

	const turns = 10
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := orch.HandleMessage(context.Background(), models.ChatRequest{
				SessionID: "s1",
				Message:   fmt.Sprintf("message %d about my career", i),
			})
			if err != nil {
				t.Errorf("concurrent turn failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	state, _ := st.GetSession("s1")
	if state.MessageCount != turns {
		t.Errorf("expected message count %d after serialized turns, got %d", turns, state.MessageCount)
	}
}

func TestSetBirthDetailsAndGetSession(t *testing.T) {
	orch, _ := newTestOrchestrator(t, genai.NewStubGenerator(), nil)

	if _, err := orch.GetSession("missing"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	if _, err := orch.SetBirthDetails("s1", models.BirthDetails{DOB: "1985-10-10"}); !errors.Is(err, models.ErrMissingBirthFields) {
		t.Errorf("expected ErrMissingBirthFields for incomplete details, got %v", err)
	}

	state, err := orch.SetBirthDetails("s1", *completeBirth())
	if err != nil {
		t.Fatalf("SetBirthDetails failed: %v", err)
	}
	if state.Mode != models.ModeNormalReading {
		t.Errorf("expected normal reading after setting details, got %s", state.Mode)
	}
	if state.BirthDetails.Timezone != models.DefaultTimezoneOffset {
		t.Errorf("expected default timezone applied, got %v", state.BirthDetails.Timezone)
	}

	got, err := orch.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !got.BirthDetails.Complete() {
		t.Error("expected complete birth details on snapshot")
	}
}

func TestResetSession(t *testing.T) {
	orch, st := newTestOrchestrator(t, genai.NewStubGenerator(), nil)

	if _, err := orch.SetBirthDetails("s1", *completeBirth()); err != nil {
		t.Fatalf("SetBirthDetails failed: %v", err)
	}
	if err := orch.ResetSession("s1"); err != nil {
		t.Fatalf("ResetSession failed: %v", err)
	}
	state, err := st.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if state != nil {
		t.Error("expected session gone after reset")
	}
}

func TestBuildSuggestedActionsShape(t *testing.T) {
	needs := &models.ConversationState{Mode: models.ModeNeedsBirthDetails}
	if got := buildSuggestedActions(needs, models.TopicGeneral); len(got) == 0 {
		t.Error("expected actions in needs-details mode")
	}

	normal := &models.ConversationState{Mode: models.ModeNormalReading, HasDoneRetro: true}
	actions := buildSuggestedActions(normal, models.TopicCareer)
	if len(actions) == 0 || len(actions) > MaxSuggestedActions {
		t.Fatalf("expected 1..%d actions, got %d", MaxSuggestedActions, len(actions))
	}
	for _, a := range actions {
		if a.ID == "ask_career" {
			t.Error("active topic must not be re-suggested")
		}
		if a.ID == "past_themes" {
			t.Error("past themes must not be suggested after the retrospective reading")
		}
	}
}
