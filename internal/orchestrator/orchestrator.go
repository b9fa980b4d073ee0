// Package orchestrator sequences the conversation pipeline for each
// incoming message.
//
// Per message: load or create the session, extract birth details when
// missing, route the mode, classify topic and timeframe, assemble the
// bounded feature bundle, call the generator, persist the updated state.
// Provider failures are absorbed here and answered with the deterministic
// fallback; no failure in the pipeline reaches the caller as an error
// except input validation.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nirolabs/niro/internal/astro"
	"github.com/nirolabs/niro/internal/extract"
	"github.com/nirolabs/niro/internal/genai"
	"github.com/nirolabs/niro/internal/models"
	"github.com/nirolabs/niro/internal/router"
	"github.com/nirolabs/niro/internal/store"
	"github.com/nirolabs/niro/internal/timeframe"
	"github.com/nirolabs/niro/internal/topics"
)

// DefaultGenerateTimeout bounds a single generator call. On expiry the
// turn degrades to the deterministic fallback reply.
const DefaultGenerateTimeout = 30 * time.Second

// Orchestrator wires the pipeline components for a process lifetime.
// Construct once at startup and share; it serializes turns per session
// while letting distinct sessions proceed in parallel.
type Orchestrator struct {
	store     store.Store
	extractor *extract.Extractor
	cache     *astro.Cache
	generator genai.Generator
	fallback  genai.Generator

	genTimeout time.Duration
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Opts holds configuration options for the orchestrator.
type Opts struct {
	GenerateTimeout time.Duration
	Now             func() time.Time
}

// Option defines a configuration option for the orchestrator.
type Option func(*Opts)

// WithGenerateTimeout overrides the generator call timeout.
func WithGenerateTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.GenerateTimeout = d
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(o *Opts) {
		o.Now = now
	}
}

// New creates an orchestrator over the given collaborators. The generator
// is normally a fallback chain; a deterministic stub backs it regardless,
// so a turn always has a reply.
func New(st store.Store, extractor *extract.Extractor, cache *astro.Cache, generator genai.Generator, opts ...Option) *Orchestrator {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = DefaultGenerateTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		store:      st,
		extractor:  extractor,
		cache:      cache,
		generator:  generator,
		fallback:   genai.NewStubGenerator(),
		genTimeout: cfg.GenerateTimeout,
		now:        cfg.Now,
		locks:      make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing turns for one session id.
// Distinct sessions get distinct mutexes and never contend.
func (o *Orchestrator) lockFor(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[sessionID] = lock
	}
	return lock
}

// HandleMessage processes one chat turn. The only errors returned are
// input validation failures; everything downstream degrades to a
// deterministic reply instead of failing the turn.
func (o *Orchestrator) HandleMessage(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lock := o.lockFor(req.SessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := o.store.GetOrCreateSession(req.SessionID)
	if err != nil {
		slog.Error("Orchestrator.HandleMessage: session load failed", "error", err, "sessionID", req.SessionID)
		return nil, fmt.Errorf("failed to load session %s: %w", req.SessionID, err)
	}

	o.resolveBirthDetails(ctx, state, req)

	decision := router.Route(state, req.Message, req.ActionID)
	state.Mode = decision.Mode
	if decision.Focus != "" {
		state.Focus = decision.Focus
	}

	topic := state.ActiveTopic
	retrospective := false
	if decision.Mode == models.ModeNormalReading {
		topic = topics.Classify(req.Message, req.ActionID, state.ActiveTopic)
		state.ActiveTopic = topic
		retrospective = o.isRetrospective(state, req.ActionID, topic)
	}

	tf := timeframe.Classify(req.Message)
	reply := o.generateReply(ctx, state, req, topic, tf, retrospective)

	if retrospective {
		state.HasDoneRetro = true
	}
	state.MessageCount++
	state.UpdatedAt = o.now().UTC()
	if err := o.store.SaveSession(state); err != nil {
		// The reply is already computed; losing one state update is
		// preferable to failing the turn.
		slog.Error("Orchestrator.HandleMessage: failed to persist session", "error", err, "sessionID", state.SessionID)
	}

	slog.Info("Orchestrator.HandleMessage: turn complete",
		"sessionID", state.SessionID, "mode", state.Mode, "topic", topic, "messageCount", state.MessageCount)
	return &models.ChatResponse{
		SessionID:        state.SessionID,
		Reply:            reply,
		Mode:             state.Mode,
		Topic:            topic,
		SuggestedActions: buildSuggestedActions(state, topic),
	}, nil
}

// resolveBirthDetails fills in birth details from the request payload or,
// when still missing, from extraction over the message text. Details are
// replaced wholesale, never partially patched.
func (o *Orchestrator) resolveBirthDetails(ctx context.Context, state *models.ConversationState, req models.ChatRequest) {
	if req.BirthDetails != nil && req.BirthDetails.Complete() {
		details := *req.BirthDetails
		if details.Timezone == 0 {
			details.Timezone = models.DefaultTimezoneOffset
		}
		state.BirthDetails = &details
		slog.Info("Orchestrator.resolveBirthDetails: accepted pre-supplied birth details", "sessionID", state.SessionID)
		return
	}
	if state.BirthDetails.Complete() {
		return
	}

	candidate, err := o.extractor.Extract(ctx, req.Message)
	if err != nil {
		slog.Warn("Orchestrator.resolveBirthDetails: extraction error treated as absent", "error", err, "sessionID", state.SessionID)
		return
	}
	if candidate == nil || candidate.Confidence < extract.AcceptThreshold {
		slog.Debug("Orchestrator.resolveBirthDetails: no acceptable candidate", "sessionID", state.SessionID)
		return
	}
	details := candidate.Details
	state.BirthDetails = &details
	slog.Info("Orchestrator.resolveBirthDetails: extracted birth details",
		"sessionID", state.SessionID, "confidence", candidate.Confidence, "location", details.Location)
}

// isRetrospective reports whether this turn should run past-event
// analysis: an explicit past-themes action, or the first full reading of
// the session. Daily guidance stays forward-looking.
func (o *Orchestrator) isRetrospective(state *models.ConversationState, actionID string, topic models.Topic) bool {
	if actionID == "past_themes" {
		return true
	}
	return !state.HasDoneRetro && topic != models.TopicDailyGuidance
}

// generateReply assembles the feature bundle and calls the generator
// under a timeout. Any provider failure degrades to the deterministic
// fallback reply; this method never fails.
func (o *Orchestrator) generateReply(ctx context.Context, state *models.ConversationState, req models.ChatRequest, topic models.Topic, tf models.TimeframeResult, retrospective bool) models.NiroReply {
	payload := models.GeneratorPayload{
		Mode:         state.Mode,
		Topic:        topic,
		UserQuestion: req.Message,
	}

	if state.Mode == models.ModeNormalReading {
		features, ok := o.buildFeatures(ctx, state, topic, tf, retrospective)
		if !ok {
			reply, _ := o.fallback.Generate(ctx, payload)
			return reply
		}
		payload.Features = features
	}

	genCtx, cancel := context.WithTimeout(ctx, o.genTimeout)
	defer cancel()
	reply, err := o.generator.Generate(genCtx, payload)
	if err != nil {
		slog.Error("Orchestrator.generateReply: generation failed, serving fallback", "error", err, "sessionID", state.SessionID)
		reply, _ = o.fallback.Generate(ctx, payload)
	}
	return reply
}

// buildFeatures fetches chart data through the cache and runs the
// feature builder. Returns ok=false when chart data is unavailable.
func (o *Orchestrator) buildFeatures(ctx context.Context, state *models.ConversationState, topic models.Topic, tf models.TimeframeResult, retrospective bool) (models.AstroFeatures, bool) {
	now := o.now().UTC()
	birth := *state.BirthDetails

	profile, err := o.cache.EnsureProfile(ctx, state.SessionID, birth)
	if err != nil {
		slog.Error("Orchestrator.buildFeatures: profile unavailable", "error", err, "sessionID", state.SessionID)
		return models.AstroFeatures{}, false
	}
	transits, err := o.cache.EnsureTransits(ctx, state.SessionID, birth, now)
	if err != nil {
		slog.Error("Orchestrator.buildFeatures: transits unavailable", "error", err, "sessionID", state.SessionID)
		return models.AstroFeatures{}, false
	}

	return astro.Build(astro.BuildInput{
		Profile:       profile,
		Transits:      transits,
		Mode:          state.Mode,
		Topic:         topic,
		Now:           now,
		Timeframe:     &tf,
		Retrospective: retrospective,
	}), true
}

// GetSession returns the state snapshot for a session id.
func (o *Orchestrator) GetSession(sessionID string) (*models.ConversationState, error) {
	state, err := o.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if state == nil {
		return nil, models.ErrSessionNotFound
	}
	return state, nil
}

// SetBirthDetails replaces the birth details for a session wholesale and
// re-derives the mode. The session is created when absent.
func (o *Orchestrator) SetBirthDetails(sessionID string, details models.BirthDetails) (*models.ConversationState, error) {
	if !details.Complete() {
		return nil, models.ErrMissingBirthFields
	}
	if details.Timezone == 0 {
		details.Timezone = models.DefaultTimezoneOffset
	}

	lock := o.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := o.store.GetOrCreateSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	state.BirthDetails = &details
	state.Mode = models.ModeNormalReading
	state.UpdatedAt = o.now().UTC()
	if err := o.store.SaveSession(state); err != nil {
		return nil, fmt.Errorf("failed to persist session %s: %w", sessionID, err)
	}
	slog.Info("Orchestrator.SetBirthDetails: birth details updated", "sessionID", sessionID)
	return state, nil
}

// ResetSession deletes the session state and its cached transits.
func (o *Orchestrator) ResetSession(sessionID string) error {
	lock := o.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := o.store.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	if err := o.store.DeleteTransits(sessionID); err != nil {
		slog.Warn("Orchestrator.ResetSession: failed to drop cached transits", "error", err, "sessionID", sessionID)
	}
	slog.Info("Orchestrator.ResetSession: session reset", "sessionID", sessionID)
	return nil
}
