package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bdobrica/aether/common/trace"
	"github.com/bdobrica/aether/internal/aether/character"
	"github.com/bdobrica/aether/internal/aether/llm"
	"github.com/bdobrica/aether/internal/aether/memory"
	"github.com/bdobrica/aether/internal/aether/observability"
)

var (
	// ErrCycleInFlight is returned when a cycle is already running for the
	// character. The rejected call has no effect on the message log.
	ErrCycleInFlight = errors.New("chat: a reply is already in progress")

	// ErrEmptyMessage is returned for a blank text message.
	ErrEmptyMessage = errors.New("chat: message is empty")

	// ErrUnknownType is returned for a message type the log does not know.
	ErrUnknownType = errors.New("chat: unknown message type")
)

// MessageLog is the append-only per-character message store.
type MessageLog interface {
	// ListRecentMessages returns at most n of the most recent messages,
	// oldest first.
	ListRecentMessages(ctx context.Context, charID string, n int) ([]Message, error)
	AppendMessage(ctx context.Context, charID string, role Role, typ Type, content string, metadata map[string]any) (Message, error)
}

// Profiles loads character profiles, including memories and the refined index.
type Profiles interface {
	GetCharacter(ctx context.Context, id string) (*character.Profile, error)
}

// Config tunes prompt assembly and pacing.
type Config struct {
	HistoryWindow int
	// Temperature applies to both round-trips of a cycle. Nil means 0.7;
	// zero is a valid, deterministic setting.
	Temperature   *float64
	MinChunkDelay time.Duration
	MaxChunkDelay time.Duration
	PerCharDelay  time.Duration
	ChunkPause    time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		HistoryWindow: 20,
		Temperature:   Temperature(0.7),
		MinChunkDelay: 500 * time.Millisecond,
		MaxChunkDelay: 2 * time.Second,
		PerCharDelay:  50 * time.Millisecond,
		ChunkPause:    400 * time.Millisecond,
	}
}

// Input is a user message to append before replying.
type Input struct {
	Content  string
	Type     Type
	Metadata map[string]any
}

// Normalize defaults an empty Type to text, trims Content and rejects what
// must not reach the log: unknown types and blank text messages.
func (in *Input) Normalize() error {
	if in.Type == "" {
		in.Type = TypeText
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownType, in.Type)
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Type == TypeText && in.Content == "" {
		return ErrEmptyMessage
	}
	return nil
}

// Result describes a completed cycle.
type Result struct {
	Chunks     []string `json:"chunks"`
	RecallKey  string   `json:"recall_key,omitempty"`
	RoundTrips int      `json:"round_trips"`
}

// Engine runs send cycles. At most one cycle runs per character; cycles for
// different characters are independent.
type Engine struct {
	cfg         Config
	temperature float64
	log         MessageLog
	profiles    Profiles
	llm         llm.Completer
	observer    Observer
	recorder    Recorder
	logger      *slog.Logger

	// sleep waits out pacing delays; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	statuses map[string]Status
}

// Temperature returns a pointer to t for Config.Temperature.
func Temperature(t float64) *float64 { return &t }

// NewEngine creates an Engine. Zero fields in cfg take their defaults.
func NewEngine(cfg Config, log MessageLog, profiles Profiles, completer llm.Completer, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = def.HistoryWindow
	}
	temperature := *def.Temperature
	if cfg.Temperature != nil && *cfg.Temperature >= 0 {
		temperature = *cfg.Temperature
	}
	if cfg.MinChunkDelay <= 0 {
		cfg.MinChunkDelay = def.MinChunkDelay
	}
	if cfg.MaxChunkDelay <= 0 {
		cfg.MaxChunkDelay = def.MaxChunkDelay
	}
	if cfg.PerCharDelay <= 0 {
		cfg.PerCharDelay = def.PerCharDelay
	}
	if cfg.ChunkPause <= 0 {
		cfg.ChunkPause = def.ChunkPause
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:         cfg,
		temperature: temperature,
		log:         log,
		profiles:    profiles,
		llm:         completer,
		observer:    nopObserver{},
		recorder:    nopRecorder{},
		logger:      logger,
		sleep:       sleepCtx,
		statuses:    make(map[string]Status),
	}
}

// SetObserver attaches an observer. Call before the first cycle.
func (e *Engine) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	e.observer = o
}

// SetRecorder attaches a metrics recorder. Call before the first cycle.
func (e *Engine) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	e.recorder = r
}

// Status returns the current status of a character's conversation.
func (e *Engine) Status(charID string) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.statuses[charID]; ok {
		return s
	}
	return Status{CharID: charID, State: StateIdle}
}

// Send appends a user message and runs a reply cycle, blocking until the
// last chunk is delivered.
func (e *Engine) Send(ctx context.Context, charID string, in Input) (*Result, error) {
	c, err := e.begin(ctx, charID, &in)
	if err != nil {
		return nil, err
	}
	return c.run(ctx)
}

// Regenerate runs a reply cycle over the existing log.
func (e *Engine) Regenerate(ctx context.Context, charID string) (*Result, error) {
	c, err := e.begin(ctx, charID, nil)
	if err != nil {
		return nil, err
	}
	return c.run(ctx)
}

// SendAsync is Send with the cycle running in the background. Admission
// errors (configuration, busy, unknown character, append failure) are
// returned synchronously; done, when non-nil, receives the cycle's outcome.
func (e *Engine) SendAsync(ctx context.Context, charID string, in Input, done func(*Result, error)) error {
	c, err := e.begin(ctx, charID, &in)
	if err != nil {
		return err
	}
	go c.finish(ctx, done)
	return nil
}

// RegenerateAsync is Regenerate with the cycle running in the background.
func (e *Engine) RegenerateAsync(ctx context.Context, charID string, done func(*Result, error)) error {
	c, err := e.begin(ctx, charID, nil)
	if err != nil {
		return err
	}
	go c.finish(ctx, done)
	return nil
}

// begin admits a cycle: it checks configuration, claims the character's
// slot, loads the profile and appends the user message (if any).
func (e *Engine) begin(ctx context.Context, charID string, in *Input) (*cycle, error) {
	if in != nil {
		if err := in.Normalize(); err != nil {
			return nil, err
		}
	}
	if v, ok := e.llm.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	if !e.claim(charID) {
		e.recorder.ObserveCycle("rejected", 0)
		return nil, ErrCycleInFlight
	}

	profile, err := e.profiles.GetCharacter(ctx, charID)
	if err != nil {
		e.release(charID)
		return nil, fmt.Errorf("chat: load character %s: %w", charID, err)
	}

	if in != nil {
		msg, err := e.log.AppendMessage(ctx, charID, RoleUser, in.Type, in.Content, in.Metadata)
		if err != nil {
			e.release(charID)
			return nil, fmt.Errorf("chat: append user message: %w", err)
		}
		e.observer.MessageAppended(msg)
	}

	ctx, traceID := trace.Ensure(ctx)
	return &cycle{
		e:       e,
		charID:  charID,
		profile: profile,
		traceID: traceID,
		logger:  observability.WithTrace(ctx, e.logger).With("character_id", charID),
		started: time.Now(),
	}, nil
}

// claim marks the character as Sending unless a cycle is already running.
func (e *Engine) claim(charID string) bool {
	e.mu.Lock()
	if s, ok := e.statuses[charID]; ok && s.State != StateIdle {
		e.mu.Unlock()
		return false
	}
	st := Status{CharID: charID, State: StateSending}
	e.statuses[charID] = st
	e.mu.Unlock()

	e.observer.StatusChanged(st)
	return true
}

func (e *Engine) release(charID string) {
	e.mu.Lock()
	delete(e.statuses, charID)
	e.mu.Unlock()
	e.observer.StatusChanged(Status{CharID: charID, State: StateIdle})
}

func (e *Engine) setStatus(charID string, state State, text string) {
	st := Status{CharID: charID, State: state, Text: text}
	e.mu.Lock()
	e.statuses[charID] = st
	e.mu.Unlock()
	e.observer.StatusChanged(st)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cycle is one admitted send cycle. All reads and writes are scoped to the
// character id captured at admission.
type cycle struct {
	e       *Engine
	charID  string
	profile *character.Profile
	traceID string
	logger  *slog.Logger
	started time.Time
}

func (c *cycle) finish(ctx context.Context, done func(*Result, error)) {
	res, err := c.run(ctx)
	if done != nil {
		done(res, err)
	}
}

func (c *cycle) run(ctx context.Context) (*Result, error) {
	e := c.e
	defer e.release(c.charID)

	ctx = llm.WithPurpose(trace.WithTraceID(ctx, c.traceID), "chat")
	res := &Result{}

	history, err := e.log.ListRecentMessages(ctx, c.charID, e.cfg.HistoryWindow)
	if err != nil {
		return nil, c.fail(ctx, fmt.Errorf("chat: load history: %w", err))
	}

	prompt := make([]llm.Message, 0, len(history)+2)
	prompt = append(prompt, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt(c.profile)})
	prompt = append(prompt, History(history)...)

	reply, err := e.llm.Chat(ctx, prompt, e.temperature)
	res.RoundTrips++
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	if year, month, ok := ParseRecall(reply); ok {
		res.RecallKey = memory.MonthKey(year, month)
		reply, err = c.recall(ctx, prompt, year, month)
		res.RoundTrips++
		if err != nil {
			return nil, c.fail(ctx, err)
		}
	}

	res.Chunks = SplitChunks(FinalText(reply))
	if err := c.deliver(ctx, res.Chunks); err != nil {
		e.recorder.ObserveCycle("failed", time.Since(c.started).Seconds())
		c.logger.Error("chat: delivery interrupted", "err", err)
		return nil, err
	}

	e.recorder.ObserveCycle("delivered", time.Since(c.started).Seconds())
	c.logger.Info("chat: reply delivered",
		"chunks", len(res.Chunks), "round_trips", res.RoundTrips, "recall", res.RecallKey)
	return res, nil
}

// recall performs the detail-augmented second round-trip. A recall miss is
// not an error: the model is told no details exist and answers anyway. The
// second reply is final whatever it contains.
func (c *cycle) recall(ctx context.Context, prompt []llm.Message, year, month string) (string, error) {
	e := c.e
	key := memory.MonthKey(year, month)
	e.setStatus(c.charID, StateAwaitingRecall, recallStatus(key))
	defer e.setStatus(c.charID, StateSending, "")

	note := ""
	details, err := memory.Details(c.profile.Memories, year, month)
	switch {
	case err == nil:
		note = recallFoundNote(key, details)
		e.recorder.ObserveRecall("hit")
		c.logger.Info("chat: recall hit", "key", key)
	case errors.Is(err, memory.ErrNoDetails):
		note = recallMissNote(key)
		e.recorder.ObserveRecall("miss")
		c.logger.Info("chat: recall miss", "key", key)
	default:
		return "", err
	}

	augmented := make([]llm.Message, 0, len(prompt)+1)
	augmented = append(augmented, prompt...)
	augmented = append(augmented, llm.Message{Role: llm.RoleSystem, Content: note})
	return e.llm.Chat(ctx, augmented, e.temperature)
}

// deliver appends chunks as assistant messages with typing-paced delays.
func (c *cycle) deliver(ctx context.Context, chunks []string) error {
	e := c.e
	e.setStatus(c.charID, StateDelivering, "")
	for i, chunk := range chunks {
		if err := e.sleep(ctx, e.cfg.chunkDelay(chunk)); err != nil {
			return err
		}
		msg, err := e.log.AppendMessage(ctx, c.charID, RoleAssistant, TypeText, chunk, nil)
		if err != nil {
			return fmt.Errorf("chat: append reply chunk: %w", err)
		}
		e.observer.MessageAppended(msg)
		e.recorder.ObserveChunk()

		if i < len(chunks)-1 {
			if err := e.sleep(ctx, e.cfg.ChunkPause); err != nil {
				return err
			}
		}
	}
	return nil
}

// fail records a round-trip failure as a single system message and returns
// the original error. No assistant content is delivered.
func (c *cycle) fail(ctx context.Context, cause error) error {
	e := c.e
	e.recorder.ObserveCycle("failed", time.Since(c.started).Seconds())
	c.logger.Warn("chat: cycle aborted", "err", cause)

	notice := fmt.Sprintf("[Connection interrupted: %s]", cause)
	msg, err := e.log.AppendMessage(context.WithoutCancel(ctx), c.charID, RoleSystem, TypeText, notice, nil)
	if err != nil {
		c.logger.Error("chat: record failure notice", "err", err)
		return cause
	}
	e.observer.MessageAppended(msg)
	return cause
}
