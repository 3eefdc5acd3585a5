package dialog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/sanatorium/backend/internal/analysis/field"
	"github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
	"github.com/zhouzirui/sanatorium/backend/internal/observability"
)

// Generator phrases a reply from a turn's response context.
type Generator interface {
	Generate(ctx context.Context, req dialog.GenerationRequest) (string, error)
	// Stream emits the reply piece by piece and returns the full text.
	Stream(ctx context.Context, req dialog.GenerationRequest, emit func(delta string) error) (string, error)
}

// Reply is a processed turn together with the text sent to the guest.
type Reply struct {
	Response dialog.Response `json:"response"`
	Text     string          `json:"text"`
	// Degraded is set when generation failed and the fallback text was used.
	Degraded bool `json:"degraded,omitempty"`
	// Replaced is set when streamed deltas were already sent before
	// generation failed. Text supersedes them; no fallback delta follows.
	Replaced bool `json:"replaced,omitempty"`
}

// Options tune the Service.
type Options struct {
	Vocabulary   Vocabulary
	MaxGuests    int
	HistoryTurns int
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// Service runs guest turns through the booking state machine.
type Service struct {
	store        *Store
	router       *Router
	generator    Generator
	historyTurns int
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

// NewService wires the store, router and orchestrator. generator may be nil,
// in which case only literal replies carry text.
func NewService(store *Store, submitter Submitter, generator Generator, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 3
	}
	if opts.Vocabulary.confirm == nil {
		opts.Vocabulary = DefaultVocabulary()
	}

	orchestrator := NewOrchestrator(submitter, logger, opts.Metrics)
	router := NewRouter(field.New(opts.MaxGuests), orchestrator, opts.Vocabulary, logger, opts.Metrics)

	return &Service{
		store:        store,
		router:       router,
		generator:    generator,
		historyTurns: opts.HistoryTurns,
		logger:       logger,
		metrics:      opts.Metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession starts a new session with a random id.
func (s *Service) CreateSession(ctx context.Context) (*dialog.Session, error) {
	session, _, err := s.store.GetOrCreate(ctx, uuid.NewString())
	if err != nil {
		return nil, err
	}
	s.metrics.SetSessions(s.store.Len())
	return session, nil
}

// Session returns a copy of the session for id.
func (s *Service) Session(ctx context.Context, id string) (*dialog.Session, error) {
	return s.store.Snapshot(ctx, id)
}

// ProcessInput runs one turn through the state machine, creating the session
// on first use. Only literal replies are recorded as the assistant text.
func (s *Service) ProcessInput(ctx context.Context, sessionID, text string) (dialog.Response, error) {
	var resp dialog.Response
	err := s.store.Do(ctx, sessionID, func(sess *dialog.Session) error {
		idx := sess.AppendTurn(s.now(), text)
		resp = s.router.Route(ctx, sess, text)
		if resp.Literal() {
			sess.Answer(idx, resp.AssistantResponse)
		}
		return nil
	})
	s.metrics.SetSessions(s.store.Len())
	return resp, err
}

// Reply runs a full turn: state machine, then text generation. Generation
// failures degrade to FallbackReply and never fail the turn.
func (s *Service) Reply(ctx context.Context, sessionID, text string) (Reply, error) {
	return s.reply(ctx, sessionID, text, nil)
}

// StreamReply is Reply with the generated text delivered through emit as it
// arrives. Literal replies are emitted once.
func (s *Service) StreamReply(ctx context.Context, sessionID, text string, emit func(delta string) error) (Reply, error) {
	return s.reply(ctx, sessionID, text, emit)
}

func (s *Service) reply(ctx context.Context, sessionID, text string, emit func(string) error) (Reply, error) {
	var out Reply
	err := s.store.Do(ctx, sessionID, func(sess *dialog.Session) error {
		history := sess.RecentTurns(s.historyTurns)
		idx := sess.AppendTurn(s.now(), text)
		out.Response = s.router.Route(ctx, sess, text)

		if out.Response.Literal() {
			out.Text = out.Response.AssistantResponse
			if emit != nil {
				if err := emit(out.Text); err != nil {
					return err
				}
			}
		} else {
			out.Text, out.Degraded, out.Replaced = s.generate(ctx, dialog.GenerationRequest{
				SessionID: sess.ID,
				Prompt:    out.Response.NextPrompt,
				UserText:  text,
				Context:   out.Response,
				History:   history,
			}, emit)
		}

		sess.Answer(idx, out.Text)
		return nil
	})
	s.metrics.SetSessions(s.store.Len())
	if err != nil {
		return Reply{}, err
	}

	s.logger.Info("turn processed",
		zap.String("session_id", sessionID),
		zap.String("stage", string(out.Response.Stage)),
		zap.String("prompt", string(out.Response.NextPrompt)),
		zap.String("error_kind", string(out.Response.ErrorKind)),
		zap.Bool("degraded", out.Degraded),
	)
	return out, nil
}

func (s *Service) generate(ctx context.Context, req dialog.GenerationRequest, emit func(string) error) (string, bool, bool) {
	if s.generator == nil {
		return s.fallback(emit), true, false
	}

	emitted := false
	start := time.Now()
	var (
		text string
		err  error
	)
	if emit != nil {
		text, err = s.generator.Stream(ctx, req, func(delta string) error {
			emitted = true
			return emit(delta)
		})
	} else {
		text, err = s.generator.Generate(ctx, req)
	}
	elapsed := time.Since(start).Seconds()

	if err != nil || strings.TrimSpace(text) == "" {
		s.metrics.RecordGeneration(string(req.Prompt), "error", elapsed)
		s.logger.Warn("generation failed, using fallback",
			zap.String("session_id", req.SessionID),
			zap.String("prompt", string(req.Prompt)),
			zap.Bool("partial", emitted),
			zap.Error(err),
		)
		if emitted {
			return FallbackReply, true, true
		}
		return s.fallback(emit), true, false
	}

	s.metrics.RecordGeneration(string(req.Prompt), "ok", elapsed)
	return text, false, false
}

func (s *Service) fallback(emit func(string) error) string {
	if emit != nil {
		if err := emit(FallbackReply); err != nil {
			s.logger.Debug("emit fallback", zap.Error(err))
		}
	}
	return FallbackReply
}

// Reset returns an existing session to the welcome stage.
func (s *Service) Reset(ctx context.Context, sessionID string) (*dialog.Session, error) {
	var snapshot *dialog.Session
	err := s.store.DoExisting(ctx, sessionID, func(sess *dialog.Session) error {
		from := sess.Stage
		sess.Reset()
		s.metrics.RecordTransition(string(from), string(sess.Stage))
		snapshot = sess.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("session reset", zap.String("session_id", sessionID))
	return snapshot, nil
}

// SaveContext pushes the session's current booking context.
func (s *Service) SaveContext(ctx context.Context, sessionID string) error {
	return s.store.DoExisting(ctx, sessionID, func(sess *dialog.Session) error {
		sess.Save()
		return nil
	})
}

// RestoreContext pops the latest saved context. It reports false when
// nothing was saved.
func (s *Service) RestoreContext(ctx context.Context, sessionID string) (bool, error) {
	var restored bool
	err := s.store.DoExisting(ctx, sessionID, func(sess *dialog.Session) error {
		restored = sess.Restore()
		return nil
	})
	return restored, err
}

// Store exposes the underlying session store.
func (s *Service) Store() *Store {
	return s.store
}
