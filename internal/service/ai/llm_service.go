package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/zhouzirui/sanatorium/backend/internal/config"
	"github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
	"github.com/zhouzirui/sanatorium/backend/internal/model/persona"
)

// Service phrases replies with a chat model behind an eino chain.
type Service struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	prompts      *PromptManager
	persona      persona.Persona
	historyTurns int
	cache        *gocache.Cache
	logger       *zap.Logger
}

// NewService creates the chat model from configuration and builds the chain.
func NewService(ctx context.Context, cfg config.AIConfig, prompts *PromptManager, p persona.Persona, logger *zap.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg, prompts, p, logger)
}

// NewServiceWithModel builds the chain over an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig, prompts *PromptManager, p persona.Persona, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prompts == nil {
		prompts = NewPromptManager()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Service{
		chain:        runnable,
		prompts:      prompts,
		persona:      p,
		historyTurns: cfg.HistoryTurns,
		cache:        gocache.New(ttl, 2*ttl),
		logger:       logger.Named("ai"),
	}, nil
}

// Generate returns the reply for one turn. Identical requests within the
// cache TTL reuse the previous answer.
func (s *Service) Generate(ctx context.Context, req dialog.GenerationRequest) (string, error) {
	input := s.buildChainInput(req)
	key := cacheKey(req, input["system"].(string))
	if cached, ok := s.cache.Get(key); ok {
		return cached.(string), nil
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	text := strings.TrimSpace(response.Content)
	if text != "" {
		s.cache.SetDefault(key, text)
	}
	s.logger.Debug("generated response",
		zap.String("session_id", req.SessionID),
		zap.String("prompt", string(req.Prompt)),
		zap.Int("length", len(text)),
	)
	return text, nil
}

// Stream emits chunks as the model produces them and returns the full text.
func (s *Service) Stream(ctx context.Context, req dialog.GenerationRequest, emit func(string) error) (string, error) {
	input := s.buildChainInput(req)
	key := cacheKey(req, input["system"].(string))
	if cached, ok := s.cache.Get(key); ok {
		text := cached.(string)
		return text, emit(text)
	}

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stream recv: %w", err)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		builder.WriteString(chunk.Content)
		if err := emit(chunk.Content); err != nil {
			return "", err
		}
	}

	text := strings.TrimSpace(builder.String())
	if text != "" {
		s.cache.SetDefault(key, text)
	}
	return text, nil
}

func (s *Service) buildChainInput(req dialog.GenerationRequest) map[string]any {
	return map[string]any{
		"system":  s.prompts.BuildSystemPrompt(s.persona, req.Prompt, Variables(req)),
		"history": s.buildHistoryMessages(req.History),
		"query":   req.UserText,
	}
}

func (s *Service) buildHistoryMessages(turns []dialog.Turn) []*schema.Message {
	if s.historyTurns <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) > s.historyTurns {
		turns = turns[len(turns)-s.historyTurns:]
	}

	history := make([]*schema.Message, 0, len(turns)*2)
	for _, turn := range turns {
		history = append(history, schema.UserMessage(turn.UserText))
		if turn.Answered {
			history = append(history, schema.AssistantMessage(turn.AssistantText, nil))
		}
	}
	return history
}

// cacheKey scopes cached replies to the session and prompt. The digest covers
// the user text and the rendered system prompt, which carries the turn state.
func cacheKey(req dialog.GenerationRequest, system string) string {
	digest := xxhash.New()
	_, _ = digest.WriteString(req.UserText)
	_, _ = digest.WriteString("\x00")
	_, _ = digest.WriteString(system)
	return req.SessionID + ":" + string(req.Prompt) + ":" + strconv.FormatUint(digest.Sum64(), 16)
}

// TemplateGenerator renders the fallback text of each prompt. It serves
// when no chat model is configured.
type TemplateGenerator struct {
	prompts *PromptManager
}

func NewTemplateGenerator(prompts *PromptManager) *TemplateGenerator {
	if prompts == nil {
		prompts = NewPromptManager()
	}
	return &TemplateGenerator{prompts: prompts}
}

func (g *TemplateGenerator) Generate(_ context.Context, req dialog.GenerationRequest) (string, error) {
	return strings.TrimSpace(g.prompts.Fallback(req.Prompt, Variables(req))), nil
}

func (g *TemplateGenerator) Stream(ctx context.Context, req dialog.GenerationRequest, emit func(string) error) (string, error) {
	text, err := g.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return text, emit(text)
}
