package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"willows-assistant/internal/domain"
)

// LLMClient issues a single completion for an assembled conversation. An
// empty string with a nil error means the upstream returned no usable
// candidate text.
type LLMClient interface {
	Generate(ctx context.Context, apiKey string, conv domain.Conversation) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// decodeError is implemented by integration errors raised while parsing a
// well-formed HTTP exchange.
type decodeError interface {
	DecodeFailure() bool
}

type ReplyService struct {
	llm       LLMClient
	prompt    PromptContext
	fallbacks Fallbacks
	apiKey    string
	logger    *slog.Logger
}

type ReplyInput struct {
	Message string
}

type ReplyOutput struct {
	Response string
	// Outcome is empty for a real completion, otherwise the absorbed failure.
	Outcome ErrorCode
}

type Option func(*ReplyService)

func WithFallbacks(f Fallbacks) Option {
	return func(s *ReplyService) {
		s.fallbacks = f
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ReplyService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewReplyService wires the proxy. An empty apiKey is accepted: every reply
// then degrades to the unavailable fallback.
func NewReplyService(llm LLMClient, prompt PromptContext, apiKey string, opts ...Option) (*ReplyService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if strings.TrimSpace(prompt.SystemPrompt) == "" {
		return nil, errors.New("usecase: system prompt must not be empty")
	}
	if strings.TrimSpace(prompt.Acknowledgment) == "" {
		prompt.Acknowledgment = defaultAcknowledgment
	}
	s := &ReplyService{
		llm:       llm,
		prompt:    prompt,
		fallbacks: DefaultFallbacks(),
		apiKey:    strings.TrimSpace(apiKey),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.fallbacks.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reply turns a visitor message into the text shown in the chat widget. The
// only error it returns is ErrorInvalidInput; every other failure is absorbed
// into a fallback reply.
func (s *ReplyService) Reply(ctx context.Context, in ReplyInput) (ReplyOutput, error) {
	if in.Message == "" {
		return ReplyOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}

	text, err := s.complete(ctx, in.Message)
	if err != nil {
		return s.Absorb(ctx, err), nil
	}
	return ReplyOutput{Response: text}, nil
}

// Absorb converts a classified failure into its fallback reply and logs it
// for the operator. Unclassified errors are treated as upstream failures.
func (s *ReplyService) Absorb(ctx context.Context, err error) ReplyOutput {
	var ucErr *Error
	if !errors.As(err, &ucErr) {
		ucErr = newError(ErrorUpstream, "unclassified", err)
	}
	text, ok := s.fallbacks.For(ucErr.Code)
	if !ok {
		text = s.fallbacks.Trouble
	}

	level := slog.LevelError
	if ucErr.Code == ErrorNoCandidate {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "chat reply degraded to fallback",
		"code", string(ucErr.Code),
		"reason", ucErr.Reason,
		"err", ucErr.Err,
	)
	return ReplyOutput{Response: text, Outcome: ucErr.Code}
}

func (s *ReplyService) complete(ctx context.Context, message string) (string, error) {
	if s.apiKey == "" {
		return "", newError(ErrorMissingCredential, "api_key_not_set", nil)
	}

	raw, err := s.llm.Generate(ctx, s.apiKey, buildConversation(s.prompt, message))
	if err != nil {
		return "", classifyUpstreamError(err)
	}
	if raw == "" {
		return "", newError(ErrorNoCandidate, "no_candidate_text", nil)
	}
	return raw, nil
}

func classifyUpstreamError(err error) *Error {
	if status, ok := upstreamStatusCode(err); ok {
		if status == 429 {
			return newError(ErrorUpstream, "gemini_rate_limited", err)
		}
		return newError(ErrorUpstream, "gemini_status_error", err)
	}
	var dec decodeError
	if errors.As(err, &dec) && dec.DecodeFailure() {
		return newError(ErrorMalformedResponse, "gemini_malformed_response", err)
	}
	return newError(ErrorUpstream, "gemini_request_error", err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
