// Package dialogue turns one user utterance plus the conversation history
// into the model's reply.
//
// Chat is the plain text client. ToolCaller decorates a Chat with the tool
// definitions so the reply may instead be a request to run a tool.
package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/teslashibe/go-tonypi/pkg/inference"
)

// DefaultSystemPrompt seeds every new conversation.
const DefaultSystemPrompt = `你是一个智能语音助手机器人，具有以下功能：
1. 可以进行自然的多轮对话
2. 可以调用各种工具函数来帮助用户：
   - 猜拳游戏 (play_rock_paper_scissors)
   - 动作序列执行 (execute_action_sequence)
   - 场景识别 (recognize_scene)
   - 天气查询 (get_weather_info)
   - 时间查询 (get_current_time)
   - 网络搜索 (search_web)

当用户表达猜拳、猜拳游戏石头剪刀布、剪刀石头布或类似意图时，请调用猜拳游戏功能。
当用户表达需要你（机器人）执行动作序列时，请调用动作序列执行功能。
当用户表达需要识别场景、看一下眼前的景色、看看周围环境时，请调用场景识别功能。
当用户需要查询天气时，请调用天气查询功能。
当用户需要查询时间时，请调用时间查询功能。
当用户需要进行网络搜索时，请调用网络搜索功能。
如果用户的意图与工具函数中的意图类似，可能是因为用户表达不清晰，请根据用户意图选择合适的工具函数。
如果用户只是普通对话，请正常回复。
注意：你应该生成纯文本段来描述，不要包含任何特殊符号！`

// NoReply is spoken when the model answers with neither text nor a tool call.
const NoReply = "抱歉，没有收到有效回复"

var (
	// ErrEmptyInput is returned for blank user text.
	ErrEmptyInput = errors.New("dialogue: empty input")
)

// Reply is the model's answer to one user turn: either text or a tool call.
type Reply struct {
	Text string

	// Call is set when the model asked for a tool instead of answering.
	Call *inference.ToolCall
}

// IsToolCall reports whether the reply requests a tool.
func (r Reply) IsToolCall() bool { return r.Call != nil }

// Model produces a reply for userText given the history so far. History is
// not modified; the caller commits the turn.
type Model interface {
	Converse(ctx context.Context, history []inference.Message, userText string) (Reply, error)
}

// Option configures a Chat.
type Option func(*Chat)

// WithModel overrides the provider's default chat model.
func WithModel(model string) Option {
	return func(c *Chat) { c.model = model }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chat) { c.logger = l }
}

// Chat is the base dialogue client.
type Chat struct {
	provider inference.Provider
	model    string
	logger   *slog.Logger
}

// NewChat creates a Chat over provider.
func NewChat(provider inference.Provider, opts ...Option) *Chat {
	c := &Chat{provider: provider, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "dialogue.chat")
	return c
}

// Converse sends history plus userText and returns the text answer.
func (c *Chat) Converse(ctx context.Context, history []inference.Message, userText string) (Reply, error) {
	resp, err := c.send(ctx, history, userText, nil)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: text(resp.Message.Content)}, nil
}

func (c *Chat) send(ctx context.Context, history []inference.Message, userText string, tools []inference.Tool) (*inference.ChatResponse, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, ErrEmptyInput
	}

	messages := make([]inference.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, inference.NewUserMessage(userText))

	resp, err := c.provider.Chat(ctx, &inference.ChatRequest{
		Messages: messages,
		Model:    c.model,
		Tools:    tools,
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("model replied",
		"history", len(history),
		"tool_calls", len(resp.Message.ToolCalls),
		"latency_ms", resp.LatencyMs,
	)
	return resp, nil
}

// ToolCaller adds tool definitions to a Chat.
type ToolCaller struct {
	base   *Chat
	tools  []inference.Tool
	logger *slog.Logger
}

// NewToolCaller wraps base so every request offers tools.
func NewToolCaller(base *Chat, tools []inference.Tool) *ToolCaller {
	return &ToolCaller{
		base:   base,
		tools:  tools,
		logger: base.logger.With("component", "dialogue.tools"),
	}
}

// Converse returns a tool call when the model proposes one. Only the first
// proposal is kept.
func (t *ToolCaller) Converse(ctx context.Context, history []inference.Message, userText string) (Reply, error) {
	resp, err := t.base.send(ctx, history, userText, t.tools)
	if err != nil {
		return Reply{}, err
	}

	calls := resp.Message.ToolCalls
	if len(calls) == 0 {
		return Reply{Text: text(resp.Message.Content)}, nil
	}
	if len(calls) > 1 {
		dropped := make([]string, 0, len(calls)-1)
		for _, c := range calls[1:] {
			dropped = append(dropped, c.Name)
		}
		t.logger.Warn("model proposed several tool calls, running the first",
			"run", calls[0].Name,
			"dropped", dropped,
		)
	}

	call := calls[0]
	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	return Reply{Call: &call}, nil
}

// Tools returns the offered definitions.
func (t *ToolCaller) Tools() []inference.Tool { return t.tools }

func text(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoReply
	}
	return s
}

var (
	_ Model = (*Chat)(nil)
	_ Model = (*ToolCaller)(nil)
)
