// Package tools holds the closed set of functions the dialogue model may
// call and dispatches the model's calls to their handlers.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/teslashibe/go-tonypi/pkg/inference"
)

// ID identifies one of the known tools.
type ID int

const (
	PlayRockPaperScissors ID = iota + 1
	ExecuteActionSequence
	RecognizeScene
	GetWeather
	GetCurrentTime
	SearchWeb
)

// Registration errors.
var (
	ErrUnknownTool   = errors.New("tools: unknown tool")
	ErrNilHandler    = errors.New("tools: nil handler")
	ErrDuplicate     = errors.New("tools: already registered")
	ErrMissingSchema = errors.New("tools: missing parameter schema")
)

// Definition is the model-facing description of a tool.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

func object(props map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func stringParam(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

var definitions = map[ID]Definition{
	PlayRockPaperScissors: {
		Name:        "play_rock_paper_scissors",
		Description: "当用户想要玩猜拳或猜拳游戏或石头剪刀布或剪刀石头布时使用，可以与用户进行猜拳和石头剪刀布游戏。",
		Parameters:  object(map[string]any{}),
	},
	ExecuteActionSequence: {
		Name:        "execute_action_sequence",
		Description: "当用户需要执行一系列动作时使用，可以控制机器人或虚拟角色执行动作序列。",
		Parameters: object(map[string]any{
			"request_text": stringParam("一句完成的自然语言描述的动作序列，如先跳舞，再摆腰，最后鞠躬。"),
		}, "request_text"),
	},
	RecognizeScene: {
		Name:        "recognize_scene",
		Description: "当用户需要识别场景或环境时使用，可以分析场景描述或图片内容。",
		Parameters:  object(map[string]any{}),
	},
	GetWeather: {
		Name:        "get_weather_info",
		Description: "当用户查询天气信息时使用，可以获取指定地区的天气状况。",
		Parameters: object(map[string]any{
			"query": stringParam("一句完成的自然语言天气查询：比如，深圳福田今天的天气"),
		}, "query"),
	},
	GetCurrentTime: {
		Name:        "get_current_time",
		Description: "当用户询问当前时间时使用，可以获取当前的日期和时间信息。",
		Parameters:  object(map[string]any{}),
	},
	SearchWeb: {
		Name:        "search_web",
		Description: "当用户需要搜索网络信息，或者直接说明需要联网搜索时使用，可以在互联网上搜索相关信息。",
		Parameters: object(map[string]any{
			"query": stringParam("一句完成的自然语言查询：比如，联网搜索最近的新闻，或者搜索最近的新闻"),
		}, "query"),
	},
}

// Name returns the function name the model uses for id.
func (id ID) Name() string {
	if d, ok := definitions[id]; ok {
		return d.Name
	}
	return fmt.Sprintf("tool(%d)", int(id))
}

func (id ID) String() string { return id.Name() }

// Lookup returns the ID for a function name.
func Lookup(name string) (ID, bool) {
	for id, d := range definitions {
		if d.Name == name {
			return id, true
		}
	}
	return 0, false
}

// Args are the decoded call arguments.
type Args map[string]any

// String returns the string argument key, or "" when absent or not a string.
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return strings.TrimSpace(s)
}

// Result is the outcome of a tool call.
type Result struct {
	// Text is folded into the conversation history as the tool message.
	Text string

	// Voiced is true when the handler already told the user about the
	// outcome, by speech or by clips.
	Voiced bool

	// Err is set when the call failed. Text then describes the failure.
	Err error
}

// Handler runs one tool.
type Handler func(ctx context.Context, args Args) (Result, error)

type entry struct {
	def     Definition
	handler Handler
}

// Registry binds tool IDs to handlers.
type Registry struct {
	mu      sync.RWMutex
	entries map[ID]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[ID]entry)}
}

// Register binds h to id.
func (r *Registry) Register(id ID, h Handler) error {
	def, ok := definitions[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTool, int(id))
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, def.Name)
	}
	if def.Parameters == nil {
		return fmt.Errorf("%w: %s", ErrMissingSchema, def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[id]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicate, def.Name)
	}
	r.entries[id] = entry{def: def, handler: h}
	return nil
}

// Lookup returns the handler registered under the function name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	id, ok := Lookup(name)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e.handler, ok
}

// IDs returns the registered IDs in ascending order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Definitions returns the registered tools in the model's request format.
func (r *Registry) Definitions() []inference.Tool {
	ids := r.IDs()
	out := make([]inference.Tool, 0, len(ids))
	for _, id := range ids {
		d := definitions[id]
		out = append(out, inference.NewTool(d.Name, d.Description, d.Parameters))
	}
	return out
}
