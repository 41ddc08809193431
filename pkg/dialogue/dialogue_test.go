package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/teslashibe/go-tonypi/pkg/inference"
)

func TestChat_Converse(t *testing.T) {
	mock := inference.Reply(inference.NewAssistantMessage("  你好，我是小新。 "))
	chat := NewChat(mock, WithModel("qwen-max"))

	history := []inference.Message{inference.NewSystemMessage(DefaultSystemPrompt)}
	reply, err := chat.Converse(context.Background(), history, " 你好 ")
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if reply.IsToolCall() || reply.Text != "你好，我是小新。" {
		t.Errorf("reply = %+v", reply)
	}

	req := mock.LastRequest()
	if req.Model != "qwen-max" || len(req.Tools) != 0 {
		t.Errorf("request model=%q tools=%d", req.Model, len(req.Tools))
	}
	if len(req.Messages) != 2 || req.Messages[1].Content != "你好" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if len(history) != 1 {
		t.Error("Converse must not modify the caller's history")
	}
}

func TestChat_EmptyInput(t *testing.T) {
	mock := inference.NewMock()
	chat := NewChat(mock)
	if _, err := chat.Converse(context.Background(), nil, " \n"); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("error = %v, want ErrEmptyInput", err)
	}
	if mock.ChatCalls() != 0 {
		t.Error("blank input must not reach the model")
	}
}

func TestChat_EmptyAnswer(t *testing.T) {
	chat := NewChat(inference.Reply(inference.NewAssistantMessage("")))
	reply, _ := chat.Converse(context.Background(), nil, "嗯")
	if reply.Text != NoReply {
		t.Errorf("Text = %q, want %q", reply.Text, NoReply)
	}
}

func TestToolCaller(t *testing.T) {
	tools := []inference.Tool{inference.NewTool("get_current_time", "时间", map[string]any{})}

	tests := []struct {
		name     string
		msg      inference.Message
		wantCall string
		wantText string
	}{
		{
			name:     "text answer",
			msg:      inference.NewAssistantMessage("今天天气不错"),
			wantText: "今天天气不错",
		},
		{
			name:     "single call",
			msg:      inference.NewToolCallMessage(inference.ToolCall{ID: "c1", Name: "get_current_time"}),
			wantCall: "get_current_time",
		},
		{
			name: "first of several",
			msg: inference.NewToolCallMessage(
				inference.ToolCall{ID: "c1", Name: "search_web", Arguments: `{"query":"新闻"}`},
				inference.ToolCall{ID: "c2", Name: "get_current_time"},
			),
			wantCall: "search_web",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := inference.Reply(tt.msg)
			tc := NewToolCaller(NewChat(mock), tools)

			reply, err := tc.Converse(context.Background(), nil, "现在几点")
			if err != nil {
				t.Fatalf("Converse: %v", err)
			}
			if len(mock.LastRequest().Tools) != 1 {
				t.Error("tools not offered")
			}
			if tt.wantCall != "" {
				if !reply.IsToolCall() || reply.Call.Name != tt.wantCall {
					t.Errorf("reply = %+v, want call %s", reply, tt.wantCall)
				}
				return
			}
			if reply.IsToolCall() || reply.Text != tt.wantText {
				t.Errorf("reply = %+v", reply)
			}
		})
	}
}

func TestToolCaller_AssignsMissingID(t *testing.T) {
	mock := inference.Reply(inference.NewToolCallMessage(inference.ToolCall{Name: "recognize_scene"}))
	reply, _ := NewToolCaller(NewChat(mock), nil).Converse(context.Background(), nil, "看看周围")
	if !strings.HasPrefix(reply.Call.ID, "call_") {
		t.Errorf("ID = %q", reply.Call.ID)
	}
}

func TestToolCaller_ProviderError(t *testing.T) {
	apiErr := &inference.APIError{StatusCode: 503, Provider: "client"}
	tc := NewToolCaller(NewChat(inference.WithError(apiErr)), nil)
	if _, err := tc.Converse(context.Background(), nil, "你好"); !errors.Is(err, apiErr) {
		t.Errorf("error = %v", err)
	}
}
