// Package inference is the model client used for dialogue, vision and
// web-backed lookups.
//
// It speaks the OpenAI-compatible chat completions API, which DashScope
// exposes under its compatible-mode endpoint:
//
//	client, _ := inference.NewClient(
//	    inference.WithAPIKey(os.Getenv("ALI_APIKEY")),
//	    inference.WithModel("qwen-plus"),
//	    inference.WithVisionModel("qwen-vl-max"),
//	)
//	defer client.Close()
//
//	resp, _ := client.Chat(ctx, &inference.ChatRequest{
//	    Messages: []inference.Message{inference.NewUserMessage("你好")},
//	    Tools:    registry.Definitions(),
//	})
package inference

import (
	"context"
	"image"
)

// Provider is implemented by Client and Mock.
type Provider interface {
	// Chat generates a response from a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Vision answers a prompt about one or more images.
	Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ChatRequest for chat completions.
type ChatRequest struct {
	Messages []Message

	// Model overrides the default model.
	Model string

	MaxTokens   int
	Temperature float64

	// Tools available for the model to call.
	Tools []Tool

	// ToolChoice controls tool use: "auto", "none", "required".
	ToolChoice string

	// EnableSearch lets the model consult a web search backend before
	// answering (DashScope "enable_search").
	EnableSearch bool
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's response.
	Message Message

	// FinishReason indicates why generation stopped.
	FinishReason string

	Usage Usage
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// VisionRequest for image analysis.
type VisionRequest struct {
	// Image to analyze. It is encoded as JPEG.
	Image image.Image

	// JPEG is an already encoded frame, used when Image is nil.
	JPEG []byte

	Prompt string

	// System is an optional system instruction.
	System string

	// Model overrides the default vision model.
	Model string

	MaxTokens   int
	Temperature float64
}

// VisionResponse from image analysis.
type VisionResponse struct {
	Content   string
	Usage     Usage
	Model     string
	LatencyMs int64
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
