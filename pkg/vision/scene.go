package vision

import (
	"context"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-tonypi/pkg/camera"
	"github.com/teslashibe/go-tonypi/pkg/inference"
)

const (
	sceneSystem = "你是一个视觉AI助手，负责根据用户要求返回图片描述，注意，你应该生成纯文本段来描述，不要使用任何特殊符号或者emoji！"

	// DefaultScenePrompt is asked when the caller has no question.
	DefaultScenePrompt = "图中描绘的是什么景象?"

	noDescription = "未能获取有效的描述。"
)

// SceneDescriber describes what the camera sees.
type SceneDescriber struct {
	provider inference.Provider
	model    string
	logger   *slog.Logger
}

// NewSceneDescriber creates a describer. An empty model uses the
// provider's default vision model.
func NewSceneDescriber(provider inference.Provider, model string, logger *slog.Logger) *SceneDescriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &SceneDescriber{
		provider: provider,
		model:    model,
		logger:   logger.With("component", "vision.scene"),
	}
}

// Describe answers prompt about frame in plain text.
func (s *SceneDescriber) Describe(ctx context.Context, frame camera.Frame, prompt string) (string, error) {
	if len(frame.JPEG) == 0 {
		return "", ErrNoFrame
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultScenePrompt
	}

	resp, err := s.provider.Vision(ctx, &inference.VisionRequest{
		JPEG:   frame.JPEG,
		System: sceneSystem,
		Prompt: prompt,
		Model:  s.model,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		text = noDescription
	}
	s.logger.Debug("scene described", "chars", len([]rune(text)), "latency_ms", resp.LatencyMs)
	return text, nil
}
