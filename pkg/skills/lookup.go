package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/teslashibe/go-tonypi/pkg/inference"
	"github.com/teslashibe/go-tonypi/pkg/tools"
)

const timeLayout = "当前时间为2006年01月02日 15时04分05秒"

// RecognizeScene photographs the scene and describes it aloud. The "let
// me see" cue plays while the photo is taken.
func (s *Skills) RecognizeScene(ctx context.Context, _ tools.Args) (tools.Result, error) {
	s.cfg.Cues.Fire(s.cfg.LetMeSee)

	frame, err := s.cfg.Camera.Capture(ctx)
	if err != nil {
		return tools.Result{}, fmt.Errorf("skills: capture: %w", err)
	}
	text, err := s.cfg.Scene.Describe(ctx, frame, "")
	if err != nil {
		return tools.Result{}, err
	}
	return s.say(ctx, text), nil
}

// GetWeather answers a weather question with a search-enabled model.
func (s *Skills) GetWeather(ctx context.Context, args tools.Args) (tools.Result, error) {
	return s.lookup(ctx, args.String("query"))
}

// SearchWeb answers a question with a search-enabled model.
func (s *Skills) SearchWeb(ctx context.Context, args tools.Args) (tools.Result, error) {
	return s.lookup(ctx, args.String("query"))
}

func (s *Skills) lookup(ctx context.Context, query string) (tools.Result, error) {
	if query == "" {
		return tools.Result{}, fmt.Errorf("%w: query", ErrMissingArgument)
	}
	s.cue(ctx, s.cfg.LetMeSee)

	resp, err := s.cfg.Search.Chat(ctx, &inference.ChatRequest{
		Model:        s.cfg.SearchModel,
		Messages:     []inference.Message{inference.NewUserMessage(query)},
		EnableSearch: true,
	})
	if err != nil {
		return tools.Result{}, err
	}
	answer := strings.TrimSpace(resp.Message.Content)
	if answer == "" {
		return tools.Result{}, ErrNoAnswer
	}
	s.logger.Info("lookup answered", "query", query, "latency_ms", resp.LatencyMs)
	return s.say(ctx, answer), nil
}

// GetCurrentTime says the local date and time.
func (s *Skills) GetCurrentTime(ctx context.Context, _ tools.Args) (tools.Result, error) {
	return s.say(ctx, s.cfg.Now().Format(timeLayout)), nil
}
