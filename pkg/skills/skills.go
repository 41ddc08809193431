// Package skills implements the robot's tools and registers them with a
// tools.Registry.
//
// Every skill tells the user about its own outcome, by speech or by cue
// clips, and returns Voiced results. Failures are returned as errors and
// the dispatcher turns them into error results.
package skills

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-tonypi/pkg/actionseq"
	"github.com/teslashibe/go-tonypi/pkg/camera"
	"github.com/teslashibe/go-tonypi/pkg/inference"
	"github.com/teslashibe/go-tonypi/pkg/rps"
	"github.com/teslashibe/go-tonypi/pkg/tools"
)

var (
	// ErrMissingDependency is returned by Register when a Config field a
	// skill needs is nil.
	ErrMissingDependency = errors.New("skills: missing dependency")

	// ErrMissingArgument is returned when a required argument is blank.
	ErrMissingArgument = errors.New("skills: missing argument")

	// ErrNoAnswer is returned when a lookup produced no text.
	ErrNoAnswer = errors.New("skills: empty answer")
)

// Speaker says text and returns when it has been played. *tts.Speaker
// implements it.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Cues plays named clips. *playback.Cues implements it.
type Cues interface {
	Play(ctx context.Context, name string) error
	Fire(name string) bool
}

// Game plays one rock-paper-scissors round. *rps.Game implements it.
type Game interface {
	Play(ctx context.Context) (rps.Round, error)
}

// Planner turns a request into an action plan. *actionseq.Planner
// implements it.
type Planner interface {
	Plan(ctx context.Context, request string) (actionseq.Plan, error)
}

// Executor runs plan steps. *actionseq.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, steps []actionseq.Step) ([]string, error)
}

// Describer describes a photo. *vision.SceneDescriber implements it.
type Describer interface {
	Describe(ctx context.Context, frame camera.Frame, prompt string) (string, error)
}

// Config holds the collaborators of every skill.
type Config struct {
	Speaker Speaker
	Cues    Cues

	// LetMeSee is the clip played before slow lookups.
	LetMeSee string

	Game     Game
	Planner  Planner
	Executor Executor

	Camera camera.Capturer
	Scene  Describer

	// Search answers weather and web questions with search enabled.
	Search      inference.Provider
	SearchModel string

	// Now returns the current time. It defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func (c *Config) validate() error {
	missing := func(name string) error {
		return fmt.Errorf("%w: %s", ErrMissingDependency, name)
	}
	switch {
	case c.Speaker == nil:
		return missing("speaker")
	case c.Cues == nil:
		return missing("cues")
	case c.Game == nil:
		return missing("game")
	case c.Planner == nil || c.Executor == nil:
		return missing("action planner")
	case c.Camera == nil || c.Scene == nil:
		return missing("scene")
	case c.Search == nil:
		return missing("search")
	}
	return nil
}

// Skills holds the handlers.
type Skills struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and creates the handlers.
func New(cfg Config) (*Skills, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Skills{cfg: cfg, logger: cfg.Logger.With("component", "skills")}, nil
}

// Register binds every skill to its tool ID.
func (s *Skills) Register(r *tools.Registry) error {
	handlers := map[tools.ID]tools.Handler{
		tools.PlayRockPaperScissors: s.PlayRockPaperScissors,
		tools.ExecuteActionSequence: s.ExecuteActionSequence,
		tools.RecognizeScene:        s.RecognizeScene,
		tools.GetWeather:            s.GetWeather,
		tools.GetCurrentTime:        s.GetCurrentTime,
		tools.SearchWeb:             s.SearchWeb,
	}
	for id := tools.PlayRockPaperScissors; id <= tools.SearchWeb; id++ {
		if err := r.Register(id, handlers[id]); err != nil {
			return err
		}
	}
	return nil
}

// say speaks text. When speech fails the result is returned unvoiced so
// the caller can try again another way.
func (s *Skills) say(ctx context.Context, text string) tools.Result {
	if err := s.cfg.Speaker.Speak(ctx, text); err != nil {
		s.logger.Warn("speak failed", "error", err)
		return tools.Result{Text: text}
	}
	return tools.Result{Text: text, Voiced: true}
}

func (s *Skills) cue(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if err := s.cfg.Cues.Play(ctx, name); err != nil {
		s.logger.Warn("cue failed", "clip", name, "error", err)
	}
}
