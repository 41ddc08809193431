// Package rps plays one round of rock-paper-scissors with the robot.
//
// A round plays a start cue, picks the robot's move at random and performs
// it as an action group, photographs the player's hand, asks the vision
// model which gesture it shows, then plays the result cue and an emotion
// action.
package rps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/teslashibe/go-tonypi/pkg/camera"
	"github.com/teslashibe/go-tonypi/pkg/robot"
	"github.com/teslashibe/go-tonypi/pkg/vision"
)

// Outcome is the result of a round from the robot's point of view.
type Outcome int

const (
	Invalid Outcome = iota
	RobotWins
	HumanWins
	Draw
)

func (o Outcome) String() string {
	switch o {
	case RobotWins:
		return "robot_wins"
	case HumanWins:
		return "human_wins"
	case Draw:
		return "draw"
	default:
		return "invalid"
	}
}

// ErrCapture is returned when no photo could be taken.
var ErrCapture = errors.New("rps: capture failed")

// Judge decides a round. Any None gesture makes the round Invalid.
func Judge(robotMove, human vision.Gesture) Outcome {
	if robotMove == vision.None || human == vision.None {
		return Invalid
	}
	if robotMove == human {
		return Draw
	}
	if beats(robotMove, human) {
		return RobotWins
	}
	return HumanWins
}

func beats(a, b vision.Gesture) bool {
	switch a {
	case vision.Rock:
		return b == vision.Scissors
	case vision.Scissors:
		return b == vision.Paper
	case vision.Paper:
		return b == vision.Rock
	}
	return false
}

// Cues plays named audio clips. *playback.Cues implements it.
type Cues interface {
	Play(ctx context.Context, name string) error
}

// Classifier names the gesture in a photo. *vision.GestureClassifier
// implements it.
type Classifier interface {
	Classify(ctx context.Context, frame camera.Frame) (vision.Gesture, error)
}

// Clips names the cue clips a round plays.
type Clips struct {
	Start       string
	Win         string
	Lose        string
	Draw        string
	Unknown     string
	PhotoFailed string
}

// Round is a finished round.
type Round struct {
	Robot   vision.Gesture
	Human   vision.Gesture
	Outcome Outcome
}

// Summary is a short spoken-style description of the round.
func (r Round) Summary() string {
	switch r.Outcome {
	case RobotWins:
		return fmt.Sprintf("我出了%s，你出了%s，我赢了", r.Robot, r.Human)
	case HumanWins:
		return fmt.Sprintf("我出了%s，你出了%s，你赢了", r.Robot, r.Human)
	case Draw:
		return fmt.Sprintf("我们都出了%s，平局", r.Robot)
	default:
		return fmt.Sprintf("我出了%s，但没有识别出你的手势", r.Robot)
	}
}

// Game runs rounds.
type Game struct {
	runner     robot.ActionRunner
	cam        camera.Capturer
	classifier Classifier
	cues       Cues
	clips      Clips
	logger     *slog.Logger

	// Pick chooses the robot's move. It defaults to a uniform random choice.
	Pick func() vision.Gesture
}

// NewGame creates a game.
func NewGame(runner robot.ActionRunner, cam camera.Capturer, classifier Classifier, cues Cues, clips Clips, logger *slog.Logger) *Game {
	if logger == nil {
		logger = slog.Default()
	}
	return &Game{
		runner:     runner,
		cam:        cam,
		classifier: classifier,
		cues:       cues,
		clips:      clips,
		logger:     logger.With("component", "rps"),
		Pick:       randomMove,
	}
}

func randomMove() vision.Gesture {
	return []vision.Gesture{vision.Rock, vision.Scissors, vision.Paper}[rand.Intn(3)]
}

// Play runs one round. A failed photo or an unrecognized hand is not an
// error when the player has already been told so by a cue; the returned
// Round is then Invalid.
func (g *Game) Play(ctx context.Context) (Round, error) {
	g.cue(ctx, g.clips.Start)

	round := Round{Robot: g.Pick()}
	g.logger.Info("robot move", "gesture", round.Robot.String())
	if err := g.runner.RunAction(ctx, gestureAction(round.Robot), 1); err != nil {
		return round, fmt.Errorf("rps: perform %s: %w", round.Robot, err)
	}

	frame, err := g.cam.Capture(ctx)
	if err != nil {
		g.logger.Error("capture failed", "error", err)
		g.cue(ctx, g.clips.PhotoFailed)
		return round, fmt.Errorf("%w: %v", ErrCapture, err)
	}

	human, err := g.classifier.Classify(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return round, ctx.Err()
		}
		g.logger.Warn("gesture classification failed", "error", err)
		human = vision.None
	}
	round.Human = human
	round.Outcome = Judge(round.Robot, human)
	g.logger.Info("round finished",
		"robot", round.Robot.String(),
		"human", round.Human.String(),
		"outcome", round.Outcome.String(),
	)

	g.cue(ctx, g.resultClip(round.Outcome))
	if err := g.runner.RunAction(ctx, emotionAction(round.Outcome), 1); err != nil {
		g.logger.Warn("emotion action failed", "error", err)
	}
	return round, nil
}

func (g *Game) resultClip(o Outcome) string {
	switch o {
	case RobotWins:
		return g.clips.Win
	case HumanWins:
		return g.clips.Lose
	case Draw:
		return g.clips.Draw
	default:
		return g.clips.Unknown
	}
}

// cue plays a clip; a missing or failed clip does not stop the round.
func (g *Game) cue(ctx context.Context, name string) {
	if name == "" || g.cues == nil {
		return
	}
	if err := g.cues.Play(ctx, name); err != nil {
		g.logger.Warn("cue failed", "clip", name, "error", err)
	}
}

func gestureAction(m vision.Gesture) string {
	switch m {
	case vision.Rock:
		return robot.Rock
	case vision.Scissors:
		return robot.Scissors
	case vision.Paper:
		return robot.Paper
	}
	return robot.Stand
}

func emotionAction(o Outcome) string {
	switch o {
	case RobotWins:
		return robot.Twist
	case HumanWins:
		return robot.Cry
	default:
		return robot.Stand
	}
}
