package rps

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/teslashibe/go-tonypi/pkg/camera"
	"github.com/teslashibe/go-tonypi/pkg/robot"
	"github.com/teslashibe/go-tonypi/pkg/vision"
)

func TestJudge(t *testing.T) {
	tests := []struct {
		robot, human vision.Gesture
		want         Outcome
	}{
		{vision.Rock, vision.Scissors, RobotWins},
		{vision.Scissors, vision.Paper, RobotWins},
		{vision.Paper, vision.Rock, RobotWins},
		{vision.Scissors, vision.Rock, HumanWins},
		{vision.Paper, vision.Scissors, HumanWins},
		{vision.Rock, vision.Paper, HumanWins},
		{vision.Rock, vision.Rock, Draw},
		{vision.Paper, vision.None, Invalid},
		{vision.None, vision.None, Invalid},
	}
	for _, tt := range tests {
		if got := Judge(tt.robot, tt.human); got != tt.want {
			t.Errorf("Judge(%v, %v) = %v, want %v", tt.robot, tt.human, got, tt.want)
		}
	}
}

type recordingCues struct {
	mu     sync.Mutex
	played []string
}

func (c *recordingCues) Play(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.played = append(c.played, name)
	return nil
}

type classifierFunc func(ctx context.Context, frame camera.Frame) (vision.Gesture, error)

func (f classifierFunc) Classify(ctx context.Context, frame camera.Frame) (vision.Gesture, error) {
	return f(ctx, frame)
}

var testClips = Clips{
	Start:       "开始.wav",
	Win:         "胜利.wav",
	Lose:        "失败.wav",
	Draw:        "平局.wav",
	Unknown:     "识别失败.wav",
	PhotoFailed: "拍照失败.wav",
}

func newGame(robotMove, human vision.Gesture, classifyErr error) (*Game, *robot.DryRun, *recordingCues, *camera.Mock) {
	runner := robot.NewDryRun(nil)
	cues := &recordingCues{}
	cam := &camera.Mock{}
	classifier := classifierFunc(func(ctx context.Context, frame camera.Frame) (vision.Gesture, error) {
		return human, classifyErr
	})
	g := NewGame(runner, cam, classifier, cues, testClips, nil)
	g.Pick = func() vision.Gesture { return robotMove }
	return g, runner, cues, cam
}

func TestGame_Play(t *testing.T) {
	tests := []struct {
		name        string
		robot       vision.Gesture
		human       vision.Gesture
		classifyErr error
		outcome     Outcome
		clip        string
		actions     []string
	}{
		{"robot wins", vision.Rock, vision.Scissors, nil, RobotWins, "胜利.wav", []string{robot.Rock, robot.Twist}},
		{"human wins", vision.Scissors, vision.Rock, nil, HumanWins, "失败.wav", []string{robot.Scissors, robot.Cry}},
		{"draw", vision.Paper, vision.Paper, nil, Draw, "平局.wav", []string{robot.Paper, robot.Stand}},
		{"unrecognized", vision.Paper, vision.None, nil, Invalid, "识别失败.wav", []string{robot.Paper, robot.Stand}},
		{"classifier failed", vision.Rock, vision.None, errors.New("timeout"), Invalid, "识别失败.wav", []string{robot.Rock, robot.Stand}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, runner, cues, cam := newGame(tt.robot, tt.human, tt.classifyErr)

			round, err := g.Play(context.Background())
			if err != nil {
				t.Fatalf("Play: %v", err)
			}
			if round.Outcome != tt.outcome || round.Robot != tt.robot || round.Human != tt.human {
				t.Errorf("round = %+v", round)
			}
			if want := []string{"开始.wav", tt.clip}; !reflect.DeepEqual(cues.played, want) {
				t.Errorf("cues = %v, want %v", cues.played, want)
			}
			if got := runner.Actions(); !reflect.DeepEqual(got, tt.actions) {
				t.Errorf("actions = %v, want %v", got, tt.actions)
			}
			if cam.Calls() != 1 {
				t.Errorf("captures = %d", cam.Calls())
			}
			if round.Summary() == "" {
				t.Error("empty summary")
			}
		})
	}
}

func TestGame_CaptureFailed(t *testing.T) {
	g, runner, cues, cam := newGame(vision.Rock, vision.Paper, nil)
	cam.CaptureFunc = func(ctx context.Context) (camera.Frame, error) {
		return camera.Frame{}, camera.ErrOpen
	}

	_, err := g.Play(context.Background())
	if !errors.Is(err, ErrCapture) {
		t.Fatalf("err = %v, want ErrCapture", err)
	}
	if want := []string{"开始.wav", "拍照失败.wav"}; !reflect.DeepEqual(cues.played, want) {
		t.Errorf("cues = %v", cues.played)
	}
	if got := runner.Actions(); !reflect.DeepEqual(got, []string{robot.Rock}) {
		t.Errorf("actions = %v", got)
	}
}

func TestRandomMove(t *testing.T) {
	for i := 0; i < 50; i++ {
		if m := randomMove(); m == vision.None {
			t.Fatal("randomMove returned None")
		}
	}
}
