package skills

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-tonypi/pkg/actionseq"
	"github.com/teslashibe/go-tonypi/pkg/camera"
	"github.com/teslashibe/go-tonypi/pkg/inference"
	"github.com/teslashibe/go-tonypi/pkg/rps"
	"github.com/teslashibe/go-tonypi/pkg/tools"
	"github.com/teslashibe/go-tonypi/pkg/vision"
)

type fakeSpeaker struct {
	mu   sync.Mutex
	said []string
	err  error
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, text)
	return f.err
}

func (f *fakeSpeaker) Said() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.said...)
}

type fakeCues struct {
	mu     sync.Mutex
	played []string
	fired  []string
}

func (f *fakeCues) Play(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, name)
	return nil
}

func (f *fakeCues) Fire(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired = append(f.fired, name)
	return true
}

type gameFunc func(ctx context.Context) (rps.Round, error)

func (f gameFunc) Play(ctx context.Context) (rps.Round, error) { return f(ctx) }

type plannerFunc func(ctx context.Context, request string) (actionseq.Plan, error)

func (f plannerFunc) Plan(ctx context.Context, request string) (actionseq.Plan, error) {
	return f(ctx, request)
}

type recordingExecutor struct {
	steps []actionseq.Step
}

func (r *recordingExecutor) Execute(ctx context.Context, steps []actionseq.Step) ([]string, error) {
	r.steps = steps
	return []string{"bow"}, nil
}

type describerFunc func(ctx context.Context, frame camera.Frame, prompt string) (string, error)

func (f describerFunc) Describe(ctx context.Context, frame camera.Frame, prompt string) (string, error) {
	return f(ctx, frame, prompt)
}

type fixture struct {
	speaker  *fakeSpeaker
	cues     *fakeCues
	executor *recordingExecutor
	camera   *camera.Mock
	search   *inference.Mock
	cfg      Config
}

func newFixture() *fixture {
	f := &fixture{
		speaker:  &fakeSpeaker{},
		cues:     &fakeCues{},
		executor: &recordingExecutor{},
		camera:   &camera.Mock{},
		search:   inference.Reply(inference.NewAssistantMessage("北京今天晴，气温二十度。")),
	}
	f.cfg = Config{
		Speaker:  f.speaker,
		Cues:     f.cues,
		LetMeSee: "让我看看.wav",
		Game: gameFunc(func(ctx context.Context) (rps.Round, error) {
			return rps.Round{Robot: vision.Rock, Human: vision.Scissors, Outcome: rps.RobotWins}, nil
		}),
		Planner: plannerFunc(func(ctx context.Context, request string) (actionseq.Plan, error) {
			return actionseq.Plan{
				TextResponse: "好的，我将鞠躬。",
				Steps:        []actionseq.Step{{SequenceID: 1, ActionID: "10"}},
			}, nil
		}),
		Executor: f.executor,
		Camera:   f.camera,
		Scene: describerFunc(func(ctx context.Context, frame camera.Frame, prompt string) (string, error) {
			return "桌子上有一个杯子。", nil
		}),
		Search:      f.search,
		SearchModel: "qwen-plus",
		Now: func() time.Time {
			return time.Date(2025, 3, 9, 8, 5, 7, 0, time.Local)
		},
	}
	return f
}

func (f *fixture) skills(t *testing.T) *Skills {
	t.Helper()
	s, err := New(f.cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNew_MissingDependency(t *testing.T) {
	f := newFixture()
	f.cfg.Search = nil
	if _, err := New(f.cfg); !errors.Is(err, ErrMissingDependency) {
		t.Errorf("err = %v", err)
	}
}

func TestRegister(t *testing.T) {
	r := tools.NewRegistry()
	if err := newFixture().skills(t).Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := len(r.Definitions()); got != 6 {
		t.Errorf("definitions = %d, want 6", got)
	}
	for _, name := range []string{"play_rock_paper_scissors", "execute_action_sequence", "recognize_scene", "get_weather_info", "get_current_time", "search_web"} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("%s not registered", name)
		}
	}
}

func TestPlayRockPaperScissors(t *testing.T) {
	f := newFixture()
	res, err := f.skills(t).PlayRockPaperScissors(context.Background(), nil)
	if err != nil || !res.Voiced || !strings.Contains(res.Text, "我赢了") {
		t.Errorf("result = %+v, %v", res, err)
	}

	f.cfg.Game = gameFunc(func(ctx context.Context) (rps.Round, error) {
		return rps.Round{}, rps.ErrCapture
	})
	res, err = f.skills(t).PlayRockPaperScissors(context.Background(), nil)
	if err != nil || !res.Voiced {
		t.Errorf("capture failure = %+v, %v", res, err)
	}

	boom := errors.New("servo fault")
	f.cfg.Game = gameFunc(func(ctx context.Context) (rps.Round, error) { return rps.Round{}, boom })
	if _, err := f.skills(t).PlayRockPaperScissors(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestExecuteActionSequence(t *testing.T) {
	t.Run("runs plan", func(t *testing.T) {
		f := newFixture()
		res, err := f.skills(t).ExecuteActionSequence(context.Background(), tools.Args{"request_text": "鞠个躬"})
		if err != nil {
			t.Fatalf("err = %v", err)
		}
		if res.Text != "动作序列已执行完毕，执行结果：鞠个躬" || !res.Voiced {
			t.Errorf("result = %+v", res)
		}
		if said := f.speaker.Said(); len(said) != 1 || said[0] != "好的，我将鞠躬。" {
			t.Errorf("said = %v", said)
		}
		if len(f.executor.steps) != 1 {
			t.Errorf("steps = %v", f.executor.steps)
		}
	})

	t.Run("missing request", func(t *testing.T) {
		_, err := newFixture().skills(t).ExecuteActionSequence(context.Background(), tools.Args{})
		if !errors.Is(err, ErrMissingArgument) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("unusable plan", func(t *testing.T) {
		f := newFixture()
		f.cfg.Planner = plannerFunc(func(ctx context.Context, request string) (actionseq.Plan, error) {
			return actionseq.Plan{}, actionseq.ErrInvalidPlan
		})
		res, err := f.skills(t).ExecuteActionSequence(context.Background(), tools.Args{"request_text": "飞起来"})
		if err != nil || !res.Voiced {
			t.Errorf("result = %+v, %v", res, err)
		}
		if said := f.speaker.Said(); len(said) != 1 || said[0] != notUnderstood {
			t.Errorf("said = %v", said)
		}
		if f.executor.steps != nil {
			t.Error("executor should not run")
		}
	})
}

func TestRecognizeScene(t *testing.T) {
	f := newFixture()
	res, err := f.skills(t).RecognizeScene(context.Background(), nil)
	if err != nil || res.Text != "桌子上有一个杯子。" || !res.Voiced {
		t.Errorf("result = %+v, %v", res, err)
	}
	if len(f.cues.fired) != 1 || f.cues.fired[0] != "让我看看.wav" {
		t.Errorf("fired = %v", f.cues.fired)
	}
	if f.camera.Calls() != 1 {
		t.Errorf("captures = %d", f.camera.Calls())
	}

	f.camera.CaptureFunc = func(ctx context.Context) (camera.Frame, error) { return camera.Frame{}, camera.ErrOpen }
	if _, err := f.skills(t).RecognizeScene(context.Background(), nil); !errors.Is(err, camera.ErrOpen) {
		t.Errorf("err = %v", err)
	}
}

func TestLookups(t *testing.T) {
	for _, name := range []string{"weather", "search"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			s := f.skills(t)
			h := s.GetWeather
			if name == "search" {
				h = s.SearchWeb
			}

			res, err := h(context.Background(), tools.Args{"query": "北京天气"})
			if err != nil || res.Text != "北京今天晴，气温二十度。" || !res.Voiced {
				t.Fatalf("result = %+v, %v", res, err)
			}
			req := f.search.LastRequest()
			if !req.EnableSearch || req.Model != "qwen-plus" || req.Messages[0].Content != "北京天气" {
				t.Errorf("request = %+v", req)
			}
			if len(f.cues.played) != 1 || f.cues.played[0] != "让我看看.wav" {
				t.Errorf("played = %v", f.cues.played)
			}

			if _, err := h(context.Background(), tools.Args{}); !errors.Is(err, ErrMissingArgument) {
				t.Errorf("missing query: %v", err)
			}
		})
	}
}

func TestLookup_EmptyAnswer(t *testing.T) {
	f := newFixture()
	f.cfg.Search = inference.Reply(inference.NewAssistantMessage("  "))
	if _, err := f.skills(t).SearchWeb(context.Background(), tools.Args{"query": "x"}); !errors.Is(err, ErrNoAnswer) {
		t.Errorf("err = %v", err)
	}
}

func TestGetCurrentTime(t *testing.T) {
	f := newFixture()
	res, err := f.skills(t).GetCurrentTime(context.Background(), nil)
	want := "当前时间为2025年03月09日 08时05分07秒"
	if err != nil || res.Text != want || !res.Voiced {
		t.Errorf("result = %+v, %v", res, err)
	}

	f.speaker.err = errors.New("tts down")
	res, _ = f.skills(t).GetCurrentTime(context.Background(), nil)
	if res.Voiced || res.Text != want {
		t.Errorf("unvoiced result = %+v", res)
	}
}

func TestDispatchThroughRegistry(t *testing.T) {
	r := tools.NewRegistry()
	if err := newFixture().skills(t).Register(r); err != nil {
		t.Fatal(err)
	}
	res := tools.NewDispatcher(r, nil).Dispatch(context.Background(), "get_current_time", "{}")
	if res.Err != nil || !strings.HasPrefix(res.Text, tools.ResultPrefix+"当前时间为") {
		t.Errorf("result = %+v", res)
	}
}
