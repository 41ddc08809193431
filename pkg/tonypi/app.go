// Package tonypi assembles the voice-control process: audio devices, the
// hotword listener, speech services, the tool skills and the dialogue
// engine, plus the optional dashboard.
package tonypi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-tonypi/internal/config"
	"github.com/teslashibe/go-tonypi/pkg/actionseq"
	"github.com/teslashibe/go-tonypi/pkg/audioio"
	"github.com/teslashibe/go-tonypi/pkg/camera"
	"github.com/teslashibe/go-tonypi/pkg/camera/usb"
	"github.com/teslashibe/go-tonypi/pkg/dialogue"
	"github.com/teslashibe/go-tonypi/pkg/endpoint"
	"github.com/teslashibe/go-tonypi/pkg/engine"
	"github.com/teslashibe/go-tonypi/pkg/hotword"
	"github.com/teslashibe/go-tonypi/pkg/inference"
	"github.com/teslashibe/go-tonypi/pkg/playback"
	"github.com/teslashibe/go-tonypi/pkg/robot"
	"github.com/teslashibe/go-tonypi/pkg/rps"
	"github.com/teslashibe/go-tonypi/pkg/skills"
	"github.com/teslashibe/go-tonypi/pkg/stt"
	"github.com/teslashibe/go-tonypi/pkg/tools"
	"github.com/teslashibe/go-tonypi/pkg/tts"
	"github.com/teslashibe/go-tonypi/pkg/vision"
	"github.com/teslashibe/go-tonypi/pkg/vosk"
	"github.com/teslashibe/go-tonypi/pkg/web"
)

const shutdownTimeout = 5 * time.Second

// App owns every component of the running process.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	web    *web.Server

	// cancel aborts the recording in progress.
	cancel chan struct{}

	source audioio.Source
	sink   audioio.Sink
	vosk   *vosk.Client
	llm    *inference.Client
	tts    *tts.OpenAI
	coord  *playback.Coordinator
	robot  robot.ActionRunner

	tokenizer  *hotword.PinyinTokenizer
	listener   *hotword.Listener
	speaker    *tts.Speaker
	cues       *playback.Cues
	cameras    *camera.Manager
	dispatcher *tools.Dispatcher
	engine     *engine.Engine

	// rested is set once the engine has already put the robot in its
	// rest pose on the way out.
	rested bool
}

// Option configures an App.
type Option func(*App)

// WithDashboard mirrors status, conversation and camera frames to s.
func WithDashboard(s *web.Server) Option {
	return func(a *App) { a.web = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New creates an App. Nothing is opened until Init.
func New(cfg config.Config, opts ...Option) *App {
	a := &App{
		cfg:    cfg,
		cancel: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "tonypi")
	return a
}

// Init opens the audio devices and builds every component. Device
// failures are reported as engine.ErrHardwareInit.
func (a *App) Init(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"audio", a.initAudio},
		{"robot", a.initRobot},
		{"speech", a.initSpeech},
		{"tools", a.initTools},
		{"engine", a.initEngine},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("init %s: %w", s.name, err)
		}
		a.logger.Debug("initialized", "step", s.name)
	}
	a.initDashboard()
	return nil
}

// Run puts the robot in its rest pose and runs the dialogue until ctx is
// cancelled or the goodbye phrase is heard while Idle (engine.ErrGoodbye).
func (a *App) Run(ctx context.Context) error {
	if a.engine == nil {
		return errors.New("tonypi: Run called before Init")
	}
	if a.web != nil {
		a.web.StartAsync()
	}
	if err := a.robot.RunAction(ctx, robot.Stand, 1); err != nil {
		a.logger.Warn("rest pose failed", "error", err)
	}
	a.logger.Info("listening", "wake", a.cfg.Hotword.WakePhrase, "goodbye", a.cfg.Hotword.GoodbyePhrase)
	return a.finished(a.engine.Run(ctx))
}

// finished records how the engine stopped and passes err through.
func (a *App) finished(err error) error {
	a.rested = errors.Is(err, engine.ErrGoodbye)
	return err
}

// CancelRecording ends the utterance being recorded, as if the speaker had
// gone quiet. It never blocks.
func (a *App) CancelRecording() {
	select {
	case a.cancel <- struct{}{}:
	default:
	}
}

// Shutdown stands the robot up, unless a goodbye already did, and releases
// every device. It is safe to
// call after a failed Init.
func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.robot != nil && !a.rested {
		if err := a.robot.RunAction(ctx, robot.Stand, 1); err != nil {
			a.logger.Warn("rest pose failed", "error", err)
		}
	}
	var closers []closer
	if a.web != nil {
		closers = append(closers, closer{"dashboard", a.web.Shutdown})
	}
	if a.coord != nil {
		closers = append(closers, closer{"playback", a.coord.Close})
	}
	if a.sink != nil {
		closers = append(closers, closer{"speaker", a.sink.Stop})
	}
	if a.source != nil {
		closers = append(closers, closer{"microphone", a.source.Stop})
	}
	if a.vosk != nil {
		closers = append(closers, closer{"vosk", a.vosk.Close})
	}
	if a.tts != nil {
		closers = append(closers, closer{"tts", a.tts.Close})
	}
	if a.llm != nil {
		closers = append(closers, closer{"inference", a.llm.Close})
	}
	for _, c := range closers {
		if err := c.fn(); err != nil {
			a.logger.Warn("close failed", "component", c.name, "error", err)
		}
	}
	a.logger.Info("shut down")
}

type closer struct {
	name string
	fn   func() error
}

// Engine returns the dialogue engine, or nil before Init.
func (a *App) Engine() *engine.Engine { return a.engine }

func (a *App) initAudio(ctx context.Context) error {
	capture := audioio.DefaultConfig()
	capture.Backend = audioio.Backend(a.cfg.Audio.Backend)
	capture.SampleRate = a.cfg.Audio.SampleRate
	capture.FrameSamples = a.cfg.Audio.FrameSamples
	capture.Device = a.cfg.Audio.CaptureDevice

	src, err := audioio.NewSource(capture, a.logger)
	if err != nil {
		return engine.HardwareError("microphone", err)
	}
	a.source = src

	out := capture
	out.SampleRate = a.cfg.Audio.PlaybackRate
	out.Device = a.cfg.Audio.PlaybackDevice
	sink, err := audioio.NewSink(out, a.logger)
	if err != nil {
		return engine.HardwareError("speaker", err)
	}
	if err := sink.Start(ctx); err != nil {
		return engine.HardwareError("speaker", err)
	}
	a.sink = sink
	return nil
}

func (a *App) initRobot(context.Context) error {
	if a.cfg.Robot.DryRun {
		a.logger.Info("robot dry run, actions are only logged")
		a.robot = robot.NewDryRun(a.logger)
		return nil
	}
	a.robot = robot.NewRPCController(a.cfg.Robot.Host, a.cfg.Robot.Port, a.logger)
	return nil
}

func (a *App) initSpeech(context.Context) error {
	a.tokenizer = hotword.NewPinyinTokenizer()
	matcher, err := newMatcher(a.tokenizer, a.cfg.Hotword.WakePhrase, a.cfg.Hotword.GoodbyePhrase)
	if err != nil {
		return err
	}

	a.vosk = vosk.New(vosk.Config{
		URL:        a.cfg.Hotword.VoskURL,
		SampleRate: a.cfg.Audio.SampleRate,
		Logger:     a.logger,
	})
	a.listener = hotword.NewListener(a.source, a.vosk, matcher,
		hotword.WithMaxPartialTokens(a.cfg.Hotword.MaxPartialTokens),
		hotword.WithTokenizer(a.tokenizer),
		hotword.WithLogger(a.logger),
	)

	a.coord = playback.New(playback.NewSinkPlayer(a.sink), playback.WithLogger(a.logger))
	a.cues = playback.NewCues(playback.NewLibrary(a.cfg.Clips.Dir), a.coord)

	voice, err := tts.NewOpenAI(
		tts.WithAPIKey(a.cfg.Speech.APIKey),
		tts.WithBaseURL(a.cfg.Speech.BaseURL),
		tts.WithModel(a.cfg.Speech.TTSModel),
		tts.WithVoice(a.cfg.Speech.Voice),
		tts.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	a.tts = voice
	a.speaker = tts.NewSpeaker(voice, a.coord, playback.NewSinkPlayer(a.sink), a.logger)

	llm, err := inference.NewClient(
		inference.WithAPIKey(a.cfg.LLM.APIKey),
		inference.WithBaseURL(a.cfg.LLM.BaseURL),
		inference.WithModel(a.cfg.LLM.Model),
		inference.WithVisionModel(a.cfg.LLM.VisionModel),
		inference.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	a.llm = llm
	return nil
}

func (a *App) initTools(context.Context) error {
	table, err := robot.NewTable(a.cfg.Actions)
	if err != nil {
		return err
	}

	a.cameras = camera.NewManager(camera.Config{
		Device:  a.cfg.Camera.Device,
		Width:   a.cfg.Camera.Width,
		Height:  a.cfg.Camera.Height,
		Quality: a.cfg.Camera.Quality,
		Warmup:  a.cfg.Camera.Warmup,
	})
	var cam camera.Capturer = usb.New(a.cameras, a.logger)
	if a.web != nil {
		cam = &camera.Notifier{Capturer: cam, OnFrame: func(f camera.Frame) {
			a.web.SendCameraFrame(f.JPEG)
		}}
	}

	vcfg := vision.DefaultClassifierConfig()
	vcfg.Attempts = a.cfg.Vision.Attempts
	vcfg.AttemptTimeout = a.cfg.Vision.AttemptTimeout
	vcfg.RetryDelay = a.cfg.Vision.RetryDelay
	vcfg.Logger = a.logger

	clips := a.cfg.Clips
	game := rps.NewGame(a.robot, cam, vision.NewGestureClassifier(a.llm, vcfg), a.cues, rps.Clips{
		Start:       clips.RPSStart,
		Win:         clips.RPSWin,
		Lose:        clips.RPSLose,
		Draw:        clips.RPSDraw,
		Unknown:     clips.RPSUnknown,
		PhotoFailed: clips.PhotoFailed,
	}, a.logger)

	sk, err := skills.New(skills.Config{
		Speaker:     a.speaker,
		Cues:        a.cues,
		LetMeSee:    clips.LetMeSee,
		Game:        game,
		Planner:     actionseq.NewPlanner(a.llm, table, a.cfg.LLM.Model, a.logger),
		Executor:    actionseq.NewExecutor(a.robot, table, a.logger),
		Camera:      cam,
		Scene:       vision.NewSceneDescriber(a.llm, a.cfg.LLM.VisionModel, a.logger),
		Search:      a.llm,
		SearchModel: a.cfg.LLM.SearchModel,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}

	registry := tools.NewRegistry()
	if err := sk.Register(registry); err != nil {
		return err
	}
	a.dispatcher = tools.NewDispatcher(registry, a.logger)
	return nil
}

func (a *App) initEngine(context.Context) error {
	ep := endpoint.DefaultConfig()
	ep.MinAmplitude = a.cfg.Endpoint.MinAmplitude
	ep.SilenceWindow = a.cfg.Endpoint.SilenceWindow
	ep.MaxDuration = a.cfg.Endpoint.MaxDuration
	ep.FrameSamples = a.cfg.Audio.FrameSamples
	ep.SampleRate = a.cfg.Audio.SampleRate
	endpointer, err := endpoint.New(ep)
	if err != nil {
		return err
	}

	recognizer, err := stt.NewClient(
		stt.WithAPIKey(a.cfg.Speech.APIKey),
		stt.WithBaseURL(a.cfg.Speech.BaseURL),
		stt.WithModel(a.cfg.Speech.STTModel),
		stt.WithLanguage(a.cfg.Speech.Language),
		stt.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	chat := dialogue.NewChat(a.llm, dialogue.WithModel(a.cfg.LLM.Model), dialogue.WithLogger(a.logger))
	model := dialogue.NewToolCaller(chat, a.dispatcher.Registry().Definitions())

	ecfg := engineConfig(a.cfg)
	ecfg.Tokenizer = a.tokenizer
	ecfg.Logger = a.logger

	eng, err := engine.New(ecfg, engine.Deps{
		Listener:    a.listener,
		Transcriber: stt.NewTranscriber(a.source, endpointer, recognizer, a.cancel, a.logger),
		Model:       model,
		Dispatcher:  a.dispatcher,
		Speaker:     a.speaker,
		Cues:        a.cues,
		Robot:       a.robot,
	})
	if err != nil {
		return err
	}
	a.engine = eng
	return nil
}

func (a *App) initDashboard() {
	if a.web == nil {
		return
	}
	a.web.Mount(a.dispatcher, a.cameras)
	bridge := &dashboard{web: a.web, engine: a.engine, dryRun: a.cfg.Robot.DryRun}
	a.engine.OnStateChange = bridge.stateChanged
	a.engine.OnTurn = bridge.turnFinished
}

// newMatcher registers the wake and goodbye phrases as pinyin sequences.
func newMatcher(tok hotword.Tokenizer, wake, goodbye string) (*hotword.Matcher, error) {
	m := hotword.NewMatcher()
	if err := m.Register("wake", hotword.Phonetic(tok, wake), engine.SignalWake); err != nil {
		return nil, fmt.Errorf("wake phrase %q: %w", wake, err)
	}
	if err := m.Register("goodbye", hotword.Phonetic(tok, goodbye), engine.SignalGoodbye); err != nil {
		return nil, fmt.Errorf("goodbye phrase %q: %w", goodbye, err)
	}
	return m, nil
}

// engineConfig maps the dialogue and clip settings onto engine.Config.
func engineConfig(cfg config.Config) engine.Config {
	ecfg := engine.DefaultConfig()
	if cfg.Dialogue.SystemPrompt != "" {
		ecfg.SystemPrompt = cfg.Dialogue.SystemPrompt
	}
	ecfg.ResetEvery = cfg.Dialogue.ResetEvery
	ecfg.ErrorBackoff = cfg.Dialogue.ErrorBackoff
	ecfg.EndOnGoodbye = cfg.Dialogue.EndOnGoodbye
	ecfg.GoodbyePhrase = cfg.Hotword.GoodbyePhrase
	ecfg.AckClip = cfg.Clips.Ack
	ecfg.TaskCompleteClip = cfg.Clips.TaskComplete
	return ecfg
}
