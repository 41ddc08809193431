// Package engine runs the robot's voice dialogue.
//
// The Engine starts Idle, listening for the wake and goodbye phrases. The
// wake phrase opens a session and switches to Active, where each turn
// records one utterance, asks the dialogue model, runs any tool it calls
// and speaks the answer. A turn that fails for any reason is contained:
// the user hears an apology, the session is reset and the engine goes back
// to Idle after a short backoff. The goodbye phrase heard while Idle ends
// Run with ErrGoodbye.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-tonypi/pkg/dialogue"
	"github.com/teslashibe/go-tonypi/pkg/hotword"
	"github.com/teslashibe/go-tonypi/pkg/inference"
	"github.com/teslashibe/go-tonypi/pkg/robot"
	"github.com/teslashibe/go-tonypi/pkg/tools"
)

// Signals registered with the hotword matcher.
const (
	SignalWake    hotword.Signal = 1
	SignalGoodbye hotword.Signal = 2
)

// Spoken phrases.
const (
	Farewell = "再见，期待下次与你对话。"
	Reprompt = "没有检测到有效语音输入，请再说一遍。"
	FollowUp = "还有什么我可以帮你的吗？"
	Apology  = "抱歉，处理您的请求时出现了问题。"

	toolFailed = "抱歉，刚才的操作没有完成。"
)

// Listener waits for a hotword. *hotword.Listener implements it.
type Listener interface {
	Listen(ctx context.Context) (hotword.Signal, error)
}

// Transcriber records one utterance and returns its text, or "" when
// nothing usable was heard. *stt.Transcriber implements it.
type Transcriber interface {
	Transcribe(ctx context.Context) (string, error)
}

// Speaker says text and returns when it has been played. *tts.Speaker
// implements it.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Cues plays named clips. *playback.Cues implements it.
type Cues interface {
	Play(ctx context.Context, name string) error
	Fire(name string) bool
	Has(name string) bool
}

// Dispatcher runs a tool call. *tools.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name, rawArgs string) tools.Result
}

// Deps are the engine's collaborators. All are required.
type Deps struct {
	Listener    Listener
	Transcriber Transcriber
	Model       dialogue.Model
	Dispatcher  Dispatcher
	Speaker     Speaker
	Cues        Cues
	Robot       robot.ActionRunner
}

func (d Deps) validate() error {
	switch {
	case d.Listener == nil:
		return errors.New("engine: listener required")
	case d.Transcriber == nil:
		return errors.New("engine: transcriber required")
	case d.Model == nil:
		return errors.New("engine: dialogue model required")
	case d.Dispatcher == nil:
		return errors.New("engine: dispatcher required")
	case d.Speaker == nil:
		return errors.New("engine: speaker required")
	case d.Cues == nil:
		return errors.New("engine: cues required")
	case d.Robot == nil:
		return errors.New("engine: robot required")
	}
	return nil
}

// Engine is the dialogue state machine.
type Engine struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	goodbye []string

	mu      sync.RWMutex
	state   State
	session *Session
	last    *Turn

	// OnStateChange, when set, is called after every transition.
	OnStateChange func(from, to State)

	// OnTurn, when set, is called after every Active turn.
	OnTurn func(t Turn)
}

// New creates an engine in the Idle state.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.Tokenizer == nil {
		cfg.Tokenizer = hotword.NewPinyinTokenizer()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		cfg:     cfg,
		deps:    deps,
		logger:  cfg.Logger.With("component", "engine"),
		goodbye: hotword.Phonetic(cfg.Tokenizer, cfg.GoodbyePhrase),
		state:   Idle,
		session: newSession(cfg.SystemPrompt),
	}, nil
}

// Run drives the state machine until ctx is cancelled or the goodbye
// phrase is heard while Idle.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started", "state", e.State().String())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.State() == Active {
			e.Turn(ctx)
			continue
		}

		if err := e.listen(ctx); err != nil {
			if errors.Is(err, ErrGoodbye) || ctx.Err() != nil {
				return err
			}
			e.logger.Error("listening failed", "error", err)
			if err := e.backoff(ctx); err != nil {
				return err
			}
		}
	}
}

// listen handles one Idle step.
func (e *Engine) listen(ctx context.Context) error {
	sig, err := e.deps.Listener.Listen(ctx)
	if err != nil {
		return err
	}

	switch sig {
	case SignalWake:
		e.logger.Info("wake phrase heard")
		e.Wake()
	case SignalGoodbye:
		return e.shutdown(ctx)
	default:
		e.logger.Debug("ignoring signal", "signal", int(sig))
	}
	return nil
}

// Wake opens a new session and switches to Active. The acknowledgement
// clip is started without waiting for it.
func (e *Engine) Wake() {
	e.deps.Cues.Fire(e.cfg.AckClip)

	e.mu.Lock()
	e.session = newSession(e.cfg.SystemPrompt)
	e.mu.Unlock()
	e.setState(Active)
}

// shutdown says goodbye and puts the robot in its rest pose.
func (e *Engine) shutdown(ctx context.Context) error {
	e.logger.Info("goodbye phrase heard, shutting down")
	if err := e.deps.Speaker.Speak(ctx, Farewell); err != nil {
		e.logger.Warn("farewell failed", "error", err)
	}
	if err := e.deps.Robot.RunAction(ctx, robot.Stand, 1); err != nil {
		e.logger.Warn("rest pose failed", "error", err)
	}
	return ErrGoodbye
}

// Turn runs one Active turn and returns its description. It never panics
// and never leaves the session half-updated.
func (e *Engine) Turn(ctx context.Context) (t Turn) {
	start := time.Now()
	e.mu.RLock()
	t.SessionID = e.session.ID
	t.Number = e.session.Turns + 1
	e.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			t = e.abandon(ctx, t, fmt.Errorf("engine: turn panic: %v", r))
		}
		t.Elapsed = time.Since(start)
		e.mu.Lock()
		last := t
		e.last = &last
		e.mu.Unlock()
		if e.OnTurn != nil {
			e.OnTurn(t)
		}
	}()

	text, err := e.deps.Transcriber.Transcribe(ctx)
	if err != nil {
		return e.abandon(ctx, t, err)
	}
	t.User = strings.TrimSpace(text)

	if t.User == "" {
		e.logger.Info("empty utterance, re-prompting")
		if err := e.deps.Speaker.Speak(ctx, Reprompt); err != nil {
			return e.abandon(ctx, t, err)
		}
		t.Outcome = OutcomeEmpty
		return t
	}
	e.logger.Info("user said", "text", t.User, "turn", t.Number)

	if e.cfg.EndOnGoodbye && e.saysGoodbye(t.User) {
		return e.end(ctx, t)
	}

	history := e.History()
	reply, err := e.deps.Model.Converse(ctx, history, t.User)
	if err != nil {
		return e.abandon(ctx, t, err)
	}

	if reply.IsToolCall() {
		err = e.toolTurn(ctx, &t, reply.Call)
	} else {
		err = e.textTurn(ctx, &t, reply.Text)
	}
	if err != nil {
		return e.abandon(ctx, t, err)
	}

	t.Outcome = OutcomeSuccess
	e.finishTurn()
	return t
}

func (e *Engine) textTurn(ctx context.Context, t *Turn, text string) error {
	if text == "" {
		text = dialogue.NoReply
	}
	t.Reply = text
	e.commit(inference.NewUserMessage(t.User), inference.NewAssistantMessage(text))

	e.logger.Info("assistant replied", "text", text)
	return e.deps.Speaker.Speak(ctx, text)
}

// toolTurn runs call and records user, call, result and the follow-up
// question together before anything is said.
func (e *Engine) toolTurn(ctx context.Context, t *Turn, call *inference.ToolCall) error {
	res := e.deps.Dispatcher.Dispatch(ctx, call.Name, call.Arguments)
	t.Tool = call.Name
	t.Result = res.Text
	t.Reply = FollowUp

	e.commit(
		inference.NewUserMessage(t.User),
		inference.NewToolCallMessage(*call),
		inference.NewToolMessage(call.ID, res.Text),
		inference.NewAssistantMessage(FollowUp),
	)

	if !res.Voiced {
		if err := e.deps.Speaker.Speak(ctx, spokenResult(res)); err != nil {
			return err
		}
	}
	return e.taskComplete(ctx)
}

// spokenResult is what the user hears for a result its handler did not voice.
func spokenResult(res tools.Result) string {
	if res.Err != nil {
		return toolFailed
	}
	return strings.TrimPrefix(res.Text, tools.ResultPrefix)
}

// taskComplete plays the task-complete clip, or says the follow-up
// question when the clip is missing.
func (e *Engine) taskComplete(ctx context.Context) error {
	if e.deps.Cues.Has(e.cfg.TaskCompleteClip) {
		err := e.deps.Cues.Play(ctx, e.cfg.TaskCompleteClip)
		if err == nil {
			return nil
		}
		e.logger.Warn("task complete clip failed", "error", err)
	}
	return e.deps.Speaker.Speak(ctx, FollowUp)
}

// finishTurn counts the turn and reseeds the history every ResetEvery turns.
func (e *Engine) finishTurn() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Turns++
	if e.session.Turns%e.cfg.ResetEvery == 0 {
		e.session.reseed(e.cfg.SystemPrompt)
		e.logger.Info("history reset", "turns", e.session.Turns)
	}
}

// end closes the dialogue after a goodbye heard while Active.
func (e *Engine) end(ctx context.Context, t Turn) Turn {
	e.logger.Info("goodbye heard in dialogue, returning to idle")
	if err := e.deps.Speaker.Speak(ctx, Farewell); err != nil {
		e.logger.Warn("farewell failed", "error", err)
	}
	e.resetSession()
	e.setState(Idle)
	t.Reply = Farewell
	t.Outcome = OutcomeEnded
	return t
}

// saysGoodbye reports whether the utterance ends with the goodbye phrase,
// so "好的，再见" ends the dialogue but "明天再见面吧" does not.
func (e *Engine) saysGoodbye(text string) bool {
	if len(e.goodbye) == 0 {
		return false
	}
	said := hotword.Phonetic(e.cfg.Tokenizer, text)
	if len(said) < len(e.goodbye) {
		return false
	}
	return slices.Equal(said[len(said)-len(e.goodbye):], e.goodbye)
}

// abandon gives up on the turn: the user hears an apology, the session is
// reset and the engine goes Idle after the backoff.
func (e *Engine) abandon(ctx context.Context, t Turn, err error) Turn {
	t.Err = err
	t.Outcome = OutcomeRecovered
	if ctx.Err() != nil {
		return t
	}

	e.logger.Error("turn failed",
		"turn", t.Number,
		"error", err,
		"network", IsNetworkError(err),
	)
	if serr := e.deps.Speaker.Speak(ctx, Apology); serr != nil {
		e.logger.Warn("apology failed", "error", serr)
	}

	e.resetSession()
	e.setState(Idle)
	_ = e.backoff(ctx)
	return t
}

func (e *Engine) backoff(ctx context.Context) error {
	if e.cfg.ErrorBackoff <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.cfg.ErrorBackoff):
		return nil
	}
}

func (e *Engine) commit(msgs ...inference.Message) {
	e.mu.Lock()
	e.session.commit(msgs...)
	e.mu.Unlock()
}

func (e *Engine) resetSession() {
	e.mu.Lock()
	e.session.reseed(e.cfg.SystemPrompt)
	e.mu.Unlock()
}

func (e *Engine) setState(to State) {
	e.mu.Lock()
	from := e.state
	e.state = to
	e.mu.Unlock()

	if from == to {
		return
	}
	e.logger.Info("state changed", "from", from.String(), "to", to.String())
	if e.OnStateChange != nil {
		e.OnStateChange(from, to)
	}
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Session returns a copy of the current session.
func (e *Engine) Session() Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.snapshot()
}

// History returns a copy of the current history.
func (e *Engine) History() []inference.Message {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]inference.Message(nil), e.session.History...)
}

// LastTurn returns the most recent turn, or nil before the first one.
func (e *Engine) LastTurn() *Turn {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return nil
	}
	t := *e.last
	return &t
}
