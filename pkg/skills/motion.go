package skills

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-tonypi/pkg/actionseq"
	"github.com/teslashibe/go-tonypi/pkg/rps"
	"github.com/teslashibe/go-tonypi/pkg/tools"
)

const notUnderstood = "我无法理解您的指令"

// PlayRockPaperScissors plays one round. The round's cues tell the player
// how it went.
func (s *Skills) PlayRockPaperScissors(ctx context.Context, _ tools.Args) (tools.Result, error) {
	round, err := s.cfg.Game.Play(ctx)
	if errors.Is(err, rps.ErrCapture) {
		return tools.Result{Text: "拍照失败，石头剪刀布游戏未完成", Voiced: true}, nil
	}
	if err != nil {
		return tools.Result{}, err
	}
	return tools.Result{Text: "石头剪刀布游戏已完成，" + round.Summary(), Voiced: true}, nil
}

// ExecuteActionSequence plans request_text, reads the plan back and runs it.
func (s *Skills) ExecuteActionSequence(ctx context.Context, args tools.Args) (tools.Result, error) {
	request := args.String("request_text")
	if request == "" {
		return tools.Result{}, fmt.Errorf("%w: request_text", ErrMissingArgument)
	}

	plan, err := s.cfg.Planner.Plan(ctx, request)
	if errors.Is(err, actionseq.ErrNoPlan) || errors.Is(err, actionseq.ErrInvalidPlan) {
		s.logger.Warn("no usable plan", "request", request, "error", err)
		res := s.say(ctx, notUnderstood)
		res.Text = "未能解析动作序列：" + request
		return res, nil
	}
	if err != nil {
		return tools.Result{}, err
	}

	if plan.TextResponse != "" {
		if err := s.cfg.Speaker.Speak(ctx, plan.TextResponse); err != nil {
			s.logger.Warn("speak failed", "error", err)
		}
	}

	ran, err := s.cfg.Executor.Execute(ctx, plan.Steps)
	if err != nil {
		return tools.Result{}, err
	}
	s.logger.Info("action sequence done", "request", request, "ran", ran)
	return tools.Result{Text: "动作序列已执行完毕，执行结果：" + request, Voiced: true}, nil
}
