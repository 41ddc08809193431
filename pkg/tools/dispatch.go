package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Prefixes of the Result text recorded in the conversation history.
const (
	ResultPrefix = "工具执行结果："
	ErrorPrefix  = "工具执行出错："
)

// ErrNotFound is set on the Result of a call to an unregistered tool.
var ErrNotFound = errors.New("tools: function not found")

// Dispatcher runs model tool calls against a Registry.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger

	// OnDispatch, when set, is called after every call.
	OnDispatch func(name string, res Result, elapsed time.Duration)
}

// NewDispatcher creates a dispatcher over r.
func NewDispatcher(r *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: r,
		logger:   logger.With("component", "tools.dispatcher"),
	}
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch runs the named tool with rawArgs, the JSON argument string the
// model produced. It never fails: unknown tools, bad arguments, handler
// errors and panics all come back as a Result with Err set.
func (d *Dispatcher) Dispatch(ctx context.Context, name, rawArgs string) (res Result) {
	start := time.Now()
	defer func() {
		if d.OnDispatch != nil {
			d.OnDispatch(name, res, time.Since(start))
		}
	}()

	h, ok := d.registry.Lookup(name)
	if !ok {
		d.logger.Warn("unknown tool", "name", name)
		return Result{Text: "错误：未找到函数 " + name, Err: fmt.Errorf("%w: %s", ErrNotFound, name)}
	}

	args, err := parseArgs(rawArgs)
	if err != nil {
		d.logger.Warn("bad tool arguments", "name", name, "args", rawArgs, "error", err)
		return failure(err)
	}

	d.logger.Info("running tool", "name", name, "args", args)
	res, err = d.run(ctx, h, args)
	if err != nil {
		d.logger.Error("tool failed", "name", name, "error", err, "elapsed", time.Since(start))
		return failure(err)
	}

	res.Text = ResultPrefix + res.Text
	d.logger.Info("tool finished", "name", name, "voiced", res.Voiced, "elapsed", time.Since(start))
	return res
}

func (d *Dispatcher) run(ctx context.Context, h Handler, args Args) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tools: handler panic: %v", r)
		}
	}()
	return h(ctx, args)
}

// parseArgs decodes the model's argument string. Blank input and "{}" mean
// no arguments.
func parseArgs(raw string) (Args, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Args{}, nil
	}
	var args Args
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("tools: invalid arguments: %w", err)
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}

func failure(err error) Result {
	return Result{Text: ErrorPrefix + err.Error(), Err: err}
}
