package robot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-tonypi/internal/httpc"
)

// DefaultPort is the TonyPi JSON-RPC server port.
const DefaultPort = 9030

// ErrEmptyAction is returned for a blank action name.
var ErrEmptyAction = errors.New("robot: empty action name")

// RPCError is an error object returned by the robot.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("robot: rpc error %d: %s", e.Code, e.Message)
}

// RPCController runs action groups through the robot's JSON-RPC server.
// Calls are serialized; the servos can only run one group at a time.
type RPCController struct {
	url    string
	client *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	nextID atomic.Int64
}

// NewRPCController creates a controller for the robot at host:port.
func NewRPCController(host string, port int, logger *slog.Logger) *RPCController {
	if port == 0 {
		port = DefaultPort
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCController{
		url: fmt.Sprintf("http://%s:%d/", host, port),
		// Long timeout: the server replies when the group has finished.
		client: httpc.NewClient(60 * time.Second),
		logger: logger.With("component", "robot.rpc"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	Result any       `json:"result"`
	Error  *RPCError `json:"error"`
	ID     int64     `json:"id"`
}

// RunAction asks the robot to run the named group.
func (c *RPCController) RunAction(ctx context.Context, name string, times int) error {
	if name == "" {
		return ErrEmptyAction
	}
	if times <= 0 {
		times = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "RunAction",
		Params:  []any{name, times},
		ID:      c.nextID.Add(1),
	}
	var resp rpcResponse
	if err := httpc.PostJSON(ctx, c.client, c.url, req, &resp); err != nil {
		return fmt.Errorf("robot: run %s: %w", name, err)
	}
	if resp.Error != nil {
		return resp.Error
	}

	c.logger.Debug("action done", "name", name, "times", times, "elapsed", time.Since(start))
	return nil
}

// DryRun logs actions instead of running them. It records the names for
// inspection.
type DryRun struct {
	logger *slog.Logger

	mu      sync.Mutex
	actions []string
}

// NewDryRun creates a logging runner.
func NewDryRun(logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRun{logger: logger.With("component", "robot.dryrun")}
}

// RunAction records the action.
func (d *DryRun) RunAction(ctx context.Context, name string, times int) error {
	if name == "" {
		return ErrEmptyAction
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.actions = append(d.actions, name)
	d.mu.Unlock()
	d.logger.Info("action", "name", name, "times", times)
	return nil
}

// Actions returns the recorded action names.
func (d *DryRun) Actions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.actions...)
}

var (
	_ ActionRunner = (*RPCController)(nil)
	_ ActionRunner = (*DryRun)(nil)
)
