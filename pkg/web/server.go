// Package web serves the robot's debug dashboard: live status, logs, the
// conversation, manual tool triggers and camera settings.
package web

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-tonypi/pkg/camera"
	"github.com/teslashibe/go-tonypi/pkg/hub"
	"github.com/teslashibe/go-tonypi/pkg/tools"
)

const (
	maxLogs         = 500
	maxConversation = 100
)

// ErrNoPort is returned by New when Config.Port is empty.
var ErrNoPort = errors.New("web: port is required")

// Status is the dialogue state shown on the dashboard.
type Status struct {
	State     string    `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	Turns     int       `json:"turns"`
	LastUser  string    `json:"last_user,omitempty"`
	LastReply string    `json:"last_reply,omitempty"`
	LastTool  string    `json:"last_tool,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	DryRun    bool      `json:"dry_run"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LogEntry is one log line.
type LogEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ConversationEntry is one message of the conversation.
type ConversationEntry struct {
	Time    string `json:"time"`
	Role    string `json:"role"` // user, robot, tool
	Message string `json:"message"`
}

// Config configures the dashboard.
type Config struct {
	// Port to listen on, such as "8080".
	Port string

	// StaticDir, when set, is served at "/".
	StaticDir string

	// Dispatcher runs manually triggered tools. Without it the tool
	// routes answer 503.
	Dispatcher *tools.Dispatcher

	// Camera exposes the camera settings. Without it the camera routes
	// answer 503.
	Camera *camera.Manager

	Logger *slog.Logger
}

// Server is the dashboard.
type Server struct {
	app    *fiber.App
	port   string
	cfg    Config
	logger *slog.Logger

	statusMu sync.RWMutex
	status   Status

	logsMu sync.RWMutex
	logs   []LogEntry

	conversationMu sync.RWMutex
	conversation   []ConversationEntry

	statusHub *hub.Hub
	logHub    *hub.Hub
	cameraHub *hub.Hub
}

// New builds the dashboard. Call Start to serve it.
func New(cfg Config) (*Server, error) {
	if cfg.Port == "" {
		return nil, ErrNoPort
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		port:         cfg.Port,
		cfg:          cfg,
		logger:       cfg.Logger.With("component", "web"),
		status:       Status{State: "idle", UpdatedAt: time.Now()},
		logs:         make([]LogEntry, 0, maxLogs),
		conversation: make([]ConversationEntry, 0, maxConversation),
		statusHub:    hub.New("status", cfg.Logger),
		logHub:       hub.New("logs", cfg.Logger),
		cameraHub:    hub.New("camera", cfg.Logger),
	}
	s.statusHub.OnConnect = s.statusSnapshot
	s.logHub.OnConnect = s.logSnapshot

	app := fiber.New(fiber.Config{
		AppName:               "TonyPi Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/tools", s.handleListTools)
	api.Post("/tools/:name", s.handleTriggerTool)
	api.Get("/logs", s.handleGetLogs)
	api.Get("/conversation", s.handleGetConversation)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleUpdateCamera)
	api.Get("/camera/presets", s.handleCameraPresets)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.statusHub.Serve))
	app.Get("/ws/logs", websocket.New(s.logHub.Serve))
	app.Get("/ws/camera", websocket.New(s.cameraHub.Serve))

	s.app = app
	return s, nil
}

// Mount attaches the tool dispatcher and camera settings. Call it before
// Start.
func (s *Server) Mount(d *tools.Dispatcher, m *camera.Manager) {
	s.cfg.Dispatcher = d
	s.cfg.Camera = m
}

// Start runs the hubs and blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	go s.statusHub.Run()
	go s.logHub.Run()
	go s.cameraHub.Run()

	s.logger.Info("dashboard listening", "url", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs Start in a goroutine and logs its error.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("dashboard stopped", "error", err)
		}
	}()
}

// Shutdown stops the server and disconnects every websocket client.
func (s *Server) Shutdown() error {
	s.statusHub.Stop()
	s.logHub.Stop()
	s.cameraHub.Stop()
	return s.app.Shutdown()
}

// UpdateStatus edits the status and broadcasts it.
func (s *Server) UpdateStatus(update func(*Status)) {
	s.statusMu.Lock()
	update(&s.status)
	s.status.UpdatedAt = time.Now()
	st := s.status
	s.statusMu.Unlock()

	if err := s.statusHub.BroadcastJSON(st); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}

// Status returns the current status.
func (s *Server) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// AddLog appends a log line and broadcasts it.
func (s *Server) AddLog(level, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Level:   level,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}
	s.logsMu.Unlock()

	// Errors here cannot be logged without looping back into AddLog.
	_ = s.logHub.BroadcastJSON(entry)
}

// AddConversation appends a conversation message.
func (s *Server) AddConversation(role, message string) {
	entry := ConversationEntry{
		Time:    time.Now().Format("15:04:05"),
		Role:    role,
		Message: message,
	}

	s.conversationMu.Lock()
	s.conversation = append(s.conversation, entry)
	if len(s.conversation) > maxConversation {
		s.conversation = s.conversation[len(s.conversation)-maxConversation:]
	}
	s.conversationMu.Unlock()
}

// SendCameraFrame pushes a JPEG to camera viewers.
func (s *Server) SendCameraFrame(jpeg []byte) {
	s.cameraHub.BroadcastBinary(jpeg)
}

func (s *Server) statusSnapshot() []hub.Message {
	st := s.Status()
	return []hub.Message{mustJSON(st)}
}

func (s *Server) logSnapshot() []hub.Message {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	msgs := make([]hub.Message, 0, len(s.logs))
	for _, entry := range s.logs {
		msgs = append(msgs, mustJSON(entry))
	}
	return msgs
}
