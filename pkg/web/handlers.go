package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-tonypi/pkg/camera"
	"github.com/teslashibe/go-tonypi/pkg/hub"
	"github.com/teslashibe/go-tonypi/pkg/tools"
)

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TriggerToolRequest is the body of POST /api/tools/:name.
type TriggerToolRequest struct {
	Args map[string]any `json:"args"`
}

// TriggerToolResponse reports a manual tool run.
type TriggerToolResponse struct {
	Tool   string `json:"tool"`
	Result string `json:"result"`
	Voiced bool   `json:"voiced"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

func (s *Server) handleListTools(c *fiber.Ctx) error {
	if s.cfg.Dispatcher == nil {
		return unavailable(c, "tools not configured")
	}
	defs := s.cfg.Dispatcher.Registry().Definitions()
	out := make([]ToolInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, ToolInfo{Name: d.Function.Name, Description: d.Function.Description})
	}
	return c.JSON(out)
}

func (s *Server) handleTriggerTool(c *fiber.Ctx) error {
	if s.cfg.Dispatcher == nil {
		return unavailable(c, "tools not configured")
	}
	name := c.Params("name")

	var req TriggerToolRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body: " + err.Error()})
		}
	}
	raw := "{}"
	if len(req.Args) > 0 {
		data, err := json.Marshal(req.Args)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		raw = string(data)
	}

	res := s.cfg.Dispatcher.Dispatch(c.UserContext(), name, raw)
	resp := TriggerToolResponse{Tool: name, Result: res.Text, Voiced: res.Voiced}

	s.AddConversation("tool", name+" → "+res.Text)
	if res.Err != nil {
		resp.Error = res.Err.Error()
		status := fiber.StatusInternalServerError
		if errors.Is(res.Err, tools.ErrNotFound) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}

func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	s.conversationMu.RLock()
	defer s.conversationMu.RUnlock()
	return c.JSON(s.conversation)
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.cfg.Camera == nil {
		return unavailable(c, "camera not configured")
	}
	return c.JSON(s.cfg.Camera.GetConfig())
}

// handleUpdateCamera applies a partial update such as
// {"width":1280,"height":720} or {"preset":"fast"}.
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	if s.cfg.Camera == nil {
		return unavailable(c, "camera not configured")
	}
	var params map[string]any
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body: " + err.Error()})
	}
	if err := s.cfg.Camera.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	cfg := s.cfg.Camera.GetConfig()
	s.logger.Info("camera config updated", "width", cfg.Width, "height", cfg.Height, "quality", cfg.Quality)
	return c.JSON(cfg)
}

func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(camera.Presets())
}

func unavailable(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msg})
}

func mustJSON(v any) hub.Message {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{}`)
	}
	return hub.NewJSONMessage(data)
}
