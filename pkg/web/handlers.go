package web

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/protocol"
	"github.com/teslashibe/go-gaze/pkg/region"
	"github.com/teslashibe/go-gaze/pkg/session"
)

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":  "ok",
		"version": s.version,
		"mode":    s.engine.Last().Mode,
		"clients": s.clients.ClientCount(),
	}
	if s.tracker != nil {
		resp["tracker_connected"] = s.tracker.Connected()
	}
	return c.JSON(resp)
}

// handleMetrics serves counters in the Prometheus text format
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	st := s.engine.GetStats()
	hs := s.clients.GetStats()

	ready := 0
	if st.Gaze.Ready {
		ready = 1
	}
	out := fmt.Sprintf(`# HELP gaze_tracker_ready Whether the gaze tracker is ready
# TYPE gaze_tracker_ready gauge
gaze_tracker_ready %d

# HELP gaze_samples_total Gaze samples dispatched
# TYPE gaze_samples_total counter
gaze_samples_total %d

# HELP gaze_training_samples_total Training samples recorded
# TYPE gaze_training_samples_total counter
gaze_training_samples_total %d

# HELP gaze_upstream_errors_total Failed tracker calls
# TYPE gaze_upstream_errors_total counter
gaze_upstream_errors_total %d

# HELP gaze_loop_events_total Events processed by the engine loop
# TYPE gaze_loop_events_total counter
gaze_loop_events_total %d

# HELP gaze_presentation_clients Connected presentation clients
# TYPE gaze_presentation_clients gauge
gaze_presentation_clients %d

# HELP gaze_presentation_dropped_total Messages dropped for slow clients
# TYPE gaze_presentation_dropped_total counter
gaze_presentation_dropped_total %d
`, ready, st.Gaze.Samples, st.Gaze.TrainingSamples, st.Gaze.UpstreamErrors,
		st.EventsProcessed, hs.Clients, hs.Dropped)

	if s.tracker != nil {
		ts := s.tracker.GetStats()
		connected := 0
		if ts.Connected {
			connected = 1
		}
		out += fmt.Sprintf(`
# HELP gaze_remote_connected Whether a tracker page is attached
# TYPE gaze_remote_connected gauge
gaze_remote_connected %d

# HELP gaze_remote_connections_total Tracker page connections
# TYPE gaze_remote_connections_total counter
gaze_remote_connections_total %d

# HELP gaze_remote_tracker_errors_total Errors reported by tracker pages
# TYPE gaze_remote_tracker_errors_total counter
gaze_remote_tracker_errors_total %d
`, connected, ts.Connections, ts.TrackerErrors)
	}
	return c.SendString(out)
}

// handleStatus returns a fresh session snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	ctx, cancel := s.callContext()
	defer cancel()
	snap, err := s.engine.Snapshot(ctx)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(snap)
}

// handleStats returns engine, hub and tracker statistics
func (s *Server) handleStats(c *fiber.Ctx) error {
	resp := fiber.Map{
		"engine":  s.engine.GetStats(),
		"clients": s.clients.GetStats(),
	}
	if s.tracker != nil {
		resp["tracker"] = s.tracker.GetStats()
	}
	return c.JSON(resp)
}

// handleKey dispatches a key-down by code
func (s *Server) handleKey(c *fiber.Ctx) error {
	code := c.Params("code")
	ctx, cancel := s.callContext()
	defer cancel()
	cmd, handled, err := s.engine.Key(ctx, code)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(protocol.KeyResultData{Code: code, Command: cmd.String(), Handled: handled})
}

// handleViewport records the presentation viewport size
func (s *Server) handleViewport(c *fiber.Ctx) error {
	var req protocol.ViewportData
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.Width <= 0 || req.Height <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "width and height must be positive"})
	}
	return s.run(c, func(ctx context.Context) error {
		return s.engine.Resize(ctx, req.Width, req.Height)
	})
}

// handleSetLayout records the bounds of one element
func (s *Server) handleSetLayout(c *fiber.Ctx) error {
	var b region.Bounds
	if err := c.BodyParser(&b); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if !b.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid bounds"})
	}
	id := c.Params("id")
	return s.run(c, func(ctx context.Context) error {
		return s.engine.SetRegion(ctx, id, b)
	})
}

// handleRemoveLayout marks an element unmounted
func (s *Server) handleRemoveLayout(c *fiber.Ctx) error {
	id := c.Params("id")
	return s.run(c, func(ctx context.Context) error {
		return s.engine.RemoveRegion(ctx, id)
	})
}

// handleContent records the open content's scroll geometry
func (s *Server) handleContent(c *fiber.Ctx) error {
	var req protocol.ContentData
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return s.run(c, func(ctx context.Context) error {
		return s.engine.SetContentExtent(ctx, session.Extent{
			ScrollHeight: req.ScrollHeight,
			ClientHeight: req.ClientHeight,
		})
	})
}

// action adapts a no-argument engine call into a handler
func (s *Server) action(fn func(context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return s.run(c, fn)
	}
}

func (s *Server) run(c *fiber.Ctx, fn func(context.Context) error) error {
	ctx, cancel := s.callContext()
	defer cancel()
	if err := fn(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleSessionMessage routes one presentation frame to the engine. It runs
// on the client's read goroutine.
func (s *Server) handleSessionMessage(client *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Warn("bad session message", "client", client.ID, "error", err)
		return
	}

	ctx, cancel := s.callContext()
	defer cancel()

	switch msg.Type {
	case protocol.TypeKey:
		k, perr := msg.GetKeyData()
		if perr != nil {
			err = perr
			break
		}
		cmd, handled, kerr := s.engine.Key(ctx, k.Code)
		if kerr != nil {
			err = kerr
			break
		}
		reply, rerr := protocol.NewKeyResultMessage(k.Code, cmd.String(), handled)
		if rerr != nil {
			err = rerr
			break
		}
		if out, berr := reply.Bytes(); berr == nil {
			s.clients.SendTo(client, out)
		}

	case protocol.TypeViewport:
		v, perr := msg.GetViewportData()
		if perr != nil {
			err = perr
			break
		}
		if v.Width <= 0 || v.Height <= 0 {
			err = fmt.Errorf("%w: width and height must be positive", protocol.ErrBadPayload)
			break
		}
		err = s.engine.Resize(ctx, v.Width, v.Height)

	case protocol.TypeLayout:
		l, perr := msg.GetLayoutData()
		if perr != nil {
			err = perr
			break
		}
		b := region.Bounds{Left: l.Left, Top: l.Top, Right: l.Right, Bottom: l.Bottom}
		if !b.Valid() {
			err = fmt.Errorf("%w: invalid bounds for %s", protocol.ErrBadPayload, l.ID)
			break
		}
		err = s.engine.SetRegion(ctx, l.ID, b)

	case protocol.TypeRemoveRegion:
		r, perr := msg.GetRemoveRegionData()
		if perr != nil {
			err = perr
			break
		}
		err = s.engine.RemoveRegion(ctx, r.ID)

	case protocol.TypeContent:
		ct, perr := msg.GetContentData()
		if perr != nil {
			err = perr
			break
		}
		err = s.engine.SetContentExtent(ctx, session.Extent{ScrollHeight: ct.ScrollHeight, ClientHeight: ct.ClientHeight})

	case protocol.TypeOpenContent:
		err = s.engine.OpenContent(ctx)

	case protocol.TypeCloseContent:
		err = s.engine.CloseContent(ctx)

	default:
		s.logger.Debug("ignoring session message", "client", client.ID, "type", msg.Type)
	}

	if err != nil {
		s.logger.Warn("session message failed", "client", client.ID, "type", msg.Type, "error", err)
	}
}
