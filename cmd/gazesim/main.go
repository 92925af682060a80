// gazesim: simulated gaze tracker page and presentation client for gazed
//
// Tracker mode answers begin with ready and streams synthetic gaze along a
// slow orbit. Presentation mode reports a viewport and layout, prints state
// changes and forwards key codes read from stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-gaze/internal/httpc"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/calibration"
	"github.com/teslashibe/go-gaze/pkg/protocol"
	"github.com/teslashibe/go-gaze/pkg/session"
)

var (
	server = flag.String("server", "ws://localhost:8080", "gazed base URL")
	mode   = flag.String("mode", "tracker", "tracker or presentation")
	rate   = flag.Int("rate", 30, "Gaze samples per second")
	jitter = flag.Float64("jitter", 8, "Gaze noise in px")
	fail   = flag.Bool("fail", false, "Refuse begin like a denied camera")
	width  = flag.Int("width", 1440, "Simulated viewport width")
	height = flag.Int("height", 900, "Simulated viewport height")
	wait   = flag.Duration("wait", 10*time.Second, "How long to wait for gazed to become healthy")
	debug  = flag.Bool("debug", false, "Enable debug logging")
)

// client serializes writes on a gorilla connection.
type client struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *client) send(msg *protocol.Message, err error) error {
	if err != nil {
		return err
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func main() {
	flag.Parse()
	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level, "")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	waitCtx, stop := context.WithTimeout(ctx, *wait)
	err := httpc.WaitHealthy(waitCtx, *server, 250*time.Millisecond)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: gazed not reachable: %v\n", err)
		os.Exit(1)
	}

	switch *mode {
	case "tracker":
		err = runTracker(ctx)
	case "presentation":
		err = runPresentation(ctx)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dial(ctx context.Context, path string) (*client, error) {
	url := strings.TrimSuffix(*server, "/") + path
	ws, _, err := httpc.Dialer().DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	go func() {
		<-ctx.Done()
		ws.Close()
	}()
	log.Info("connected", "url", url)
	return &client{ws: ws}, nil
}

func runTracker(ctx context.Context) error {
	c, err := dial(ctx, "/ws/tracker")
	if err != nil {
		return err
	}

	var stream context.CancelFunc
	defer func() {
		if stream != nil {
			stream()
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Warn("bad message", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeBegin:
			if *fail {
				c.send(protocol.NewErrorMessage("begin", fmt.Errorf("camera permission denied")))
				continue
			}
			if err := c.send(protocol.NewMessage(protocol.TypeReady, nil)); err != nil {
				return err
			}
			if stream == nil {
				var sctx context.Context
				sctx, stream = context.WithCancel(ctx)
				go streamGaze(sctx, c)
			}
			log.Info("tracker ready")

		case protocol.TypeEnd:
			if stream != nil {
				stream()
				stream = nil
			}
			log.Info("tracker ended")

		case protocol.TypeRecord:
			if r, err := msg.GetRecordData(); err == nil {
				log.Info("training sample", "x", r.X, "y", r.Y)
			}

		case protocol.TypeClear:
			log.Info("training data cleared")

		case protocol.TypeDebug:
			if d, err := msg.GetDebugData(); err == nil {
				log.Info("debug outputs", "video", d.Video, "prediction_points", d.PredictionPoints)
			}

		case protocol.TypeSmoothing:
			if s, err := msg.GetSmoothingData(); err == nil {
				log.Info("smoothing", "enabled", s.Enabled)
			}

		default:
			log.Debug("ignored", "type", msg.Type)
		}
	}
}

// streamGaze emits points orbiting the viewport center.
func streamGaze(ctx context.Context, c *client) {
	ticker := time.NewTicker(time.Second / time.Duration(max(*rate, 1)))
	defer ticker.Stop()

	cx, cy := float64(*width)/2, float64(*height)/2
	rx, ry := cx*0.6, cy*0.5
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			phase := time.Since(start).Seconds() / 8 * 2 * math.Pi
			x := cx + rx*math.Cos(phase) + *jitter*rand.NormFloat64()
			y := cy + ry*math.Sin(phase) + *jitter*rand.NormFloat64()
			if err := c.send(protocol.NewGazeMessage(x, y)); err != nil {
				log.Warn("gaze send failed", "error", err)
				return
			}
		}
	}
}

func runPresentation(ctx context.Context) error {
	c, err := dial(ctx, "/ws/session")
	if err != nil {
		return err
	}

	if err := c.send(protocol.NewViewportMessage(*width, *height)); err != nil {
		return err
	}
	for _, l := range layout(*width, *height) {
		if err := c.send(protocol.NewLayoutMessage(l.ID, l.Left, l.Top, l.Right, l.Bottom)); err != nil {
			return err
		}
	}

	go readKeys(ctx, c)

	lastMode := ""
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Warn("bad message", "error", err)
			continue
		}
		switch msg.Type {
		case protocol.TypeState:
			var snap session.Snapshot
			if err := msg.ParseData(&snap); err != nil {
				log.Warn("bad state", "error", err)
				continue
			}
			if snap.Mode != lastMode {
				log.Info("mode", "mode", snap.Mode, "loading", snap.Loading)
				lastMode = snap.Mode
			}
			if snap.Calibration != nil {
				log.Debug("calibration", "target", snap.Calibration.TargetID, "presses", snap.Calibration.Presses)
			}
		case protocol.TypeClick:
			if ev, err := msg.GetClickData(); err == nil {
				log.Info("click", "region", ev.RegionID, "x", ev.X, "y", ev.Y)
			}
		case protocol.TypeKeyResult:
			if r, err := msg.GetKeyResultData(); err == nil {
				log.Info("key", "code", r.Code, "command", r.Command, "handled", r.Handled)
			}
		}
	}
}

// readKeys forwards one key code per stdin line; an empty line is Space.
func readKeys(ctx context.Context, c *client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		code := strings.TrimSpace(scanner.Text())
		if code == "" {
			code = "Space"
		}
		if err := c.send(protocol.NewKeyMessage(code)); err != nil {
			if ctx.Err() == nil {
				log.Warn("key send failed", "error", err)
			}
			return
		}
	}
}

type box struct {
	ID                       string
	Left, Top, Right, Bottom float64
}

// layout places the calibration targets and the stock regions.
func layout(w, h int) []box {
	const target = 32.0
	var out []box
	for _, t := range calibration.DefaultConfig().Targets {
		x, y := t.X*float64(w), t.Y*float64(h)
		out = append(out, box{t.ID, x - target/2, y - target/2, x + target/2, y + target/2})
	}

	regions := session.DefaultConfig().Regions
	slot := float64(w) / float64(len(regions)+1)
	for i, r := range regions {
		x := slot * float64(i+1)
		y := float64(h) / 2
		out = append(out, box{r.ID, x - 100, y - 40, x + 100, y + 40})
	}
	return out
}
