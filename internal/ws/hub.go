// Package ws is the control transport: websocket control messages drive the
// controller, frames and diagnostics stream back to connected clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/coreman2200/milkbind/internal/controller"
	diag "github.com/coreman2200/milkbind/internal/diagnostics"
	"github.com/coreman2200/milkbind/internal/host"
	"github.com/coreman2200/milkbind/internal/render"
	"github.com/coreman2200/milkbind/internal/surface/sim"
	"github.com/coreman2200/milkbind/internal/transition"
)

const writeWait = 200 * time.Millisecond

// Presets resolves preset names; *presets.Library implements it.
type Presets interface {
	Get(name string) *render.Preset
}

type Track struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Message struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Control is one control message. Absent fields keep their current value;
// an empty preset name clears the preset.
type Control struct {
	Playing    *bool            `json:"playing,omitempty"`
	Enabled    *bool            `json:"enabled,omitempty"`
	Visible    *bool            `json:"visible,omitempty"`
	Track      *Track           `json:"track,omitempty"`
	Preset     *string          `json:"preset,omitempty"`
	Transition *transition.Kind `json:"transition,omitempty"`
	Message    *Message         `json:"message,omitempty"`
	Size       *Size            `json:"size,omitempty"`
}

// Hub owns the controller inputs. in and preset are only touched on the
// loop goroutine.
type Hub struct {
	loop    *host.Loop
	ctrl    *controller.Controller
	presets Presets
	log     zerolog.Logger

	in     controller.Inputs
	preset string

	// mu also serializes websocket writes.
	mu          sync.RWMutex
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
	frameID     uint64

	frames    chan render.Frame
	startTime time.Time
}

// NewHub starts from base, which carries the audio source, surface and
// initial size.
func NewHub(loop *host.Loop, ctrl *controller.Controller, p Presets, base controller.Inputs, lg zerolog.Logger) *Hub {
	return &Hub{
		loop:        loop,
		ctrl:        ctrl,
		presets:     p,
		log:         lg,
		in:          base,
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		frames:      make(chan render.Frame, 1),
		startTime:   time.Now(),
	}
}

// Routes registers the hub endpoints on mux.
func (h *Hub) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleFramesWS)
	mux.HandleFunc("/diag", h.HandleDiagWS)
	mux.HandleFunc("/control", h.HandleControlWS)
	mux.HandleFunc("/health", h.HandleHealth)
}

// Run streams queued preview frames until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-h.frames:
			h.broadcastFrame(f)
		}
	}
}

// Apply merges c into the current inputs and updates the controller. It
// must run on the loop goroutine.
func (h *Hub) Apply(c Control) error {
	if c.Playing != nil {
		h.in.Playing = *c.Playing
	}
	if c.Enabled != nil {
		h.in.Enabled = *c.Enabled
	}
	if c.Visible != nil {
		h.in.Visible = *c.Visible
	}
	if c.Track != nil {
		h.in.TrackID, h.in.Title = c.Track.ID, c.Track.Title
	}
	if c.Transition != nil {
		h.in.Transition = *c.Transition
	}
	if c.Size != nil {
		h.in.Width, h.in.Height = c.Size.Width, c.Size.Height
	}
	if c.Message != nil {
		h.in.Message = &controller.Message{Text: c.Message.Text, Timestamp: c.Message.Timestamp}
	}
	if c.Preset != nil {
		h.preset = *c.Preset
		h.in.Preset = h.lookup(h.preset)
	}
	err := h.ctrl.Update(h.in)
	if err != nil {
		h.Report(diag.Diagnostic{
			Severity: diag.Err, Code: "ENGINE.CREATE_FAILED", Summary: "Engine creation failed",
			Detail: err.Error(), Time: time.Now(),
		})
	}
	return err
}

// Refresh re-resolves the current preset after the library reloaded names.
// Must run on the loop goroutine.
func (h *Hub) Refresh(names []string) error {
	for _, n := range names {
		if n == h.preset && h.preset != "" {
			h.in.Preset = h.lookup(h.preset)
			return h.Apply(Control{})
		}
	}
	return nil
}

func (h *Hub) lookup(name string) *render.Preset {
	if name == "" || h.presets == nil {
		return nil
	}
	p := h.presets.Get(name)
	if p == nil {
		h.Report(diag.Diagnostic{
			Severity: diag.Warn, Code: "PRESET.UNKNOWN", Summary: "Unknown preset name",
			Evidence: map[string]any{"name": name}, Time: time.Now(),
		})
	}
	return p
}

// Report broadcasts d to /diag clients.
func (h *Hub) Report(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.diagClients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

// BroadcastFrame queues f for preview clients, dropping it when the
// previous frame has not been sent yet. It never blocks the render path.
func (h *Hub) BroadcastFrame(f render.Frame) {
	select {
	case h.frames <- f:
	default:
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (h *Hub) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	h.subscribe(w, r, h.clients)
}

func (h *Hub) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	h.subscribe(w, r, h.diagClients)
}

func (h *Hub) subscribe(w http.ResponseWriter, r *http.Request, set map[*websocket.Conn]bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	set[conn] = true
	h.mu.Unlock()
	go func() {
		defer func() {
			h.mu.Lock()
			delete(set, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// HandleControlWS applies every message on the loop and answers with the
// controller status.
func (h *Hub) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Control
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Debug().Err(err).Msg("bad control message")
			h.Report(diag.Diagnostic{
				Severity: diag.Warn, Code: "CONTROL.BAD_MESSAGE", Summary: "Control message rejected",
				Detail: err.Error(), Time: time.Now(),
			})
			continue
		}
		var st controller.Status
		if err := h.loop.Call(r.Context(), func() {
			_ = h.Apply(msg)
			st = h.ctrl.Status()
		}); err != nil {
			return
		}
		b, _ := json.Marshal(st)
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

type health struct {
	controller.Status
	Preset  string  `json:"preset"`
	Playing bool    `json:"playing"`
	Enabled bool    `json:"enabled"`
	Ticks   uint64  `json:"ticks"`
	FrameID uint64  `json:"frame_id"`
	UptimeS float64 `json:"uptime_s"`
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	var resp health
	err := h.loop.Call(r.Context(), func() {
		resp.Status = h.ctrl.Status()
		resp.Preset = h.preset
		resp.Playing = h.in.Playing
		resp.Enabled = h.in.Enabled
		resp.Ticks = h.loop.Ticks
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.mu.RLock()
	resp.FrameID = h.frameID
	h.mu.RUnlock()
	resp.UptimeS = time.Since(h.startTime).Seconds()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type frameMsg struct {
	T          int64   `json:"t"`
	FrameID    uint64  `json:"frame_id"`
	Width      int     `json:"w"`
	Height     int     `json:"h"`
	Preset     string  `json:"preset,omitempty"`
	Title      string  `json:"title,omitempty"`
	TitleAlpha float64 `json:"title_alpha,omitempty"`
	RGB        []byte  `json:"rgb"`
}

func (h *Hub) broadcastFrame(f render.Frame) {
	h.mu.Lock()
	h.frameID++
	id := h.frameID
	h.mu.Unlock()

	b, _ := json.Marshal(frameMsg{
		T: time.Now().UnixNano(), FrameID: id,
		Width: f.Mesh.Width, Height: f.Mesh.Height,
		Preset: f.Preset, Title: f.Title, TitleAlpha: f.TitleAlpha,
		RGB: sim.RGB(f),
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.Debug().Err(err).Msg("write frame")
		}
	}
}

func (h *Hub) subscribers() (frames, diags int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.diagClients)
}
