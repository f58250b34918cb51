package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tversen/flick/internal/domain"
)

// ipcDialTimeout bounds how long we wait for mpv to create its socket
const ipcDialTimeout = 5 * time.Second

// MPVEngine drives an external mpv process over its JSON IPC socket. mpv
// consumes HLS playlists natively, so a single engine covers both the
// progressive and segmented paths.
type MPVEngine struct {
	binary    string
	videoOut  bool
	extraArgs []string
	logger    *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	conn     net.Conn
	sink     func(domain.PlayerEvent)
	position float64
	paused   bool
	volume   int
	muted    bool
	loaded   bool
	released bool
	reqID    int64
	socket   string
}

// NewMPVEngine creates an engine for a media category. Audio playback
// runs mpv without a video output.
func NewMPVEngine(binary string, category domain.MediaCategory, extraArgs []string, logger *slog.Logger) *MPVEngine {
	if binary == "" {
		binary = "mpv"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MPVEngine{
		binary:    binary,
		videoOut:  category == domain.CategoryVideo,
		extraArgs: extraArgs,
		logger:    logger,
		volume:    100,
	}
}

func (m *MPVEngine) Kind() EngineKind { return EngineProgressive }

// SupportsPlaylists reports that mpv demuxes HLS itself
func (m *MPVEngine) SupportsPlaylists() bool { return true }

func (m *MPVEngine) Subscribe(fn func(domain.PlayerEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = fn
}

// Load spawns mpv (or reuses a running instance) and starts playback
func (m *MPVEngine) Load(ctx context.Context, url string, opts LoadOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return fmt.Errorf("engine released")
	}

	if m.cmd == nil {
		if err := m.spawnLocked(ctx, opts); err != nil {
			return err
		}
	}

	loadOpts := fmt.Sprintf("start=%.3f", opts.StartSeconds)
	if err := m.commandLocked("loadfile", url, "replace", loadOpts); err != nil {
		return fmt.Errorf("failed to load media: %w", err)
	}
	m.position = opts.StartSeconds
	m.paused = false
	m.loaded = true
	return nil
}

// spawnLocked starts the mpv process and connects to its IPC socket
func (m *MPVEngine) spawnLocked(ctx context.Context, opts LoadOptions) error {
	socket := filepath.Join(os.TempDir(), "flick-mpv-"+uuid.NewString()+".sock")

	args := []string{
		"--idle=yes",
		"--no-terminal",
		"--input-ipc-server=" + socket,
		"--keep-open=no",
		fmt.Sprintf("--cache-secs=%.0f", opts.Buffer.AheadWindow.Seconds()),
		fmt.Sprintf("--demuxer-max-back-bytes=%d", int64(opts.Buffer.BehindWindow.Seconds())*1024*1024),
	}
	if !m.videoOut {
		args = append(args, "--no-video", "--force-window=no")
	}
	args = append(args, m.extraArgs...)

	cmd := exec.Command(m.binary, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", m.binary, err)
	}

	conn, err := dialIPC(ctx, socket)
	if err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("failed to connect to player IPC: %w", err)
	}

	m.cmd = cmd
	m.conn = conn
	m.socket = socket

	for i, prop := range []string{"time-pos", "pause", "paused-for-cache", "volume", "mute"} {
		if err := m.commandLocked("observe_property", i+1, prop); err != nil {
			m.logger.Warn("failed to observe player property", "property", prop, "error", err)
		}
	}

	go m.readEvents(conn)
	go m.reapProcess(cmd)
	return nil
}

// dialIPC polls for the socket; mpv creates it shortly after starting
func dialIPC(ctx context.Context, socket string) (net.Conn, error) {
	deadline := time.Now().Add(ipcDialTimeout)
	for {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// ipcRequest is one command sent over the IPC socket
type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipcMessage is one line received from the IPC socket: either a command
// reply or an asynchronous event
type ipcMessage struct {
	Event     string          `json:"event"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Reason    string          `json:"reason"`
	Error     string          `json:"error"`
	RequestID int64           `json:"request_id"`
	FileError string          `json:"file_error"`
}

// commandLocked writes one command; replies are consumed by the reader
func (m *MPVEngine) commandLocked(parts ...any) error {
	if m.conn == nil {
		return fmt.Errorf("player not running")
	}
	m.reqID++
	payload, err := json.Marshal(ipcRequest{Command: parts, RequestID: m.reqID})
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	if _, err := m.conn.Write(payload); err != nil {
		return fmt.Errorf("failed to send player command: %w", err)
	}
	return nil
}

func (m *MPVEngine) command(parts ...any) {
	m.mu.Lock()
	err := m.commandLocked(parts...)
	m.mu.Unlock()
	if err != nil {
		m.logger.Warn("player command failed", "command", parts[0], "error", err)
	}
}

// readEvents turns the IPC event stream into player events
func (m *MPVEngine) readEvents(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		m.handleMessage(msg)
	}
}

func (m *MPVEngine) handleMessage(msg ipcMessage) {
	switch msg.Event {
	case "file-loaded":
		m.emit(domain.EventStarted{})

	case "property-change":
		m.handleProperty(msg)

	case "end-file":
		m.handleEndFile(msg)
	}
}

func (m *MPVEngine) handleProperty(msg ipcMessage) {
	switch msg.Name {
	case "time-pos":
		var pos float64
		if err := json.Unmarshal(msg.Data, &pos); err != nil {
			return // Null while idle
		}
		m.mu.Lock()
		m.position = pos
		paused := m.paused
		m.mu.Unlock()
		if !paused {
			m.emit(domain.EventTimeUpdate{PositionSeconds: pos})
		}

	case "pause":
		var paused bool
		if err := json.Unmarshal(msg.Data, &paused); err != nil {
			return
		}
		m.mu.Lock()
		changed := m.paused != paused
		m.paused = paused
		loaded := m.loaded
		m.mu.Unlock()
		if !changed || !loaded {
			return
		}
		if paused {
			m.emit(domain.EventPaused{})
		} else {
			m.emit(domain.EventResumed{})
		}

	case "paused-for-cache":
		var stalled bool
		if err := json.Unmarshal(msg.Data, &stalled); err != nil {
			return
		}
		if stalled {
			m.emit(domain.EventBuffering{})
		}

	case "volume":
		var vol float64
		if err := json.Unmarshal(msg.Data, &vol); err != nil {
			return
		}
		m.mu.Lock()
		m.volume = int(vol)
		ev := domain.EventVolumeChanged{Volume: m.volume, Muted: m.muted}
		m.mu.Unlock()
		m.emit(ev)

	case "mute":
		var muted bool
		if err := json.Unmarshal(msg.Data, &muted); err != nil {
			return
		}
		m.mu.Lock()
		m.muted = muted
		ev := domain.EventVolumeChanged{Volume: m.volume, Muted: m.muted}
		m.mu.Unlock()
		m.emit(ev)
	}
}

func (m *MPVEngine) handleEndFile(msg ipcMessage) {
	switch msg.Reason {
	case "eof":
		m.emit(domain.EventEnded{})
	case "error":
		m.emit(domain.EventError{Err: classifyFileError(msg.FileError)})
	case "stop", "quit":
		// Driven by us; the orchestration layer already knows
	}
}

// classifyFileError maps mpv's end-file error strings onto the recovery
// taxonomy
func classifyFileError(fileError string) error {
	err := fmt.Errorf("player error: %s", fileError)
	switch {
	case strings.Contains(fileError, "loading failed"), strings.Contains(fileError, "network"):
		return &EngineError{Kind: ErrorNetwork, Err: err}
	case strings.Contains(fileError, "unsupported"), strings.Contains(fileError, "unrecognized"):
		return &EngineError{Kind: ErrorUnsupported, Err: err}
	default:
		return &EngineError{Kind: ErrorDecode, Err: err}
	}
}

func (m *MPVEngine) emit(ev domain.PlayerEvent) {
	m.mu.Lock()
	sink := m.sink
	released := m.released
	m.mu.Unlock()
	if sink != nil && !released {
		sink(ev)
	}
}

// reapProcess waits for mpv to exit; an unexpected exit mid-playback is a
// fatal network-class error so the recovery ladder can restart it
func (m *MPVEngine) reapProcess(cmd *exec.Cmd) {
	err := cmd.Wait()

	m.mu.Lock()
	expected := m.released || !m.loaded
	m.cmd = nil
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	_ = os.Remove(m.socket)
	m.mu.Unlock()

	if expected {
		return
	}
	m.logger.Warn("player process exited unexpectedly", "error", err)
	m.emit(domain.EventError{Err: &EngineError{
		Kind: ErrorNetwork,
		Err:  fmt.Errorf("player process exited: %v", err),
	}})
}

func (m *MPVEngine) Play() {
	m.command("set_property", "pause", false)
}

func (m *MPVEngine) Pause() {
	m.command("set_property", "pause", true)
}

func (m *MPVEngine) Seek(seconds float64) {
	m.command("seek", seconds, "absolute")
	m.mu.Lock()
	m.position = seconds
	m.mu.Unlock()
}

func (m *MPVEngine) SetVolume(volume int) {
	m.command("set_property", "volume", volume)
}

func (m *MPVEngine) SetMuted(muted bool) {
	m.command("set_property", "mute", muted)
}

func (m *MPVEngine) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Release quits the mpv process. Safe to call more than once.
func (m *MPVEngine) Release() {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return
	}
	m.released = true
	m.loaded = false
	if m.conn != nil {
		_ = m.commandLocked("quit")
		_ = m.conn.Close()
		m.conn = nil
	}
	cmd := m.cmd
	m.mu.Unlock()

	if cmd != nil {
		// Give quit a moment; reapProcess clears m.cmd once it exits
		go func() {
			time.Sleep(2 * time.Second)
			m.mu.Lock()
			lingering := m.cmd == cmd
			m.mu.Unlock()
			if lingering {
				_ = cmd.Process.Kill()
			}
		}()
	}
}
