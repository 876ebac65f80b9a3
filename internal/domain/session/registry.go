package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termstream/internal/domain/buffer"
	"github.com/GriffinCanCode/termstream/internal/domain/terminal"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termstream/internal/shared/id"
	"github.com/GriffinCanCode/termstream/internal/shared/types"
)

// Spawner creates terminal backends. Satisfied by terminal.Selector;
// tests inject stubs.
type Spawner interface {
	Spawn(opts terminal.Options) (*terminal.Result, error)
}

// Endpoint delivers protocol messages to one attached client. Both the
// websocket and in-process transports implement it.
type Endpoint interface {
	ID() string
	Send(msg types.Message) error
}

// Registry owns every live terminal session and the pumps that move
// output from backend to endpoint.
type Registry struct {
	spawner Spawner
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.RWMutex
	sessions map[id.TerminalID]*session
}

// session binds one backend, its output buffer, and the endpoint that owns
// it.
type session struct {
	id        id.TerminalID
	backend   terminal.Backend
	buf       *buffer.Manager
	endpoint  Endpoint
	strategy  terminal.Strategy
	fallback  string
	createdAt time.Time

	mu           sync.Mutex
	lastActivity time.Time
	exit         types.ExitPayload
	sawExit      bool
}

// NewRegistry creates a registry spawning through the given Spawner.
func NewRegistry(spawner Spawner, log *logging.Logger) *Registry {
	return &Registry{
		spawner:  spawner,
		log:      log,
		sessions: make(map[id.TerminalID]*session),
	}
}

// WithMetrics adds metrics tracking to the registry.
func (r *Registry) WithMetrics(metrics *monitoring.Metrics) *Registry {
	r.metrics = metrics
	return r
}

// Create spawns a terminal session owned by ep. A non-empty requested id
// is honored as-is; otherwise one is generated. The created reply is sent
// to the endpoint before any output can flow.
func (r *Registry) Create(ep Endpoint, requested string, req types.CreateRequest) (id.TerminalID, error) {
	timer := monitoring.NewTimer(r.metrics, "registry", "create")

	tid := id.TerminalID(requested)
	if requested == "" {
		tid = id.NewTerminalID()
	}

	if _, dup := r.get(tid); dup {
		r.stopTimer(timer, "error")
		return "", fmt.Errorf("terminal %s already exists", tid)
	}

	res, err := r.spawner.Spawn(terminal.Options{
		Shell: req.Shell,
		Cwd:   req.Cwd,
		Env:   req.Env,
		Cols:  clampDim(req.Cols),
		Rows:  clampDim(req.Rows),
	})
	if err != nil {
		r.stopTimer(timer, "error")
		return "", fmt.Errorf("spawn terminal: %w", err)
	}

	profile := buffer.NativeProfile()
	if res.Strategy == terminal.StrategySubprocess {
		profile = buffer.SubprocessProfile()
	}

	s := &session{
		id:           tid,
		backend:      res.Backend,
		buf:          buffer.NewManager(profile, r.log),
		endpoint:     ep,
		strategy:     res.Strategy,
		fallback:     res.FallbackReason,
		createdAt:    time.Now(),
		lastActivity: time.Now(),
	}

	r.mu.Lock()
	if _, dup := r.sessions[tid]; dup {
		r.mu.Unlock()
		s.buf.Destroy()
		res.Backend.Kill()
		r.stopTimer(timer, "error")
		return "", fmt.Errorf("terminal %s already exists", tid)
	}
	r.sessions[tid] = s
	active := len(r.sessions)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetTerminalsActive(active)
		r.metrics.IncTerminalsCreated(string(res.Strategy))
		if res.FallbackReason != "" {
			r.metrics.IncTerminalFallback()
		}
	}

	r.log.Info("terminal created",
		zap.String("terminal_id", tid.String()),
		zap.String("strategy", string(res.Strategy)),
		zap.Int("pid", res.Backend.Pid()),
		zap.String("endpoint", ep.ID()))

	// The created reply must reach the client before the pumps start so no
	// data event can overtake it.
	r.send(s, types.CreatedMessage(tid.String(), types.CreatedPayload{
		Strategy:       string(res.Strategy),
		FallbackReason: res.FallbackReason,
		Pid:            res.Backend.Pid(),
	}))

	go r.pumpBackend(s)
	go r.pumpDelivery(s)

	r.stopTimer(timer, "success")
	return tid, nil
}

// Write forwards client input to the terminal. Unknown ids and dead
// processes are logged no-ops.
func (r *Registry) Write(tid id.TerminalID, data []byte) bool {
	s, ok := r.get(tid)
	if !ok {
		r.log.Warn("write for unknown terminal", zap.String("terminal_id", tid.String()))
		return false
	}
	s.touch()

	if err := s.backend.Write(data); err != nil {
		if errors.Is(err, terminal.ErrProcessDead) {
			r.log.Warn("write to exited terminal", zap.String("terminal_id", tid.String()))
		} else {
			r.log.Warn("terminal write failed",
				zap.String("terminal_id", tid.String()), zap.Error(err))
		}
		return false
	}
	return true
}

// Resize applies new dimensions best-effort. Backends without resize
// support are left at their spawn size without complaint.
func (r *Registry) Resize(tid id.TerminalID, cols, rows uint16) bool {
	s, ok := r.get(tid)
	if !ok {
		r.log.Warn("resize for unknown terminal", zap.String("terminal_id", tid.String()))
		return false
	}
	s.touch()

	if err := s.backend.Resize(cols, rows); err != nil {
		if errors.Is(err, terminal.ErrResizeUnsupported) {
			r.log.Debug("resize unsupported by backend",
				zap.String("terminal_id", tid.String()),
				zap.String("strategy", string(s.strategy)))
			return true
		}
		r.log.Warn("terminal resize failed",
			zap.String("terminal_id", tid.String()), zap.Error(err))
		return false
	}
	return true
}

// Kill deregisters the terminal immediately and signals its process. The
// exit notification still reaches the owning endpoint once the backend
// reports it.
func (r *Registry) Kill(tid id.TerminalID) bool {
	r.mu.Lock()
	s, ok := r.sessions[tid]
	if ok {
		delete(r.sessions, tid)
	}
	active := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		r.log.Warn("kill for unknown terminal", zap.String("terminal_id", tid.String()))
		return false
	}

	if r.metrics != nil {
		r.metrics.SetTerminalsActive(active)
	}
	r.log.Info("terminal killed", zap.String("terminal_id", tid.String()))
	s.backend.Kill()
	return true
}

// Get returns a snapshot of one session.
func (r *Registry) Get(tid id.TerminalID) (types.TerminalInfo, bool) {
	s, ok := r.get(tid)
	if !ok {
		return types.TerminalInfo{}, false
	}
	return s.info(), true
}

// List returns snapshots of every live session, oldest first. Generated
// ids are ULIDs, so the lexicographic order is creation order.
func (r *Registry) List() []types.TerminalInfo {
	r.mu.RLock()
	out := make([]types.TerminalInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.info())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ReleaseEndpoint force-kills every session owned by the endpoint.
// Sessions do not outlive the transport that created them.
func (r *Registry) ReleaseEndpoint(endpointID string) int {
	r.mu.Lock()
	var owned []*session
	for tid, s := range r.sessions {
		if s.endpoint.ID() == endpointID {
			owned = append(owned, s)
			delete(r.sessions, tid)
		}
	}
	active := len(r.sessions)
	r.mu.Unlock()

	if len(owned) == 0 {
		return 0
	}
	if r.metrics != nil {
		r.metrics.SetTerminalsActive(active)
	}
	for _, s := range owned {
		r.log.Info("force-killing terminal after endpoint detach",
			zap.String("terminal_id", s.id.String()),
			zap.String("endpoint", endpointID))
		s.backend.Kill()
	}
	return len(owned)
}

// Shutdown kills every session during server teardown.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := make([]*session, 0, len(r.sessions))
	for tid, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, tid)
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetTerminalsActive(0)
	}
	for _, s := range all {
		s.backend.Kill()
	}
}

// pumpBackend moves backend events into the buffer. Exit is recorded for
// the delivery pump, which owns the endpoint ordering.
func (r *Registry) pumpBackend(s *session) {
	for ev := range s.backend.Events() {
		switch ev.Type {
		case terminal.EventData:
			s.buf.Write(ev.Data)
		case terminal.EventError:
			if ev.Err != nil {
				r.send(s, types.ErrorMessage(s.id.String(), ev.Err.Error()))
			}
		case terminal.EventExit:
			s.mu.Lock()
			s.exit = types.ExitPayload{Code: ev.Code, Signal: ev.Signal}
			s.sawExit = true
			s.mu.Unlock()
		}
	}
	// The backend stream has ended; drain the buffer so every byte reaches
	// the client before the exit notification.
	s.buf.Close()
}

// pumpDelivery forwards coalesced batches to the endpoint, then finishes
// the session with its exit notification once the buffer closes.
func (r *Registry) pumpDelivery(s *session) {
	for ev := range s.buf.Events() {
		switch ev.Type {
		case buffer.EventDataReady:
			r.send(s, types.DataMessage(s.id.String(), ev.Data))
			s.touch()
			if r.metrics != nil {
				r.metrics.RecordFlush(len(ev.Data))
			}
		case buffer.EventChunksDropped:
			r.log.Warn("terminal output shed under load",
				zap.String("terminal_id", s.id.String()),
				zap.Int64("chunks", ev.Dropped))
			if r.metrics != nil {
				r.metrics.RecordChunksDropped(int(ev.Dropped))
			}
		}
	}
	r.finish(s)
}

// finish sends the exit notification and drops the session from the map.
func (r *Registry) finish(s *session) {
	s.mu.Lock()
	exit := s.exit
	saw := s.sawExit
	s.mu.Unlock()

	if saw {
		r.send(s, types.ExitMessage(s.id.String(), exit.Code, exit.Signal))

		outcome := "clean"
		if exit.Code != 0 || exit.Signal != "" {
			outcome = "abnormal"
		}
		if r.metrics != nil {
			r.metrics.RecordTerminalExit(outcome)
		}
		r.log.Info("terminal exited",
			zap.String("terminal_id", s.id.String()),
			zap.Int("code", exit.Code),
			zap.String("signal", exit.Signal))
	}
	r.remove(s.id)
}

func (r *Registry) get(tid id.TerminalID) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[tid]
	return s, ok
}

// remove tolerates sessions already deregistered by Kill or
// ReleaseEndpoint.
func (r *Registry) remove(tid id.TerminalID) {
	r.mu.Lock()
	_, ok := r.sessions[tid]
	if ok {
		delete(r.sessions, tid)
	}
	active := len(r.sessions)
	r.mu.Unlock()

	if ok && r.metrics != nil {
		r.metrics.SetTerminalsActive(active)
	}
}

func (r *Registry) send(s *session, msg types.Message) {
	if err := s.endpoint.Send(msg); err != nil {
		r.log.Debug("endpoint send failed",
			zap.String("terminal_id", s.id.String()),
			zap.String("endpoint", s.endpoint.ID()),
			zap.Error(err))
	}
}

func (r *Registry) stopTimer(t *monitoring.Timer, status string) {
	if r.metrics != nil {
		t.Stop(status)
	}
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *session) info() types.TerminalInfo {
	s.mu.Lock()
	last := s.lastActivity
	s.mu.Unlock()

	return types.TerminalInfo{
		ID:             s.id.String(),
		Strategy:       string(s.strategy),
		FallbackReason: s.fallback,
		Pid:            s.backend.Pid(),
		IsRunning:      s.backend.Running(),
		CreatedAt:      s.createdAt.UnixMilli(),
		LastActivity:   last.UnixMilli(),
	}
}

// clampDim narrows a request dimension to the pty range; out-of-range
// values fall back to the selector defaults.
func clampDim(v int) uint16 {
	if v <= 0 || v > 0xFFFF {
		return 0
	}
	return uint16(v)
}
