// Package supervisor implements the registry that owns every child LLM
// session and background process: depth/count caps, hierarchical
// cancellation, stdin/output plumbing for background processes, and the
// shutdown cascade that guarantees no orphan processes survive harness
// exit.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/binarymuse/ouroboros/internal/models"
	"github.com/binarymuse/ouroboros/internal/observability"
)

// entry augments a models.SubAgent with the concurrency plumbing the
// registry needs but that has no business living in the plain data model:
// its cancellation handle, an optional completion signal, and (for
// background processes) the stdin sink.
type entry struct {
	agent  models.SubAgent
	handle *CancelHandle
	done   chan struct{}
	stdin  io.Writer
}

// Manager is the Sub-Agent Supervisor: a concurrent registry forming a
// forest of LlmSession and BackgroundProcess entries.
type Manager struct {
	mu       sync.Mutex
	entries  map[string]*entry
	root     *CancelHandle
	maxDepth int
	maxTotal int

	// RunChildSession runs a full Session Driver for a spawned LLM
	// sub-agent. It is injected by the session package at wiring time to
	// avoid an import cycle (supervisor must not import session). Called
	// from a detached goroutine; the returned string is the structured
	// result summary persisted via update_status/get_result.
	RunChildSession func(ctx context.Context, id string, goal string, modelOverride string, contextVars map[string]string, toolFilter []string) (summary string, err error)

	// Metrics is optional; when set, the active-sub-agent gauge tracks
	// every Register/terminal-UpdateStatus transition.
	Metrics *observability.Metrics
}

// ErrCapExceeded is returned by Register when a depth or total-count cap
// would be violated.
type ErrCapExceeded struct {
	Reason string
}

func (e *ErrCapExceeded) Error() string { return e.Reason }

// New creates a Manager bound to root, with the configured depth/total
// caps.
func New(root *CancelHandle, maxDepth, maxTotal int) *Manager {
	return &Manager{
		entries:  make(map[string]*entry),
		root:     root,
		maxDepth: maxDepth,
		maxTotal: maxTotal,
	}
}

// Register allocates a new entry of the given kind under parentID (empty
// for a root-level sub-agent), enforcing the configured caps. It returns
// the new entry's id and cancellation handle.
func (m *Manager) Register(kind models.SubAgentKind, parentID string) (id string, handle *CancelHandle, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.maxTotal {
		return "", nil, &ErrCapExceeded{Reason: fmt.Sprintf("max_total sub-agent cap (%d) reached", m.maxTotal)}
	}

	parentHandle := m.root
	depth := 1
	if parentID != "" {
		parent, ok := m.entries[parentID]
		if !ok {
			return "", nil, &ErrCapExceeded{Reason: fmt.Sprintf("unknown parent id %q", parentID)}
		}
		parentHandle = parent.handle
		depth = parent.agent.Depth + 1
	}
	if depth > m.maxDepth {
		return "", nil, &ErrCapExceeded{Reason: fmt.Sprintf("max_depth sub-agent cap (%d) exceeded", m.maxDepth)}
	}

	id = uuid.NewString()
	childHandle := parentHandle.Child()

	m.entries[id] = &entry{
		agent: models.SubAgent{
			ID:        id,
			ParentID:  parentID,
			Kind:      kind,
			Status:    models.StatusRunning,
			Depth:     depth,
			StartedAt: time.Now(),
			Output:    models.NewOutputRing(1000),
		},
		handle: childHandle,
		done:   make(chan struct{}),
	}

	if m.Metrics != nil {
		m.Metrics.SubAgentStarted(string(kind))
	}

	return id, childHandle, nil
}

// UpdateStatus transitions id to status. Terminal statuses also stamp
// EndedAt and close the entry's completion channel; the call is a no-op if
// the entry is already in a terminal state.
func (m *Manager) UpdateStatus(id string, status models.SubAgentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok || isTerminal(e.agent.Status) {
		return
	}

	e.agent.Status = status
	if isTerminal(status) {
		e.agent.EndedAt = time.Now()
		close(e.done)
		if m.Metrics != nil {
			m.Metrics.SubAgentEnded(string(e.agent.Kind))
		}
	}
}

// SetResult stores the final result payload for id.
func (m *Manager) SetResult(id, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.agent.Result = result
	}
}

func isTerminal(s models.SubAgentStatus) bool {
	return s == models.StatusCompleted || s == models.StatusFailed || s == models.StatusKilled
}

// ListAll returns a snapshot of every registered entry.
func (m *Manager) ListAll() []models.SubAgent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.SubAgent, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.agent)
	}
	return out
}

// ChildrenOf returns the direct children of id.
func (m *Manager) ChildrenOf(id string) []models.SubAgent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.SubAgent
	for _, e := range m.entries {
		if e.agent.ParentID == id {
			out = append(out, e.agent)
		}
	}
	return out
}

// RootAgents returns every entry with no parent.
func (m *Manager) RootAgents() []models.SubAgent {
	return m.ChildrenOf("")
}

// GetStatus returns the status of id, or false if id is unknown.
func (m *Manager) GetStatus(id string) (models.SubAgentStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return "", false
	}
	return e.agent.Status, true
}

// GetResult returns the final result payload of id, or false if id is
// unknown or has not yet produced a result.
func (m *Manager) GetResult(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.agent.Result == "" {
		return "", false
	}
	return e.agent.Result, true
}

// Cancel signals id's cancellation handle, which cascades to all of its
// descendants.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	e.handle.Cancel()
	return true
}

// SetStdin attaches a background process's stdin sink to id.
func (m *Manager) SetStdin(id string, sink io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.stdin = sink
	}
}

// WriteToStdin writes bytes to id's stdin sink, if one is attached.
func (m *Manager) WriteToStdin(id string, data []byte) (int, error) {
	m.mu.Lock()
	e := m.entries[id]
	m.mu.Unlock()
	if e == nil || e.stdin == nil {
		return 0, fmt.Errorf("no stdin attached for agent %s", id)
	}
	return e.stdin.Write(data)
}

// ReadOutput returns the buffered output lines for id's output ring.
func (m *Manager) ReadOutput(id string) ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return e.agent.Output.Lines(), true
}

// AppendOutput appends a line to id's output ring, evicting the oldest line
// on overflow.
func (m *Manager) AppendOutput(id, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.agent.Output.Append(line)
	}
}

// ShutdownAll cancels the root handle, then waits for every tracked
// completion channel to close, up to deadline. Entries that do not observe
// cancellation within the deadline are abandoned (their background process
// kill-on-drop is the last-resort safety net).
func (m *Manager) ShutdownAll(deadline time.Duration) {
	m.root.Cancel()

	m.mu.Lock()
	dones := make([]chan struct{}, 0, len(m.entries))
	for _, e := range m.entries {
		dones = append(dones, e.done)
	}
	m.mu.Unlock()

	deadlineTimer := time.NewTimer(deadline)
	defer deadlineTimer.Stop()

	for _, done := range dones {
		select {
		case <-done:
		case <-deadlineTimer.C:
			return
		}
	}
}
