// Package mock provides a mock sandbox instance provider for testing.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/workbox-dev/workbox/internal/sandbox"
)

// Instance is a configurable in-memory sandbox.Instance. Zero value
// behavior: every call succeeds, no processes exist.
type Instance struct {
	mu sync.Mutex

	MountCalls   int
	StartCalls   int
	KillCalls    int
	DestroyCalls int

	LastMountBucket string
	LastMountPath   string
	LastMountOpts   sandbox.MountOptions
	LastProcessCmd  string
	LastProcessOpts sandbox.ProcessOptions

	MountErr   error
	StartErr   error
	KillErr    error
	DestroyErr error

	// Processes maps process id to reported status.
	Processes map[string]string
	// GetProcessErr makes every probe fail.
	GetProcessErr error

	TerminalAddr string
}

func (m *Instance) MountBucket(_ context.Context, bucket, mountPath string, opts sandbox.MountOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MountCalls++
	m.LastMountBucket = bucket
	m.LastMountPath = mountPath
	m.LastMountOpts = opts
	return m.MountErr
}

func (m *Instance) StartProcess(_ context.Context, cmd string, opts sandbox.ProcessOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls++
	m.LastProcessCmd = cmd
	m.LastProcessOpts = opts
	if m.StartErr != nil {
		return m.StartErr
	}
	if m.Processes == nil {
		m.Processes = make(map[string]string)
	}
	m.Processes[opts.ProcessID] = "running"
	return nil
}

func (m *Instance) GetProcess(_ context.Context, processID string) (*sandbox.Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetProcessErr != nil {
		return nil, m.GetProcessErr
	}
	status, ok := m.Processes[processID]
	if !ok {
		return nil, nil
	}
	return &sandbox.Process{ID: processID, Status: status}, nil
}

func (m *Instance) KillAllProcesses(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.KillCalls++
	if m.KillErr != nil {
		return m.KillErr
	}
	m.Processes = nil
	return nil
}

func (m *Instance) Destroy(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DestroyCalls++
	return m.DestroyErr
}

func (m *Instance) TerminalURL(port int) string {
	if m.TerminalAddr != "" {
		return m.TerminalAddr
	}
	return fmt.Sprintf("ws://mock-instance:%d", port)
}

// Provider hands out one Instance per session, creating mocks on demand.
type Provider struct {
	mu        sync.Mutex
	instances map[string]*Instance

	// NewInstance customizes instances created on demand.
	NewInstance func(sessionID string) *Instance
}

// NewProvider creates an empty mock provider.
func NewProvider() *Provider {
	return &Provider{instances: make(map[string]*Instance)}
}

// Instance returns the session's mock, creating it if needed.
func (p *Provider) Instance(sessionID string) sandbox.Instance {
	return p.Get(sessionID)
}

// Get returns the session's concrete mock for test assertions.
func (p *Provider) Get(sessionID string) *Instance {
	p.mu.Lock()
	defer p.mu.Unlock()

	if instance, ok := p.instances[sessionID]; ok {
		return instance
	}
	instance := &Instance{}
	if p.NewInstance != nil {
		instance = p.NewInstance(sessionID)
	}
	p.instances[sessionID] = instance
	return instance
}

// Set installs a preconfigured mock for a session.
func (p *Provider) Set(sessionID string, instance *Instance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances[sessionID] = instance
}
