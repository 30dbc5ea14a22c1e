// Package sandbox manages the lifecycle of remote sandbox compute
// instances: bucket mounts, the in-instance terminal server process, and
// process-wide readiness tracking.
package sandbox

import (
	"context"
)

// WorkspaceRoot is where the session's bucket prefix is mounted inside the
// instance and where the terminal server runs.
const WorkspaceRoot = "/workspace"

// MountCredentials are the optional S3-style credentials for the bucket
// mount. When absent the instance relies on its ambient credentials.
type MountCredentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
}

// MountOptions parametrizes a bucket mount on the instance.
type MountOptions struct {
	Endpoint    string            `json:"endpoint"`
	Prefix      string            `json:"prefix"`
	Credentials *MountCredentials `json:"credentials,omitempty"`
}

// ProcessOptions parametrizes starting a named process on the instance.
type ProcessOptions struct {
	ProcessID string `json:"processId"`
	Cwd       string `json:"cwd"`
}

// Process is the remote instance's view of a managed process.
type Process struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "running" or a terminal state
}

// Instance is the durable remote compute handle supplied by the hosting
// platform. MountBucket must tolerate being called twice for the same
// mount; the controller leans on its "already mounted" error as the
// cross-process safety net.
type Instance interface {
	MountBucket(ctx context.Context, bucket, mountPath string, opts MountOptions) error
	StartProcess(ctx context.Context, cmd string, opts ProcessOptions) error
	// GetProcess returns nil without error when no such process exists.
	GetProcess(ctx context.Context, processID string) (*Process, error)
	KillAllProcesses(ctx context.Context) error
	Destroy(ctx context.Context) error
	// TerminalURL is the websocket endpoint of the in-instance terminal
	// server listening on the given port.
	TerminalURL(port int) string
}

// Provider resolves the instance dedicated to a session.
type Provider interface {
	Instance(sessionID string) Instance
}
