package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/workbox-dev/workbox/internal/config"
	"github.com/workbox-dev/workbox/internal/logger"
	"github.com/workbox-dev/workbox/internal/vfs"
)

const (
	terminalProcessID = "pty-server"
	terminalCommand   = "python3 /workspace/terminal-server.py"
)

// MountStatus reports the outcome of an ensure-mount. Mounted=false with a
// Message is a degraded-but-usable state, not an error: a sandbox can run
// without the persistent mount.
type MountStatus struct {
	Mounted bool   `json:"mounted"`
	Message string `json:"mountMessage,omitempty"`
}

// Controller orchestrates idempotent sandbox readiness. Its registries are
// process-local liveness caches over remote truth: they reset on restart,
// so every ensure operation must be safe to redo against an instance that
// is already in the target state.
type Controller struct {
	cfg      *config.Config
	provider Provider
	log      *logger.Logger

	mu      sync.Mutex
	running map[string]bool
	mounted map[string]bool

	// flight collapses concurrent ensure calls for the same session into
	// one in-flight attempt.
	flight singleflight.Group
}

// NewController creates a controller over the given instance provider.
func NewController(cfg *config.Config, provider Provider, log *logger.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		provider: provider,
		log:      log,
		running:  make(map[string]bool),
		mounted:  make(map[string]bool),
	}
}

// Running reports this process's local knowledge of whether the session's
// sandbox has been started and not stopped. It never consults the remote
// instance.
func (c *Controller) Running(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running[sessionID]
}

func (c *Controller) isMounted(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted[sessionID]
}

func (c *Controller) markMounted(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted[sessionID] = true
}

func (c *Controller) markRunning(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running[sessionID] = true
}

func (c *Controller) clear(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, sessionID)
	delete(c.mounted, sessionID)
}

// EnsureMounted brings the session's bucket mount to ready if it is not
// already. Missing mount configuration and known local-development or
// credential limitations degrade to an unmounted status with a diagnostic
// message; any other mount failure propagates.
func (c *Controller) EnsureMounted(ctx context.Context, sessionID string) (MountStatus, error) {
	if c.isMounted(sessionID) {
		return MountStatus{Mounted: true}, nil
	}

	result, err, _ := c.flight.Do("mount:"+sessionID, func() (interface{}, error) {
		return c.mountOnce(ctx, sessionID)
	})
	if err != nil {
		return MountStatus{}, err
	}
	return result.(MountStatus), nil
}

func (c *Controller) mountOnce(ctx context.Context, sessionID string) (MountStatus, error) {
	if c.isMounted(sessionID) {
		return MountStatus{Mounted: true}, nil
	}

	bucket := strings.TrimSpace(c.cfg.BucketName)
	endpoint := c.cfg.MountEndpoint()
	if bucket == "" || endpoint == "" {
		return MountStatus{
			Mounted: false,
			Message: "missing bucket mount vars (BUCKET_NAME / BUCKET_S3_ENDPOINT)",
		}, nil
	}

	opts := MountOptions{
		Endpoint: endpoint,
		Prefix:   "/" + vfs.SessionPrefix(sessionID),
	}
	if c.cfg.BucketAccessKeyID != "" && c.cfg.BucketSecretAccessKey != "" {
		opts.Credentials = &MountCredentials{
			AccessKeyID:     c.cfg.BucketAccessKeyID,
			SecretAccessKey: c.cfg.BucketSecretAccessKey,
		}
	}

	err := c.provider.Instance(sessionID).MountBucket(ctx, bucket, WorkspaceRoot, opts)
	if err == nil {
		c.markMounted(sessionID)
		return MountStatus{Mounted: true}, nil
	}

	message := err.Error()
	lower := strings.ToLower(message)

	// The remote side already holds the mount; some other caller or a
	// previous process got there first.
	if strings.Contains(lower, "already mounted") {
		c.markMounted(sessionID)
		return MountStatus{Mounted: true}, nil
	}

	if strings.Contains(lower, "wrangler dev") ||
		strings.Contains(lower, "fuse") ||
		strings.Contains(lower, "operation not permitted") {
		c.log.Warn("bucket mount unavailable in local dev", "session", sessionID, "error", message)
		return MountStatus{
			Mounted: false,
			Message: "local dev harness cannot mount the bucket (works after deploy)",
		}, nil
	}

	if strings.Contains(lower, "missingcredentialserror") ||
		strings.Contains(lower, "no credentials found") ||
		strings.Contains(lower, "aws_access_key_id") ||
		strings.Contains(lower, "aws_secret_access_key") {
		c.log.Warn("bucket mount skipped, missing credentials", "session", sessionID)
		return MountStatus{
			Mounted: false,
			Message: "bucket mount skipped: missing S3 credentials",
		}, nil
	}

	return MountStatus{}, fmt.Errorf("mount bucket for session %s: %w", sessionID, err)
}

// EnsureTerminal makes sure the in-instance terminal server process is
// running, starting it when needed and waiting a short settle delay so it
// can bind its port before any socket upgrade is attempted.
func (c *Controller) EnsureTerminal(ctx context.Context, sessionID string) error {
	_, err, _ := c.flight.Do("terminal:"+sessionID, func() (interface{}, error) {
		return nil, c.terminalOnce(ctx, sessionID)
	})
	return err
}

func (c *Controller) terminalOnce(ctx context.Context, sessionID string) error {
	instance := c.provider.Instance(sessionID)

	// A probe failure just means we cannot prove the process is running;
	// starting it again is safe.
	if process, err := instance.GetProcess(ctx, terminalProcessID); err == nil &&
		process != nil && process.Status == "running" {
		return nil
	}

	if err := instance.StartProcess(ctx, terminalCommand, ProcessOptions{
		ProcessID: terminalProcessID,
		Cwd:       WorkspaceRoot,
	}); err != nil {
		return fmt.Errorf("start terminal server for session %s: %w", sessionID, err)
	}

	time.Sleep(c.cfg.TerminalSettleDelay)
	return nil
}

// EnsureRuntime is EnsureMounted followed by EnsureTerminal. The mount
// status is returned regardless of the terminal outcome; a terminal start
// failure propagates because a sandbox without a terminal is unusable.
func (c *Controller) EnsureRuntime(ctx context.Context, sessionID string) (MountStatus, error) {
	status, err := c.EnsureMounted(ctx, sessionID)
	if err != nil {
		return MountStatus{}, err
	}
	if err := c.EnsureTerminal(ctx, sessionID); err != nil {
		return status, err
	}
	return status, nil
}

// Start brings the session's sandbox to ready and registers it as running.
func (c *Controller) Start(ctx context.Context, sessionID string) (MountStatus, error) {
	status, err := c.EnsureRuntime(ctx, sessionID)
	if err != nil {
		return status, err
	}
	c.markRunning(sessionID)
	return status, nil
}

// Stop tears the session's sandbox down. Remote cleanup is best effort:
// kill and destroy failures are logged and swallowed so the registries are
// always cleared, even when the remote side is unreachable.
func (c *Controller) Stop(ctx context.Context, sessionID string) {
	instance := c.provider.Instance(sessionID)

	if err := instance.KillAllProcesses(ctx); err != nil {
		c.log.Warn("kill sandbox processes failed", "session", sessionID, "error", err)
	}
	if err := instance.Destroy(ctx); err != nil {
		c.log.Warn("destroy sandbox failed", "session", sessionID, "error", err)
	}

	c.clear(sessionID)
}
