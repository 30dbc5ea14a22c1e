package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PlatformClient talks to the hosting platform's sandbox API over JSON/HTTP
// and hands out per-session Instance handles.
type PlatformClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// PlatformOption configures the PlatformClient.
type PlatformOption func(*PlatformClient)

// WithPlatformHTTPClient sets a custom HTTP client (used by tests).
func WithPlatformHTTPClient(client *http.Client) PlatformOption {
	return func(p *PlatformClient) {
		p.client = client
	}
}

// NewPlatformClient creates a sandbox platform client.
func NewPlatformClient(baseURL, token string, opts ...PlatformOption) *PlatformClient {
	p := &PlatformClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Instance returns the handle for a session's dedicated instance. The
// platform creates the instance lazily on first use.
func (p *PlatformClient) Instance(sessionID string) Instance {
	return &platformInstance{client: p, sessionID: sessionID}
}

type platformInstance struct {
	client    *PlatformClient
	sessionID string
}

type mountRequest struct {
	Bucket    string `json:"bucket"`
	MountPath string `json:"mountPath"`
	MountOptions
}

type processRequest struct {
	Cmd string `json:"cmd"`
	ProcessOptions
}

func (i *platformInstance) path(suffix string) string {
	return fmt.Sprintf("/v1/instances/%s%s", i.sessionID, suffix)
}

func (i *platformInstance) MountBucket(ctx context.Context, bucket, mountPath string, opts MountOptions) error {
	body := mountRequest{Bucket: bucket, MountPath: mountPath, MountOptions: opts}
	resp, err := i.client.do(ctx, http.MethodPost, i.path("/mounts"), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return remoteError(resp)
	}
	return nil
}

func (i *platformInstance) StartProcess(ctx context.Context, cmd string, opts ProcessOptions) error {
	body := processRequest{Cmd: cmd, ProcessOptions: opts}
	resp, err := i.client.do(ctx, http.MethodPost, i.path("/processes"), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return remoteError(resp)
	}
	return nil
}

func (i *platformInstance) GetProcess(ctx context.Context, processID string) (*Process, error) {
	resp, err := i.client.do(ctx, http.MethodGet, i.path("/processes/"+processID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var process Process
		if err := json.NewDecoder(resp.Body).Decode(&process); err != nil {
			return nil, fmt.Errorf("decode process: %w", err)
		}
		return &process, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, remoteError(resp)
	}
}

func (i *platformInstance) KillAllProcesses(ctx context.Context) error {
	resp, err := i.client.do(ctx, http.MethodDelete, i.path("/processes"), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return remoteError(resp)
	}
	return nil
}

func (i *platformInstance) Destroy(ctx context.Context) error {
	resp, err := i.client.do(ctx, http.MethodDelete, i.path(""), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return remoteError(resp)
	}
	return nil
}

// TerminalURL rewrites the API base to a websocket URL proxying the given
// instance port.
func (i *platformInstance) TerminalURL(port int) string {
	wsBase := i.client.baseURL
	switch {
	case strings.HasPrefix(wsBase, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(wsBase, "https://")
	case strings.HasPrefix(wsBase, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(wsBase, "http://")
	}
	return fmt.Sprintf("%s%s/proxy/%d", wsBase, i.path(""), port)
}

func (p *PlatformClient) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return p.client.Do(req)
}

// remoteError surfaces the platform's error message verbatim so the
// controller can classify it ("already mounted", credential markers, ...).
func remoteError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return errors.New(payload.Error)
	}
	return fmt.Errorf("sandbox api: %s: %s", resp.Status, bytes.TrimSpace(data))
}
