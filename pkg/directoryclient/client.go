package directoryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/menmos/menmos/pkg/routing"
	"github.com/menmos/menmos/pkg/types"
)

// DefaultTimeout bounds every call this client makes, matching the
// teacher's pkg/client per-RPC context.WithTimeout discipline.
const DefaultTimeout = 10 * time.Second

// Client is the storage node's handle on the directory daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client talking to baseURL (e.g. "http://menmosd:8080").
// A nil httpClient falls back to http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges a username and password held in the directory's user
// store for a bearer token, through the /auth/login route.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var resp loginResponse
	if err := c.postJSON(ctx, "", "/auth/login", loginRequest{Username: username, Password: password}, &resp); err != nil {
		return "", fmt.Errorf("directoryclient: login: %w", err)
	}
	return resp.Token, nil
}

// RegisterNode announces info to the directory, returning whether a
// rebuild pass is requested and the moves this node should now pull.
func (c *Client) RegisterNode(ctx context.Context, token string, info types.StorageNodeInfo) (*routing.RegisterResult, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var result routing.RegisterResult
	if err := c.putJSON(ctx, token, "/node/storage", info, &result); err != nil {
		return nil, fmt.Errorf("directoryclient: register node %q: %w", info.ID, err)
	}
	return &result, nil
}

// ListNodes returns every storage node currently registered with the
// directory, used to resolve a move's destination node id into a
// redirect URL.
func (c *Client) ListNodes(ctx context.Context, token string) ([]types.StorageNodeInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/node/storage", nil)
	if err != nil {
		return nil, fmt.Errorf("directoryclient: build list-nodes request: %w", err)
	}
	setAuth(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directoryclient: list nodes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directoryclient: list nodes: status %d", resp.StatusCode)
	}

	var nodes []types.StorageNodeInfo
	if err := json.NewDecoder(resp.Body).Decode(&nodes); err != nil {
		return nil, fmt.Errorf("directoryclient: decode node list: %w", err)
	}
	return nodes, nil
}

// RebuildComplete tells the directory this node has finished its
// rebuild pass over its local blobs. It sends no blob metadata.
func (c *Client) RebuildComplete(ctx context.Context, token, nodeID string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/rebuild/"+nodeID, nil)
	if err != nil {
		return fmt.Errorf("directoryclient: build rebuild-complete request: %w", err)
	}
	setAuth(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directoryclient: rebuild complete for %q: %w", nodeID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directoryclient: rebuild complete for %q: status %d", nodeID, resp.StatusCode)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, token, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, token, path, body, out)
}

func (c *Client) putJSON(ctx context.Context, token, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, token, path, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, token, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func setAuth(r *http.Request, token string) {
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}
