package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hausnetz/eos/core/bridge"
	"github.com/hausnetz/eos/core/factory"
)

// NodeRedConfig holds the Node-RED endpoint settings.
type NodeRedConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// NodeRed talks to a Node-RED flow exposing two plain HTTP endpoints:
// GET /eos/measurements returning {entity: value} and POST /eos/commands
// accepting the command list.
type NodeRed struct {
	baseURL string
	client  *http.Client
}

// NewNodeRed creates an adapter for the given flow.
func NewNodeRed(cfg NodeRedConfig) (*NodeRed, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("nodered: base_url is required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &NodeRed{baseURL: cfg.BaseURL, client: &http.Client{Timeout: timeout}}, nil
}

// FetchMeasurements reads all values in a single request and filters them to
// the requested entities.
func (n *NodeRed) FetchMeasurements(ctx context.Context, entities []string) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/eos/measurements", nil)
	if err != nil {
		return nil, fmt.Errorf("nodered: create request: %w", err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nodered: fetch measurements: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("nodered: fetch measurements: status %d, body: %s", resp.StatusCode, body)
	}

	var all map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		return nil, fmt.Errorf("nodered: decode measurements: %w", err)
	}
	out := make(map[string]float64, len(entities))
	for _, entity := range entities {
		if v, ok := all[entity]; ok {
			out[entity] = v
		}
	}
	return out, nil
}

// SendCommands posts the full command list in one request.
func (n *NodeRed) SendCommands(ctx context.Context, commands []bridge.Command) error {
	payload, err := json.Marshal(commands)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/eos/commands", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("nodered: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("nodered: send commands: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("nodered: send commands: status %d, body: %s", resp.StatusCode, body)
	}
	return nil
}

func init() {
	_ = Register("nodered", func(conf map[string]any) (Adapter, error) {
		var c NodeRedConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewNodeRed(c)
	})
}
