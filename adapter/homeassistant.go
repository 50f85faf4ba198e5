package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hausnetz/eos/core/bridge"
	"github.com/hausnetz/eos/core/factory"
	"github.com/hausnetz/eos/infra/logger"
)

// HomeAssistantConfig holds the REST API settings.
type HomeAssistantConfig struct {
	BaseURL        string `json:"base_url"`
	Token          string `json:"token"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// HomeAssistant talks to a Home Assistant instance over its REST API using a
// long-lived access token.
type HomeAssistant struct {
	baseURL string
	token   string
	client  *http.Client
	log     logger.Logger
}

// NewHomeAssistant creates an adapter for the given instance.
func NewHomeAssistant(cfg HomeAssistantConfig) (*HomeAssistant, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("homeassistant: base_url is required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HomeAssistant{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		log:     logger.New("homeassistant"),
	}, nil
}

type haState struct {
	EntityID string `json:"entity_id"`
	State    string `json:"state"`
}

// FetchMeasurements reads each entity through GET /api/states/<id>.
// Unavailable or non-numeric states are skipped with a warning so a single
// flaky sensor does not block the cycle.
func (h *HomeAssistant) FetchMeasurements(ctx context.Context, entities []string) (map[string]float64, error) {
	out := make(map[string]float64, len(entities))
	for _, entity := range entities {
		state, err := h.getState(ctx, entity)
		if err != nil {
			return nil, err
		}
		value, err := strconv.ParseFloat(state.State, 64)
		if err != nil {
			h.log.Warnf("entity %s has non-numeric state %q, skipping", entity, state.State)
			continue
		}
		out[entity] = value
	}
	return out, nil
}

func (h *HomeAssistant) getState(ctx context.Context, entity string) (haState, error) {
	url := fmt.Sprintf("%s/api/states/%s", h.baseURL, entity)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return haState{}, fmt.Errorf("homeassistant: create request: %w", err)
	}
	h.authorize(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return haState{}, fmt.Errorf("homeassistant: get %s: %w", entity, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return haState{}, fmt.Errorf("homeassistant: get %s: status %d, body: %s", entity, resp.StatusCode, body)
	}

	var state haState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return haState{}, fmt.Errorf("homeassistant: decode %s: %w", entity, err)
	}
	return state, nil
}

// SendCommands writes every setpoint through POST /api/states/<id>.
func (h *HomeAssistant) SendCommands(ctx context.Context, commands []bridge.Command) error {
	for _, c := range commands {
		if err := h.setState(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (h *HomeAssistant) setState(ctx context.Context, c bridge.Command) error {
	payload, err := json.Marshal(map[string]string{
		"state": strconv.FormatFloat(c.Value, 'f', -1, 64),
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/states/%s", h.baseURL, c.EntityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("homeassistant: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	h.authorize(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("homeassistant: set %s: %w", c.EntityID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("homeassistant: set %s: status %d, body: %s", c.EntityID, resp.StatusCode, body)
	}
	return nil
}

func (h *HomeAssistant) authorize(req *http.Request) {
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
}

func init() {
	_ = Register("homeassistant", func(conf map[string]any) (Adapter, error) {
		var c HomeAssistantConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewHomeAssistant(c)
	})
}
