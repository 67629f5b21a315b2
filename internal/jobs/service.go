package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Akansha-Mulchandani/GAIA/internal/client"
	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

const (
	pollTimeout     = 10 * time.Second
	scenarioTimeout = 12 * time.Second
)

// SimulationService drives intervention simulations on the backend.
type SimulationService struct {
	client   *client.Client
	events   EventSource
	interval time.Duration
	logger   *slog.Logger
}

// ServiceOption configures a SimulationService.
type ServiceOption func(*SimulationService)

// WithPollInterval overrides the fallback polling period.
func WithPollInterval(d time.Duration) ServiceOption {
	return func(s *SimulationService) { s.interval = d }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *SimulationService) { s.logger = l }
}

// NewSimulationService creates a service. events may be nil, in which case
// runs are tracked by polling alone.
func NewSimulationService(c *client.Client, events EventSource, opts ...ServiceOption) *SimulationService {
	s := &SimulationService{
		client:   c,
		events:   events,
		interval: DefaultPollInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a new simulation and returns its id.
func (s *SimulationService) Create(ctx context.Context) (int, error) {
	resp, err := s.client.Fetch(ctx, "/simulation/create", &client.Request{Method: http.MethodPost})
	if err != nil {
		return 0, err
	}
	created, err := core.DecodeEnvelope[struct {
		SimulationID int `json:"simulation_id"`
	}](resp.Body, resp.Status).Unwrap()
	if err != nil {
		return 0, err
	}
	if created.SimulationID == 0 {
		return 0, core.NewDecodeError(fmt.Errorf("create simulation: missing simulation_id"))
	}
	return created.SimulationID, nil
}

// Run starts simulation id with the given intervention.
func (s *SimulationService) Run(ctx context.Context, id int, iv core.Intervention) error {
	req, err := client.NewJSONRequest(http.MethodPost, iv)
	if err != nil {
		return err
	}
	resp, err := s.client.Fetch(ctx, fmt.Sprintf("/simulation/run?simulation_id=%d", id), req)
	if err != nil {
		return err
	}
	_, err = core.DecodeEnvelope[struct{}](resp.Body, resp.Status).Unwrap()
	return err
}

// Get reads the current state of simulation id with a single attempt.
func (s *SimulationService) Get(ctx context.Context, id int) (*core.Job, error) {
	resp, err := s.client.FetchWithRetry(ctx, fmt.Sprintf("/simulation/%d", id), nil, 0, pollTimeout)
	if err != nil {
		return nil, err
	}
	job, err := core.DecodeEnvelope[core.Job](resp.Body, resp.Status).Unwrap()
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListScenarios returns saved scenarios, most recent first.
func (s *SimulationService) ListScenarios(ctx context.Context) ([]core.Scenario, error) {
	resp, err := s.client.FetchWithRetry(ctx, "/simulation/scenarios", nil, 0, pollTimeout)
	if err != nil {
		return nil, err
	}
	return core.DecodeEnvelope[[]core.Scenario](resp.Body, resp.Status).Unwrap()
}

// SaveScenario stores the results of simulation id under name.
func (s *SimulationService) SaveScenario(ctx context.Context, id int, name string) (*core.Scenario, error) {
	if name == "" {
		name = "Scenario"
	}
	q := url.Values{}
	q.Set("simulation_id", fmt.Sprint(id))
	q.Set("name", name)

	resp, err := s.client.FetchWithRetry(ctx, "/simulation/scenarios?"+q.Encode(),
		&client.Request{Method: http.MethodPost}, 0, scenarioTimeout)
	if err != nil {
		return nil, err
	}
	sc, err := core.DecodeEnvelope[core.Scenario](resp.Body, resp.Status).Unwrap()
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// Poller returns a poller reading simulations through this service.
func (s *SimulationService) Poller() *Poller {
	return &Poller{Fetch: s.Get, Interval: s.interval, Logger: s.logger}
}

// RunAndWatch starts simulation id and follows it to its terminal state,
// reporting progress along the way. Realtime handlers are registered before
// the run is issued; polling starts once the run was accepted.
func (s *SimulationService) RunAndWatch(ctx context.Context, id int, iv core.Intervention, onProgress func(*core.Job)) (*core.Job, string, error) {
	w, err := Subscribe(ctx, WatchConfig{
		JobID:      id,
		Poller:     s.Poller(),
		Events:     s.events,
		Logger:     s.logger,
		OnProgress: onProgress,
	})
	if err != nil {
		return nil, "", err
	}
	defer w.Stop()

	if err := s.Run(ctx, id, iv); err != nil {
		return nil, "", err
	}
	w.StartPolling()

	job, err := w.Wait(ctx)
	if err != nil {
		return nil, "", err
	}
	_, source, _ := w.Result()
	return job, source, nil
}
