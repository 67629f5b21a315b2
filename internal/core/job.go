package core

import (
	"encoding/json"
	"fmt"
)

const Version = "0.3.0"

// JobStatus is the lifecycle state of a backend job as observed by the console.
type JobStatus string

const (
	StatusIdle      JobStatus = "idle"
	StatusCreated   JobStatus = "created"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// IsTerminal returns true if no further transition can occur from s.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is a long-running backend unit of work (e.g. an intervention
// simulation). The backend owns it; the console only observes it.
type Job struct {
	ID                 int             `json:"id"`
	Name               string          `json:"name,omitempty"`
	Status             JobStatus       `json:"status"`
	Phase              string          `json:"phase,omitempty"`
	Progress           int             `json:"progress"`
	Results            json.RawMessage `json:"results,omitempty"`
	EcosystemConfig    json.RawMessage `json:"ecosystem_config,omitempty"`
	InterventionConfig json.RawMessage `json:"intervention_config,omitempty"`
	CreatedAt          string          `json:"created_at,omitempty"`
	CompletedAt        string          `json:"completed_at,omitempty"`
}

// HasResults reports whether the backend attached a non-null result document.
func (j *Job) HasResults() bool {
	return len(j.Results) > 0 && string(j.Results) != "null"
}

// SimulationResults decodes the attached result document.
func (j *Job) SimulationResults() (*SimulationResults, error) {
	if !j.HasResults() {
		return nil, fmt.Errorf("job %d has no results", j.ID)
	}
	var r SimulationResults
	if err := json.Unmarshal(j.Results, &r); err != nil {
		return nil, fmt.Errorf("decode results of job %d: %w", j.ID, err)
	}
	return &r, nil
}

// ClampProgress keeps a reported progress value inside [0, 100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Intervention is the request body of a simulation run.
type Intervention struct {
	Action          string   `json:"action"`
	Intensity       float64  `json:"intensity"`
	SpeciesLimit    int      `json:"species_limit"`
	Sampling        string   `json:"sampling"`
	SelectedSpecies []string `json:"selected_species,omitempty"`
}

// DefaultIntervention mirrors the console's initial form values.
func DefaultIntervention() Intervention {
	return Intervention{
		Action:       "habitat-restoration",
		Intensity:    0.5,
		SpeciesLimit: 8,
		Sampling:     "random",
	}
}

// SimulationResults is the result document of a completed simulation.
type SimulationResults struct {
	PopulationChangePercent float64      `json:"population_change_percent"`
	RiskChangePercent       float64      `json:"risk_change_percent"`
	BiodiversityIndex       float64      `json:"biodiversity_index"`
	Trajectories            []Trajectory `json:"trajectories"`
}

// Trajectory is the population of one species before and after the
// intervention.
type Trajectory struct {
	Species string  `json:"species"`
	Before  float64 `json:"before"`
	After   float64 `json:"after"`
}

// Scenario is a saved simulation result.
type Scenario struct {
	ID                 int             `json:"id"`
	Name               string          `json:"name"`
	SimulationID       int             `json:"simulation_id"`
	SavedAt            string          `json:"saved_at"`
	EcosystemConfig    json.RawMessage `json:"ecosystem_config,omitempty"`
	InterventionConfig json.RawMessage `json:"intervention_config,omitempty"`
	Results            json.RawMessage `json:"results,omitempty"`
}
