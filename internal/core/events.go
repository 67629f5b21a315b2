package core

import "encoding/json"

// Event names pushed by the backend over the realtime channel.
const (
	EventSimProgress  = "sim_progress"
	EventSimCompleted = "sim_completed"
	EventEdgeStatus   = "edge_status"
)

// Event is one frame received on the realtime channel. The channel is not
// partitioned per job; subscribers filter on the decoded payload.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// ProgressEvent is the payload of sim_progress.
type ProgressEvent struct {
	SimulationID int    `json:"simulation_id"`
	Phase        string `json:"phase"`
	Progress     int    `json:"progress"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// CompletedEvent is the payload of sim_completed.
type CompletedEvent struct {
	SimulationID int             `json:"simulation_id"`
	Results      json.RawMessage `json:"results"`
	Timestamp    string          `json:"timestamp,omitempty"`
}

// SimulationID extracts the simulation_id of a sim_* payload.
// ok is false when the payload carries none.
func (e *Event) SimulationID() (id int, ok bool) {
	var probe struct {
		SimulationID *int `json:"simulation_id"`
	}
	if err := json.Unmarshal(e.Data, &probe); err != nil || probe.SimulationID == nil {
		return 0, false
	}
	return *probe.SimulationID, true
}

// EventPublisher publishes realtime events to interested subscribers.
type EventPublisher interface {
	Publish(event *Event) error
	Close() error
}

// EventSubscriber hands out filtered event streams.
type EventSubscriber interface {
	// SubscribeSimulation subscribes to sim_* events for one simulation.
	SubscribeSimulation(id int) (<-chan *Event, func(), error)
	// SubscribeAll subscribes to every event.
	SubscribeAll() (<-chan *Event, func(), error)
}
