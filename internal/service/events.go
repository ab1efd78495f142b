package service

import "encoding/json"

// Event types emitted by Pipeline.Stream.
const (
	EventStart        = "start"
	EventAgent        = "agent"
	EventSummaryStart = "summary_start"
	EventSummaryChunk = "summary_chunk"
	EventComplete     = "complete"
	EventError        = "error"
)

// Agent statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
)

// Agent display names.
const (
	AgentManager    = "Manager"
	AgentResearch   = "Research"
	AgentValidation = "Validation"
	AgentSummary    = "Summary"
)

// Event is one progress notification of a streamed run.
type Event struct {
	Type        string
	Agent       string
	Status      string
	Message     string
	Content     string
	FinalAnswer string
	Logs        []string
}

// MarshalJSON writes only the fields that belong to the event type, so a
// complete event always carries final_answer and logs even when empty.
func (e Event) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": e.Type}
	switch e.Type {
	case EventAgent:
		out["agent"] = e.Agent
		out["status"] = e.Status
		if e.Message != "" {
			out["message"] = e.Message
		}
	case EventSummaryChunk:
		out["content"] = e.Content
	case EventComplete:
		logs := e.Logs
		if logs == nil {
			logs = []string{}
		}
		out["final_answer"] = e.FinalAnswer
		out["logs"] = logs
	case EventStart, EventError:
		out["message"] = e.Message
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON; clients use it to read frames.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string   `json:"type"`
		Agent       string   `json:"agent"`
		Status      string   `json:"status"`
		Message     string   `json:"message"`
		Content     string   `json:"content"`
		FinalAnswer string   `json:"final_answer"`
		Logs        []string `json:"logs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Event(raw)
	return nil
}
