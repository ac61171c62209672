package events

import (
	"encoding/json"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// ComputationFailedData describes a factor calculation that fell back to its
// neutral value because of an unexpected failure
type ComputationFailedData struct {
	Code   string `json:"code"`
	Factor string `json:"factor"`
	Error  string `json:"error"`
}

// EventType returns the event type for ComputationFailedData
func (d *ComputationFailedData) EventType() EventType {
	return ComputationFailed
}

// RegimeClassifiedData contains data for RegimeClassified events
type RegimeClassifiedData struct {
	Benchmark string `json:"benchmark"`
	Regime    string `json:"regime"`
	Rule      string `json:"rule"`
}

// EventType returns the event type for RegimeClassifiedData
func (d *RegimeClassifiedData) EventType() EventType {
	return RegimeClassified
}

// ScoresComputedData contains data for ScoresComputed events
type ScoresComputedData struct {
	Scored  int    `json:"scored"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	Regime  string `json:"regime"`
}

// EventType returns the event type for ScoresComputedData
func (d *ScoresComputedData) EventType() EventType {
	return ScoresComputed
}

// RiskAssessedData contains data for RiskAssessed events
type RiskAssessedData struct {
	Level  string  `json:"level"`
	Score  float64 `json:"score"`
	Failed bool    `json:"failed"`
}

// EventType returns the event type for RiskAssessedData
func (d *RiskAssessedData) EventType() EventType {
	return RiskAssessed
}

// TradeActionRecordedData contains data for TradeActionRecorded events
type TradeActionRecordedData struct {
	Bucket string `json:"bucket"`
	Code   string `json:"code"`
	Action string `json:"action"`
	RunID  string `json:"run_id"`
}

// EventType returns the event type for TradeActionRecordedData
func (d *TradeActionRecordedData) EventType() EventType {
	return TradeActionRecorded
}

// TaskCompletedData contains data for TaskCompleted events
type TaskCompletedData struct {
	Task     string  `json:"task"`
	Trigger  string  `json:"trigger"`
	Status   string  `json:"status"`
	Duration float64 `json:"duration_seconds"`
	Message  string  `json:"message,omitempty"`
}

// EventType returns the event type for TaskCompletedData
func (d *TaskCompletedData) EventType() EventType {
	return TaskCompleted
}

// convertMapToStruct converts a map[string]interface{} to a struct
func convertMapToStruct(m map[string]interface{}, v interface{}) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, v)
}

// convertEventDataToMap converts typed EventData to map[string]interface{}
func convertEventDataToMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil
	}

	return result
}
