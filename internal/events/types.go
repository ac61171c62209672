// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	ErrorOccurred       EventType = "ERROR_OCCURRED"
	ComputationFailed   EventType = "COMPUTATION_FAILED"
	RegimeClassified    EventType = "REGIME_CLASSIFIED"
	ScoresComputed      EventType = "SCORES_COMPUTED"
	RiskAssessed        EventType = "RISK_ASSESSED"
	TradeActionRecorded EventType = "TRADE_ACTION_RECORDED"
	TaskCompleted       EventType = "TASK_COMPLETED"
)
