package models

import "time"

// HealingActionType classifies a remediation task.
type HealingActionType string

const (
	ActionRetryPayment    HealingActionType = "retry_payment"
	ActionSwitchConnector HealingActionType = "switch_connector"
	ActionUpdateRouting   HealingActionType = "update_routing"
	ActionClearCache      HealingActionType = "clear_cache"
	ActionRestartService  HealingActionType = "restart_service"
	ActionScaleResources  HealingActionType = "scale_resources"
)

// ActionStatus tracks a healing action's lifecycle.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionSuccess    ActionStatus = "success"
	ActionFailed     ActionStatus = "failed"
	ActionRolledBack ActionStatus = "rolled_back"
)

// HealingAction is a remediation task. It lives in the active set while in
// flight and moves to bounded history on completion.
type HealingAction struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	ActionType     HealingActionType `json:"action_type"`
	Target         string            `json:"target"`
	Status         ActionStatus      `json:"status"`
	ResultMessage  string            `json:"result_message,omitempty"`
	RecoveryTimeMs *uint64           `json:"recovery_time_ms,omitempty"`
}

// HealingStatistics is a snapshot of self-healing activity.
type HealingStatistics struct {
	ActiveActions     int     `json:"active_actions"`
	TotalActions      int     `json:"total_actions"`
	SuccessfulActions int     `json:"successful_actions"`
	FailedActions     int     `json:"failed_actions"`
	AvgRecoveryTimeMs float64 `json:"avg_recovery_time_ms"`
	TrackedConnectors int     `json:"tracked_connectors"`
	FailedConnectors  int     `json:"failed_connectors"`
}
