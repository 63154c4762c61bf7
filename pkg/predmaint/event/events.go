package event

import "time"

// Type discriminates envelope payload variants for subscriber lookup.
type Type string

// The closed set of domain event types. One tag per payload variant below.
const (
	TypeSensorDataReceived   Type = "sensor.data_received"
	TypeDataProcessed        Type = "sensor.data_processed"
	TypeAnomalyDetected      Type = "anomaly.detected"
	TypeMaintenancePredicted Type = "maintenance.predicted"
	TypeMaintenanceScheduled Type = "maintenance.scheduled"
	TypeDecisionRequested    Type = "decision.requested"
	TypeDecisionMade         Type = "decision.made"
	TypeNotificationSent     Type = "notification.sent"
	TypeModelDriftDetected   Type = "model.drift_detected"
	TypeReportGenerated      Type = "report.generated"
	TypeSimulationTick       Type = "simulation.tick"
)

// Payload is the sealed union of event payload variants. The set is closed:
// only types in this package implement it, so dispatch over event types is
// exhaustive-checkable.
type Payload interface {
	EventType() Type
	sealed()
}

// SensorDataReceived is a raw reading accepted from the ingestion boundary.
type SensorDataReceived struct {
	SensorID   string    `json:"sensor_id"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DataProcessed is a validated, normalized reading.
type DataProcessed struct {
	SensorID   string  `json:"sensor_id"`
	Value      float64 `json:"value"`
	Normalized float64 `json:"normalized"`
	Quality    string  `json:"quality"` // "good", "suspect"
}

// AnomalyDetected carries the evidence that a processed reading is anomalous.
type AnomalyDetected struct {
	SensorID string  `json:"sensor_id"`
	Value    float64 `json:"value"`
	Score    float64 `json:"score"`
	Rule     string  `json:"rule"`
	Severity string  `json:"severity"` // "warning", "critical"
}

// MaintenancePredicted is the output of the predictive capability for an
// anomalous component.
type MaintenancePredicted struct {
	SensorID    string  `json:"sensor_id"`
	Component   string  `json:"component"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
	HorizonDays int     `json:"horizon_days"`
}

// MaintenanceScheduled is a committed maintenance work order.
type MaintenanceScheduled struct {
	WorkOrderID string    `json:"work_order_id"`
	SensorID    string    `json:"sensor_id"`
	Component   string    `json:"component"`
	Technician  string    `json:"technician"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// DecisionRequested asks a human operator to approve or reject an action.
type DecisionRequested struct {
	DecisionID string   `json:"decision_id"`
	Subject    string   `json:"subject"`
	Reason     string   `json:"reason"`
	Options    []string `json:"options,omitempty"`
}

// DecisionMade records a human operator's resolution of a pending decision.
type DecisionMade struct {
	DecisionID string `json:"decision_id"`
	Approved   bool   `json:"approved"`
	DecidedBy  string `json:"decided_by"`
	Note       string `json:"note,omitempty"`
}

// NotificationSent is the terminal record of a delivered notification.
type NotificationSent struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
}

// ModelDriftDetected reports that observed data has drifted from the
// detection model's baseline.
type ModelDriftDetected struct {
	Model    string  `json:"model"`
	Metric   string  `json:"metric"`
	Baseline float64 `json:"baseline"`
	Observed float64 `json:"observed"`
}

// ReportGenerated summarizes pipeline activity over a period.
type ReportGenerated struct {
	ReportID     string `json:"report_id"`
	Period       string `json:"period"`
	EventCount   int    `json:"event_count"`
	AnomalyCount int    `json:"anomaly_count"`
}

// SimulationTick drives scheduled work (reports, drift checks) in tests and
// simulations.
type SimulationTick struct {
	Seq int `json:"seq"`
}

// EventType implementations. Keep in the same order as the constants.

func (SensorDataReceived) EventType() Type   { return TypeSensorDataReceived }
func (DataProcessed) EventType() Type        { return TypeDataProcessed }
func (AnomalyDetected) EventType() Type      { return TypeAnomalyDetected }
func (MaintenancePredicted) EventType() Type { return TypeMaintenancePredicted }
func (MaintenanceScheduled) EventType() Type { return TypeMaintenanceScheduled }
func (DecisionRequested) EventType() Type    { return TypeDecisionRequested }
func (DecisionMade) EventType() Type         { return TypeDecisionMade }
func (NotificationSent) EventType() Type     { return TypeNotificationSent }
func (ModelDriftDetected) EventType() Type   { return TypeModelDriftDetected }
func (ReportGenerated) EventType() Type      { return TypeReportGenerated }
func (SimulationTick) EventType() Type       { return TypeSimulationTick }

func (SensorDataReceived) sealed()   {}
func (DataProcessed) sealed()        {}
func (AnomalyDetected) sealed()      {}
func (MaintenancePredicted) sealed() {}
func (MaintenanceScheduled) sealed() {}
func (DecisionRequested) sealed()    {}
func (DecisionMade) sealed()         {}
func (NotificationSent) sealed()     {}
func (ModelDriftDetected) sealed()   {}
func (ReportGenerated) sealed()      {}
func (SimulationTick) sealed()       {}
