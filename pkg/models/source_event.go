package models

import "time"

// SourceEvent is an inbound occurrence the trigger matcher inspects: a typed
// domain event, a messenger message, a webhook delivery or an explicit manual
// trigger call. Schedule firings never arrive here; they are owned by the
// scheduler.
type SourceEvent struct {
	ID          string         `json:"id"`
	TriggerType TriggerType    `json:"trigger_type"`
	EventType   string         `json:"event_type,omitempty"`  // event: candidate_created, stage_changed, ...
	ChannelID   string         `json:"channel_id,omitempty"`  // message: optional channel scope
	Text        string         `json:"text,omitempty"`        // message: body for keyword matching
	WebhookID   string         `json:"webhook_id,omitempty"`  // webhook: public endpoint id
	WorkflowID  string         `json:"workflow_id,omitempty"` // manual: explicit definition id
	Data        map[string]any `json:"data,omitempty"`        // Raw payload, becomes the run's trigger data
	ReceivedAt  time.Time      `json:"received_at"`
}
