package web

import (
	"encoding/json"
	"fmt"

	"github.com/flowhire/flowhire/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// triggerConfigSchemas validates the type-specific trigger config at save
// time, so a matcher never meets a webhook definition without a webhookId or
// a message definition without a keyword.
var triggerConfigSchemas = map[models.TriggerType]string{
	models.TriggerTypeEvent: `{
		"type": "object",
		"properties": {
			"eventType": {"type": "string", "minLength": 1}
		},
		"required": ["eventType"]
	}`,
	models.TriggerTypeMessage: `{
		"type": "object",
		"properties": {
			"keyword":   {"type": "string", "minLength": 1},
			"channelId": {"type": "string"}
		},
		"required": ["keyword"]
	}`,
	models.TriggerTypeWebhook: `{
		"type": "object",
		"properties": {
			"webhookId": {"type": "string", "minLength": 1}
		},
		"required": ["webhookId"]
	}`,
	models.TriggerTypeFormSubmission: `{
		"type": "object",
		"properties": {
			"formId": {"type": "string"}
		}
	}`,
	models.TriggerTypeSchedule: `{"type": "object"}`,
	models.TriggerTypeManual:   `{"type": "object"}`,
}

func validateTriggerConfig(triggerType models.TriggerType, config map[string]any) error {
	schema, ok := triggerConfigSchemas[triggerType]
	if !ok {
		return fmt.Errorf("unknown trigger type %q", triggerType)
	}

	if config == nil {
		config = map[string]any{}
	}

	document, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode trigger config: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return fmt.Errorf("trigger config validation failed: %w", err)
	}

	if !result.Valid() {
		return fmt.Errorf("invalid trigger config for %s: %s", triggerType, result.Errors()[0].String())
	}

	return nil
}
