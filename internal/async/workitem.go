package async

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// workItemSchema is the queue-boundary contract for inbound message bodies.
// Producers outside this process (an SQS bridge, a replay tool) must satisfy
// it; anything that fails validation is dead-ended, never redelivered.
const workItemSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["chat_id", "file_id", "idempotency_key"],
  "properties": {
    "chat_id": {"type": "integer"},
    "file_id": {"type": "string", "minLength": 1},
    "idempotency_key": {"type": "string", "minLength": 1}
  },
  "additionalProperties": false
}`

var compiledWorkItemSchema = jsonschema.MustCompileString("workitem.json", workItemSchema)

// EncodeWorkItem serializes an item to its queue body form.
func EncodeWorkItem(item WorkItem) ([]byte, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode work item: %w", err)
	}
	return body, nil
}

// DecodeWorkItem validates a raw queue body against the schema and decodes it.
func DecodeWorkItem(body []byte) (WorkItem, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return WorkItem{}, fmt.Errorf("decode work item: %w", err)
	}
	if err := compiledWorkItemSchema.Validate(generic); err != nil {
		return WorkItem{}, fmt.Errorf("invalid work item: %w", err)
	}

	var item WorkItem
	if err := json.Unmarshal(body, &item); err != nil {
		return WorkItem{}, fmt.Errorf("decode work item: %w", err)
	}
	return item, nil
}
