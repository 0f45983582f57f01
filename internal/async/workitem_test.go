package async

import "testing"

func TestDecodeWorkItemValid(t *testing.T) {
	body, err := EncodeWorkItem(WorkItem{ChatID: 42, FileID: "file-abc", IdempotencyKey: "42-1001"})
	if err != nil {
		t.Fatalf("EncodeWorkItem: %v", err)
	}

	item, err := DecodeWorkItem(body)
	if err != nil {
		t.Fatalf("DecodeWorkItem: %v", err)
	}
	want := WorkItem{ChatID: 42, FileID: "file-abc", IdempotencyKey: "42-1001"}
	if item != want {
		t.Fatalf("item = %+v, want %+v", item, want)
	}
}

func TestDecodeWorkItemRejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"chat_id": 42,`},
		{"missing file_id", `{"chat_id": 42, "idempotency_key": "42-1"}`},
		{"missing idempotency_key", `{"chat_id": 42, "file_id": "f"}`},
		{"empty file_id", `{"chat_id": 42, "file_id": "", "idempotency_key": "42-1"}`},
		{"chat_id as string", `{"chat_id": "42", "file_id": "f", "idempotency_key": "42-1"}`},
		{"unknown field", `{"chat_id": 42, "file_id": "f", "idempotency_key": "42-1", "extra": true}`},
		{"json array", `[1, 2, 3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeWorkItem([]byte(tt.body)); err == nil {
				t.Fatalf("DecodeWorkItem(%s) succeeded, want error", tt.body)
			}
		})
	}
}

func TestDecodeWorkItemLargeChatID(t *testing.T) {
	// Telegram supergroup IDs exceed int32; the schema must accept them.
	item, err := DecodeWorkItem([]byte(`{"chat_id": -1001234567890, "file_id": "f", "idempotency_key": "k"}`))
	if err != nil {
		t.Fatalf("DecodeWorkItem: %v", err)
	}
	if item.ChatID != -1001234567890 {
		t.Fatalf("ChatID = %d, want -1001234567890", item.ChatID)
	}
}
