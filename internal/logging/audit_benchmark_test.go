package logging

import (
	"encoding/json"
	"testing"
)

func BenchmarkAuditEventMarshal(b *testing.B) {
	event := AuditEvent{
		Timestamp: 1700000000000,
		EventType: AuditFactStore,
		SessionID: "session-1",
		Target:    "fact-123",
		Success:   true,
		Fields:    map[string]interface{}{"category": "preference", "importance": 0.8},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := json.Marshal(event); err != nil {
			b.Fatalf("marshal failed: %v", err)
		}
	}
}
