// Package logging also provides an audit trail: structured, append-only
// NDJSON events for security- and durability-sensitive operations (vault
// access, fact writes, WAL replay, graph link creation).
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType identifies the kind of audited operation.
type AuditEventType string

const (
	AuditCredentialGet    AuditEventType = "credential_get"
	AuditCredentialPut    AuditEventType = "credential_put"
	AuditCredentialDelete AuditEventType = "credential_delete"
	AuditCredentialList   AuditEventType = "credential_list"
	AuditVaultUnlock      AuditEventType = "vault_unlock"
	AuditVaultWrongKey    AuditEventType = "vault_wrong_key"

	AuditFactStore     AuditEventType = "fact_store"
	AuditFactSupersede AuditEventType = "fact_supersede"
	AuditFactPrune     AuditEventType = "fact_prune"
	AuditFactReinforce AuditEventType = "fact_reinforce"
	AuditFactPromote   AuditEventType = "fact_promote"

	AuditWALAppend  AuditEventType = "wal_append"
	AuditWALReplay  AuditEventType = "wal_replay"
	AuditWALCompact AuditEventType = "wal_compact"

	AuditGraphLink      AuditEventType = "graph_link"
	AuditGraphStrengthen AuditEventType = "graph_strengthen"

	AuditProcedureStore     AuditEventType = "procedure_store"
	AuditProcedureReinforce AuditEventType = "procedure_reinforce"

	AuditRetrievalRecall AuditEventType = "retrieval_recall"
	AuditClassifyDecide  AuditEventType = "classify_decide"
	AuditLifecycleRun    AuditEventType = "lifecycle_run"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`
	EventType  AuditEventType         `json:"event"`
	SessionID  string                 `json:"session,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// InitAudit opens (or creates) today's audit log under the memory root's
// logs directory. A no-op when debug mode is disabled.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// AuditLogger is a session-scoped handle onto the audit trail.
type AuditLogger struct {
	sessionID string
}

// AuditWithSession scopes subsequent audit entries to a session id.
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// Log writes one audit event as an NDJSON line.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" {
		event.SessionID = a.sessionID
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// CredentialAccess logs a vault read/write/delete/list.
func (a *AuditLogger) CredentialAccess(eventType AuditEventType, key string, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: eventType,
		Target:    key,
		Success:   success,
		Error:     errMsg,
		Message:   fmt.Sprintf("%s: %s (success=%v)", eventType, key, success),
	})
}

// FactWrite logs a fact-store mutation (store/supersede/reinforce/promote).
func (a *AuditLogger) FactWrite(eventType AuditEventType, factID string, durationMs int64, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType:  eventType,
		Target:     factID,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("%s: fact=%s (%dms, success=%v)", eventType, factID, durationMs, success),
	})
}

// WALOp logs an append, replay, or compaction of the write-ahead log.
func (a *AuditLogger) WALOp(eventType AuditEventType, recordCount int, durationMs int64, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType:  eventType,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Fields:     map[string]interface{}{"record_count": recordCount},
		Message:    fmt.Sprintf("%s: %d records (%dms, success=%v)", eventType, recordCount, durationMs, success),
	})
}

// GraphLink logs a fact-link creation or strengthening.
func (a *AuditLogger) GraphLink(eventType AuditEventType, fromID, toID string, weight float64) {
	a.Log(AuditEvent{
		EventType: eventType,
		Target:    fmt.Sprintf("%s->%s", fromID, toID),
		Success:   true,
		Fields:    map[string]interface{}{"weight": weight},
		Message:   fmt.Sprintf("%s: %s -> %s (weight=%.3f)", eventType, fromID, toID, weight),
	})
}

// RetrievalRecall logs a completed retrieval pipeline run.
func (a *AuditLogger) RetrievalRecall(candidateCount, packedCount int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditRetrievalRecall,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"candidates": candidateCount, "packed": packedCount},
		Message:    fmt.Sprintf("retrieval_recall: %d candidates -> %d packed (%dms)", candidateCount, packedCount, durationMs),
	})
}

// ClassifyDecision logs an LLM classifier verdict for a candidate fact.
func (a *AuditLogger) ClassifyDecision(candidate, verdict, targetID string) {
	a.Log(AuditEvent{
		EventType: AuditClassifyDecide,
		Target:    targetID,
		Success:   true,
		Fields:    map[string]interface{}{"verdict": verdict},
		Message:   fmt.Sprintf("classify_decide: %q -> %s (target=%s)", candidate, verdict, targetID),
	})
}

// LifecycleRun logs a completed scheduler task (prune, classify, compact).
func (a *AuditLogger) LifecycleRun(task string, affected int, durationMs int64, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType:  AuditLifecycleRun,
		Target:     task,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Fields:     map[string]interface{}{"affected": affected},
		Message:    fmt.Sprintf("lifecycle_run: %s affected=%d (%dms, success=%v)", task, affected, durationMs, success),
	})
}
