package progress

import (
	"errors"
	"sync"
	"testing"

	"bim-index-api/internal/logs"

	"go.uber.org/zap"
)

type fakeAudit struct {
	mu      sync.Mutex
	Entries []logs.SystemLog
	Err     error
	Panic   bool
}

func (f *fakeAudit) Log(entry logs.SystemLog, metadata interface{}) error {
	if f.Panic {
		panic("audit down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Entries = append(f.Entries, entry)
	return f.Err
}

func TestFanout_PersistsTerminalAndWarnings(t *testing.T) {
	b := NewBroker(16)
	ch, cancel := b.Subscribe("P1-T1-ARCH")
	defer cancel()

	audit := &fakeAudit{}
	f := NewFanout(b, audit, zap.NewNop())

	for _, s := range []string{StatusStarting, StatusRunning, "extract-start", StatusWarning, StatusComplete} {
		f.Publish(Event{Topic: "P1-T1-ARCH", Status: s, Message: s})
	}
	f.Wait()

	if len(ch) != 5 {
		t.Fatalf("broker got %d events want 5", len(ch))
	}
	if len(audit.Entries) != 2 {
		t.Fatalf("persisted %d entries want 2", len(audit.Entries))
	}

	levels := map[string]string{}
	for _, e := range audit.Entries {
		levels[e.Action] = e.Level
		if e.Model == nil || *e.Model != "P1-T1-ARCH" || e.Service != "ingest" {
			t.Fatalf("unexpected entry: %#v", e)
		}
	}
	if levels[StatusWarning] != logs.LevelWarning || levels[StatusComplete] != logs.LevelInfo {
		t.Fatalf("levels=%v", levels)
	}
}

func TestFanout_AuditFailuresAreSwallowed(t *testing.T) {
	tests := []struct {
		name  string
		audit *fakeAudit
	}{
		{"error", &fakeAudit{Err: errors.New("db down")}},
		{"panic", &fakeAudit{Panic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFanout(NewBroker(1), tt.audit, zap.NewNop())
			f.Publish(Event{Topic: "m", Status: StatusError, Message: "boom"})
			f.Wait()
		})
	}
}

func TestFanout_NilParts(t *testing.T) {
	f := &Fanout{}
	f.Publish(Event{Topic: "m", Status: StatusComplete})
	f.Wait()
}
