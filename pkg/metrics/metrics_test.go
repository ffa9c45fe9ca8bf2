package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mextdomen/mextdomen/pkg/events"
)

func TestLDAPRecorder(t *testing.T) {
	m := New()
	l := m.LDAP()

	l.RecordConnectionAccepted()
	l.RecordConnectionAccepted()
	l.SetActiveConnections(2)
	l.RecordBind(true)
	l.RecordBind(false)
	l.RecordSearch(3)

	if got := testutil.ToFloat64(l.connectionsTotal); got != 2 {
		t.Errorf("connections total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(l.activeConnections); got != 2 {
		t.Errorf("active connections = %v, want 2", got)
	}
	if got := testutil.ToFloat64(l.binds.WithLabelValues("success")); got != 1 {
		t.Errorf("successful binds = %v, want 1", got)
	}
	if got := testutil.ToFloat64(l.binds.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed binds = %v, want 1", got)
	}
	if got := testutil.ToFloat64(l.searchesTotal); got != 1 {
		t.Errorf("searches = %v, want 1", got)
	}
}

func TestConsumeCountsMutations(t *testing.T) {
	m := New()

	ch := make(chan events.AuditEvent, 3)
	ch <- events.AuditEvent{Action: "create_user"}
	ch <- events.AuditEvent{Action: "create_user"}
	ch <- events.AuditEvent{Action: "delete_group"}
	close(ch)

	m.Consume(ch)

	if got := testutil.ToFloat64(m.DirectoryMutations.WithLabelValues("create_user")); got != 2 {
		t.Errorf("create_user = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DirectoryMutations.WithLabelValues("delete_group")); got != 1 {
		t.Errorf("delete_group = %v, want 1", got)
	}
}

func TestObserveFlush(t *testing.T) {
	m := New()
	m.ObserveFlush(5 * time.Millisecond)

	count, err := testutil.GatherAndCount(m.Registry(), "mextdomen_db_flush_duration_milliseconds")
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if count != 1 {
		t.Errorf("metric families = %d, want 1", count)
	}
}
