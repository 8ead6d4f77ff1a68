package reconcile

import (
	"context"
	"testing"
)

func TestStamp_KeepsExistingTimestamp(t *testing.T) {
	e := UnsettledAction{Timestamp: "2026-01-01T00:00:00Z"}
	stamp(&e)
	if e.Timestamp != "2026-01-01T00:00:00Z" {
		t.Errorf("timestamp overwritten: %s", e.Timestamp)
	}

	var empty UnsettledAction
	stamp(&empty)
	if empty.Timestamp == "" {
		t.Error("expected timestamp to be set")
	}
}

func TestLogPublisher(t *testing.T) {
	var p Publisher = LogPublisher{}
	if err := p.PublishUnsettled(context.Background(), UnsettledAction{TeamID: "t1", ActionType: "image_generation", Reason: "conflict"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
