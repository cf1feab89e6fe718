package events

import "testing"

func TestPhase_String(t *testing.T) {
	cases := map[Phase]string{
		PhaseIdle:       "idle",
		PhaseConnecting: "connecting",
		PhaseReady:      "ready",
		PhaseFailed:     "failed",
		Phase(999):      "unknown",
	}
	for phase, want := range cases {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}

func TestDirection_String(t *testing.T) {
	if DirectionInbound.String() != "inbound" {
		t.Error("DirectionInbound should stringify to inbound")
	}
	if DirectionOutbound.String() != "outbound" {
		t.Error("DirectionOutbound should stringify to outbound")
	}
}

func TestStatusChangedEvent_Fields(t *testing.T) {
	ev := NewStatusChangedEvent("srv-1", PhaseConnecting, PhaseReady)
	if ev.Type() != EventStatusChanged {
		t.Errorf("Type() = %v, want EventStatusChanged", ev.Type())
	}
	if ev.ServerID() != "srv-1" {
		t.Errorf("ServerID() = %q, want srv-1", ev.ServerID())
	}
	if ev.OldPhase != PhaseConnecting || ev.NewPhase != PhaseReady {
		t.Errorf("unexpected phases: old=%v new=%v", ev.OldPhase, ev.NewPhase)
	}
	if ev.Timestamp().IsZero() {
		t.Error("Timestamp() should be set")
	}
}

func TestMessageTraceEvent_Fields(t *testing.T) {
	ev := NewMessageTraceEvent("srv-1", DirectionOutbound, "tools/call", "1", []byte(`{}`))
	if ev.Type() != EventMessageTrace {
		t.Errorf("Type() = %v, want EventMessageTrace", ev.Type())
	}
	if ev.Direction != DirectionOutbound || ev.Method != "tools/call" || ev.ID != "1" {
		t.Errorf("unexpected fields: %+v", ev)
	}
}

func TestNotificationReceivedEvent_Fields(t *testing.T) {
	ev := NewNotificationReceivedEvent("srv-1", "notifications/progress", []byte(`{"pct":50}`))
	if ev.Type() != EventNotificationReceived {
		t.Errorf("Type() = %v, want EventNotificationReceived", ev.Type())
	}
	if ev.Method != "notifications/progress" {
		t.Errorf("Method = %q, want notifications/progress", ev.Method)
	}
}

func TestWarningEvent_Fields(t *testing.T) {
	ev := NewWarningEvent("srv-1", "server does not support tools/list")
	if ev.Type() != EventWarning {
		t.Errorf("Type() = %v, want EventWarning", ev.Type())
	}
	if ev.Message != "server does not support tools/list" {
		t.Errorf("Message = %q", ev.Message)
	}
}

func TestErrorEvent_Fields(t *testing.T) {
	cause := errCause{"boom"}
	ev := NewErrorEvent("srv-1", cause, "connect failed")
	if ev.Type() != EventError {
		t.Errorf("Type() = %v, want EventError", ev.Type())
	}
	if ev.Err != cause {
		t.Error("Err should be the cause passed to NewErrorEvent")
	}
}

type errCause struct{ msg string }

func (e errCause) Error() string { return e.msg }
