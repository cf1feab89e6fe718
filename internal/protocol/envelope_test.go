package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestID_RoundTripPreservesStringVsNumber(t *testing.T) {
	cases := []ID{NewStringID("abc"), NewNumberID(42)}
	for _, id := range cases {
		data, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var got ID
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if !got.Equal(id) {
			t.Errorf("round trip of %+v produced %+v", id, got)
		}
	}
}

func TestID_Equal(t *testing.T) {
	if !NewStringID("a").Equal(NewStringID("a")) {
		t.Error("equal string ids should compare equal")
	}
	if NewStringID("a").Equal(NewNumberID(0)) {
		t.Error("a string id and a number id must never compare equal")
	}
	if NewNumberID(1).Equal(NewNumberID(2)) {
		t.Error("distinct number ids must not compare equal")
	}
}

func TestID_String(t *testing.T) {
	if NewStringID("x").String() != "x" {
		t.Error("string id should stringify to its own value")
	}
	if NewNumberID(7).String() != "7" {
		t.Error("number id should stringify to its decimal value")
	}
}

func TestNewRequest_RejectsEmptyMethod(t *testing.T) {
	if _, err := NewRequest(NewNumberID(1), "", nil); !errors.Is(err, ErrMissingMethod) {
		t.Errorf("expected ErrMissingMethod, got %v", err)
	}
}

func TestNewNotification_RejectsEmptyMethod(t *testing.T) {
	if _, err := NewNotification("", nil); !errors.Is(err, ErrMissingMethod) {
		t.Errorf("expected ErrMissingMethod, got %v", err)
	}
}

func TestDecodeResponse_RejectsBothResultAndError(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":-32603,"message":"boom"}}`)
	if _, err := DecodeResponse(raw); !errors.Is(err, ErrResultAndError) {
		t.Errorf("expected ErrResultAndError, got %v", err)
	}
}

func TestDecodeResponse_RejectsNeitherResultNorError(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":1}`)
	if _, err := DecodeResponse(raw); !errors.Is(err, ErrNeitherResultNorError) {
		t.Errorf("expected ErrNeitherResultNorError, got %v", err)
	}
}

func TestDecodeResponse_AcceptsResultOnly(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)
	resp, err := DecodeResponse(raw)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.IsError() {
		t.Error("response with only a result must not report IsError")
	}
}

func TestDecodeResponse_AcceptsErrorOnly(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"nope"}}`)
	resp, err := DecodeResponse(raw)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if !resp.IsError() {
		t.Error("response with an error object must report IsError")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}

func TestDecodeRequest_RejectsMissingMethod(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":1}`)
	if _, err := DecodeRequest(raw); !errors.Is(err, ErrMissingMethod) {
		t.Errorf("expected ErrMissingMethod, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want envelopeKind
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, KindRequest},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, KindNotification},
		{"response_result", `{"jsonrpc":"2.0","id":1,"result":{}}`, KindResponse},
		{"response_error", `{"jsonrpc":"2.0","id":1,"error":{"code":-1,"message":"x"}}`, KindResponse},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify([]byte(tc.raw))
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tc.want {
				t.Errorf("Classify(%s) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

func TestClassify_UnclassifiableIsError(t *testing.T) {
	if _, err := Classify([]byte(`{"jsonrpc":"2.0"}`)); err == nil {
		t.Error("expected an error for an envelope with neither method nor id/result/error")
	}
}

func TestNewRequest_MarshalsRawParamsVerbatim(t *testing.T) {
	raw := json.RawMessage(`{"name":"tool"}`)
	req, err := NewRequest(NewNumberID(1), "tools/call", raw)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if string(req.Params) != string(raw) {
		t.Errorf("Params = %s, want %s", req.Params, raw)
	}
}
