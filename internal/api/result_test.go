package api

import (
	"errors"
	"testing"
)

func TestDecodeResult(t *testing.T) {
	type payload struct {
		StartedAt string `json:"started_at"`
	}
	tests := []struct {
		name    string
		body    string
		wantOk  bool
		wantMsg string
	}{
		{"ok", `{"ok":true,"started_at":"x"}`, true, ""},
		{"explicit failure", `{"ok":false,"error":"boom"}`, false, "boom"},
		{"failure without message", `{"ok":false}`, false, "request rejected"},
		{"missing marker", `{"started_at":"x"}`, false, "response is missing the ok marker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := decodeResult[payload]([]byte(tt.body))
			if r.IsOk() != tt.wantOk {
				t.Fatalf("IsOk = %v, want %v", r.IsOk(), tt.wantOk)
			}
			if r.Message() != tt.wantMsg {
				t.Errorf("Message = %q, want %q", r.Message(), tt.wantMsg)
			}
			if tt.wantOk && r.Value().StartedAt != "x" {
				t.Errorf("Value = %+v", r.Value())
			}
		})
	}
}

func TestDecodeResult_Malformed(t *testing.T) {
	r := decodeResult[struct{}]([]byte(`not json`))
	if r.IsOk() {
		t.Fatal("expected failure for malformed body")
	}
	_, err := r.Unwrap("POST /x")
	var soft *SoftError
	if !errors.As(err, &soft) || soft.Op != "POST /x" {
		t.Fatalf("expected SoftError tagged with op, got %v", err)
	}
}
