package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hanko-field/commerce/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "trace-1"})
	rr := httptest.NewRecorder()

	WriteError(ctx, rr, NewError("order_invalid_state", "order cannot be\ncompleted", http.StatusConflict).
		WithDetails(map[string]any{"order_id": "ord_1"}))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "order_invalid_state" || body["trace_id"] != "trace-1" || body["order_id"] != "ord_1" {
		t.Fatalf("unexpected body %v", body)
	}
	if strings.Contains(body["message"].(string), "\n") {
		t.Fatalf("expected newline to be stripped from message")
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":1,"extra":true}`))
	var dst struct {
		Quantity int `json:"quantity"`
	}
	if err := DecodeJSON(req, &dst, 0); err == nil {
		t.Fatalf("expected unknown field error")
	}
}
