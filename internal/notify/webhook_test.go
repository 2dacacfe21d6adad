package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookNotifier_PostsMessageAsJSON(t *testing.T) {
	var got Message
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, 2*time.Second)
	msg := Message{MerchantID: "merchant-1", Title: "Fatura diária gerada", Body: "R$ 12,50"}
	if err := notifier.Notify(context.Background(), msg); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("expected JSON content type, got %q", contentType)
	}
	if got != msg {
		t.Fatalf("payload mismatch: got %+v want %+v", got, msg)
	}
}

func TestWebhookNotifier_Non2xxIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, 2*time.Second)
	if err := notifier.Notify(context.Background(), Message{MerchantID: "merchant-1"}); err == nil {
		t.Fatalf("expected error on 502 response")
	}
}

func TestWebhookNotifier_EmptyURLIsAnError(t *testing.T) {
	notifier := NewWebhookNotifier("", time.Second)
	if err := notifier.Notify(context.Background(), Message{MerchantID: "merchant-1"}); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
