package channel_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relayhub/fanout-gateway/internal/channel"
	"github.com/relayhub/fanout-gateway/internal/domain"
)

func TestTelegramSender_SendMessage(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer srv.Close()

	s := channel.NewTelegramSender(srv.URL, "test-token", time.Second)
	id, err := s.Send(context.Background(), channel.Outbound{Recipient: "123", Body: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "42" {
		t.Fatalf("expected provider id 42, got %q", id)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotPayload["chat_id"] != "123" || gotPayload["text"] != "hello" {
		t.Fatalf("unexpected payload: %v", gotPayload)
	}
}

// An attached image switches the method to sendPhoto with a caption.
func TestTelegramSender_SendPhoto(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer srv.Close()

	s := channel.NewTelegramSender(srv.URL, "tok", time.Second)
	_, err := s.Send(context.Background(), channel.Outbound{
		Recipient: "123",
		Body:      "caption here",
		ImageURL:  "https://example.com/a.png",
		Buttons:   [][]domain.Button{{{Text: "Open", URL: "https://example.com"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/bottok/sendPhoto" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotPayload["photo"] != "https://example.com/a.png" || gotPayload["caption"] != "caption here" {
		t.Fatalf("unexpected payload: %v", gotPayload)
	}
	if _, ok := gotPayload["reply_markup"]; !ok {
		t.Fatal("expected reply_markup with the inline keyboard")
	}
}

func TestTelegramSender_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"bot was blocked by the user"}`))
	}))
	defer srv.Close()

	s := channel.NewTelegramSender(srv.URL, "tok", time.Second)
	_, err := s.Send(context.Background(), channel.Outbound{Recipient: "123", Body: "x"})

	var se *channel.SendError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SendError, got %v", err)
	}
	if se.Code != channel.CodeAPIError {
		t.Fatalf("expected api_error, got %s", se.Code)
	}
}

func TestTelegramSender_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	s := channel.NewTelegramSender(srv.URL, "tok", time.Second)
	_, err := s.Send(context.Background(), channel.Outbound{Recipient: "123", Body: "x"})

	var se *channel.SendError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SendError, got %v", err)
	}
	if se.Code != channel.CodeTransport {
		t.Fatalf("expected transport_error, got %s", se.Code)
	}
}
