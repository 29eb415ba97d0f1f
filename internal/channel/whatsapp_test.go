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
)

func TestWhatsAppSender_SendText(t *testing.T) {
	var gotPath, gotKey string
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"key":{"id":"WAMID.1"}}`))
	}))
	defer srv.Close()

	s := channel.NewWhatsAppSender(srv.URL, "secret", "main", time.Second)
	id, err := s.Send(context.Background(), channel.Outbound{Recipient: "5511999990000", Body: "oi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "WAMID.1" {
		t.Fatalf("expected provider id WAMID.1, got %q", id)
	}
	if gotPath != "/message/sendText/main" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotKey != "secret" {
		t.Fatalf("expected apikey header, got %q", gotKey)
	}
	if gotPayload["number"] != "5511999990000" || gotPayload["text"] != "oi" {
		t.Fatalf("unexpected payload: %v", gotPayload)
	}
}

func TestWhatsAppSender_SendMediaPath(t *testing.T) {
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"key":{"id":"WAMID.2"}}`))
	}))
	defer srv.Close()

	s := channel.NewWhatsAppSender(srv.URL, "k", "main", time.Second)
	_, err := s.Send(context.Background(), channel.Outbound{
		Recipient: "5511999990000",
		Body:      "caption",
		ImageURL:  "https://example.com/a.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/message/sendMedia/main" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}

func TestWhatsAppSender_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := channel.NewWhatsAppSender(srv.URL, "k", "main", time.Second)
	_, err := s.Send(context.Background(), channel.Outbound{Recipient: "55", Body: "x"})

	var se *channel.SendError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SendError, got %v", err)
	}
	if se.Code != channel.CodeBadStatus {
		t.Fatalf("expected bad_status, got %s", se.Code)
	}
}

// A 2xx with an undecodable body still counts as delivered.
func TestWhatsAppSender_UndecodableBodyIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	s := channel.NewWhatsAppSender(srv.URL, "k", "main", time.Second)
	id, err := s.Send(context.Background(), channel.Outbound{Recipient: "55", Body: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty provider id, got %q", id)
	}
}
