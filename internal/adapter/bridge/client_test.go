package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get(TokenHeader) != "secret" {
			t.Errorf("expected token header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"version":"1.0"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "secret").Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp["version"] != "1.0" {
		t.Errorf("unexpected response %v", resp)
	}
}

func TestClient_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "").Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp["raw"] != "pong" {
		t.Errorf("expected raw body, got %v", resp)
	}
}

func TestClient_Errors(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "bad")

	if _, err := c.Tag(context.Background(), TagRequest{ItemKey: "K"}); !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
	status = http.StatusInternalServerError
	if _, err := c.Note(context.Background(), NoteRequest{ItemKey: "K", Content: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	srv.Close()
	if _, err := c.Health(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for closed server, got %v", err)
	}
}

func TestClient_TagAndNotePayloads(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = nil
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "t")
	ctx := context.Background()

	if _, err := c.Tag(ctx, TagRequest{ItemKey: "K", Add: []string{"read"}}); err != nil {
		t.Fatal(err)
	}
	if got["itemKey"] != "K" {
		t.Errorf("unexpected payload %v", got)
	}
	if remove, ok := got["remove"].([]any); !ok || len(remove) != 0 {
		t.Errorf("remove should be an empty list, got %v", got["remove"])
	}
	if _, ok := got["batchId"]; ok {
		t.Error("empty batch id should be omitted")
	}

	if _, err := c.Note(ctx, NoteRequest{ItemKey: "K", Content: "<p>hi</p>"}); err != nil {
		t.Fatal(err)
	}
	if got["mode"] != "upsert" {
		t.Errorf("expected default mode upsert, got %v", got["mode"])
	}
}

func TestClient_Init(t *testing.T) {
	accept := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["token"] != "new-token" {
			t.Errorf("unexpected body %v", body)
		}
		if r.Header.Get(TokenHeader) != "" {
			t.Error("init must not send the token header")
		}
		if !accept {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "old")

	ok, err := c.Init(context.Background(), "new-token")
	if err != nil || !ok {
		t.Errorf("expected accepted token, got %v, %v", ok, err)
	}
	accept = false
	ok, err = c.Init(context.Background(), "new-token")
	if err != nil || ok {
		t.Errorf("expected rejection without error, got %v, %v", ok, err)
	}
}

func TestClient_InitTruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", "64")
		w.Write([]byte(`{"ok":`))
	}))
	defer srv.Close()

	ok, err := NewClient(srv.URL, "").Init(context.Background(), "tok")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for a cut-off response, got %v", err)
	}
	if ok {
		t.Error("a token must not be reported as accepted when the reply was lost")
	}
}
