package serve

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestEventStreamBroadcasts(t *testing.T) {
	es := NewEventStream()
	srv := httptest.NewServer(NewRouter(Options{Events: es}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for es.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conf := 33.5
	if err := es.Login(4, &conf); err != nil {
		t.Fatal(err)
	}
	if err := es.Logout(4); err != nil {
		t.Fatal(err)
	}

	want := []string{
		`{"login":{"user":4,"confidence":"33.5"}}`,
		`{"logout":{"user":4}}`,
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i, w := range want {
		_, b, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if string(b) != w {
			t.Errorf("Message %d = %s, want %s", i, b, w)
		}
	}
}

func TestEventStreamWithoutClients(t *testing.T) {
	es := NewEventStream()
	if err := es.Login(1, nil); err != nil {
		t.Errorf("Login without clients = %v", err)
	}
}

func TestPreviewStreamsFrames(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 1, 2, 3, 0xFF, 0xD9}
	p := &Preview{
		Snapshot: func() ([]byte, error) { return frame, nil },
		FPS:      50,
	}
	srv := httptest.NewServer(NewRouter(Options{Preview: p}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/preview", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "multipart/x-mixed-replace;boundary="+boundaryWord {
		t.Errorf("Content-Type = %q", ct)
	}
	r := bufio.NewReader(resp.Body)
	var headers []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" && len(headers) > 0 {
			break
		}
		if line != "" {
			headers = append(headers, line)
		}
	}
	if headers[0] != "--"+boundaryWord {
		t.Errorf("Expected boundary, got %q", headers[0])
	}
	if headers[2] != "Content-Length: 7" {
		t.Errorf("Expected content length header, got %q", headers[2])
	}
	body := make([]byte, len(frame))
	if _, err := io.ReadFull(r, body); err != nil {
		t.Fatal(err)
	}
	if string(body) != string(frame) {
		t.Errorf("Body = %x, want %x", body, frame)
	}
}

func TestPreviewSnapshotError(t *testing.T) {
	p := &Preview{Snapshot: func() ([]byte, error) { return nil, errors.New("stopped") }}
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview", nil))
	if rec.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %q", rec.Body.String())
	}
}

func TestMetricsAndHealth(t *testing.T) {
	srv := httptest.NewServer(NewRouter(Options{}))
	defer srv.Close()

	for _, path := range []string{"/metrics", "/healthz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}
	resp, err := http.Get(srv.URL + "/preview")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Unmounted preview = %d, want 404", resp.StatusCode)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, "127.0.0.1:0", NewRouter(Options{})) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Server did not stop")
	}
}
