// Package chattest provides an in-process stand-in for the chat backend: a
// websocket endpoint that records every event a client emits and can push
// events back, plus a multipart upload endpoint with a scripted reply.
package chattest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"roomchat/internal/protocol"
)

const (
	SocketPath = "/socket"
	UploadPath = "/upload"

	waitTimeout = 2 * time.Second
)

// Upload is what the fake endpoint received.
type Upload struct {
	Filename    string
	ContentType string
	Room        string
	Content     []byte
}

// Server is a fake chat backend bound to a loopback port.
type Server struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu          sync.Mutex
	conns       []*websocket.Conn
	uploadCode  int
	uploadReply string

	connected chan string
	received  chan protocol.Envelope
	uploads   chan Upload
}

// NewServer starts a fake backend that is shut down with the test.
func NewServer(t testing.TB) *Server {
	t.Helper()
	server := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		uploadCode:  http.StatusOK,
		uploadReply: `{}`,
		connected:   make(chan string, 16),
		received:    make(chan protocol.Envelope, 256),
		uploads:     make(chan Upload, 16),
	}
	router := chi.NewRouter()
	router.Get(SocketPath, server.serveWS)
	router.Post(UploadPath, server.serveUpload)
	server.Server = httptest.NewServer(router)
	t.Cleanup(server.shutdown)
	return server
}

// SocketURL is the ws:// address of the socket endpoint.
func (s *Server) SocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + SocketPath
}

// UploadURL is the http:// address of the upload endpoint.
func (s *Server) UploadURL() string {
	return s.URL + UploadPath
}

// ReplyToUploads scripts the status and JSON body of every following upload.
func (s *Server) ReplyToUploads(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadCode = status
	s.uploadReply = body
}

// WaitForClient blocks until a client connects and returns its "user" query value.
func (s *Server) WaitForClient(t testing.TB) string {
	t.Helper()
	select {
	case user := <-s.connected:
		return user
	case <-time.After(waitTimeout):
		t.Fatal("no client connected")
		return ""
	}
}

// NextEvent returns the next event emitted by any client.
func (s *Server) NextEvent(t testing.TB) protocol.Envelope {
	t.Helper()
	select {
	case envelope := <-s.received:
		return envelope
	case <-time.After(waitTimeout):
		t.Fatal("no event received")
		return protocol.Envelope{}
	}
}

// NextUpload returns the next upload posted to the fake endpoint.
func (s *Server) NextUpload(t testing.TB) Upload {
	t.Helper()
	select {
	case upload := <-s.uploads:
		return upload
	case <-time.After(waitTimeout):
		t.Fatal("no upload received")
		return Upload{}
	}
}

// Push sends an event to every connected client.
func (s *Server) Push(t testing.TB, event protocol.Event, payload any) {
	t.Helper()
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", event, err)
	}
	s.PushRaw(t, frame)
}

// PushRaw sends frame as-is, for malformed-input tests.
func (s *Server) PushRaw(t testing.TB, frame []byte) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(waitTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
}

// DropClients closes every client connection without a close frame.
func (s *Server) DropClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
	s.connected <- r.URL.Query().Get("user")

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		envelope, err := protocol.Decode(frame)
		if err != nil {
			continue
		}
		s.received <- envelope
	}
}

func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"error":"bad multipart body"}`)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, `{"error":"no file provided"}`)
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)
	s.uploads <- Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Room:        r.FormValue("room"),
		Content:     content,
	}

	s.mu.Lock()
	code, reply := s.uploadCode, s.uploadReply
	s.mu.Unlock()
	writeJSON(w, code, reply)
}

func (s *Server) shutdown() {
	s.DropClients()
	s.Server.Close()
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
