// Package admin implements the pipeline's operator control plane.
//
// Protocol: one JSON object per line, written to a Unix domain socket.
// A client writes a single request line and reads a single response
// line back; the connection is then closed.
//
// Commands (JSON request -> JSON response):
//
//	{"cmd":"switch_version","version":"n_minus_1"}
//	  -> Switches the active model to the requested generation.
//	  -> Response: {"ok":true,"version":"n_minus_1"}
//
//	{"cmd":"status"}
//	  -> Returns the active model and current buffer depths.
//	  -> Response: {"ok":true,"version":"4","model_name":"DEMO","buffer1_depth":3,"buffer2_depth":1}
//	     ("version" here is the model's ActiveVersion string, not the
//	     n/n_minus_1 name used by switch_version.)
//
//	{"cmd":"shutdown"}
//	  -> Requests a graceful pipeline shutdown (closes Buffer1; the
//	     cascade from there follows the same path as SIGINT/SIGTERM).
//	  -> Response: {"ok":true}
//
// Connections are served by a small fixed pool of worker goroutines
// reading off a bounded queue, rather than one goroutine per
// connection: this is an operator surface handling a handful of
// requests a minute, not a listener that needs to scale with load.
package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fraudpipeline/core/internal/domain"
)

const (
	// workerCount is the number of goroutines draining the connection
	// queue. Three concurrent operator commands is already more than
	// this socket will ever see at once; this just bounds it.
	workerCount = 3

	// queueDepth is how many accepted connections may sit waiting for
	// a free worker before new connections are refused outright.
	queueDepth = 8

	// maxRequestBytes bounds a single request line.
	maxRequestBytes = 8 * 1024

	// requestTimeout bounds the read+write of one request/response.
	requestTimeout = 15 * time.Second
)

// Controller is the interface the admin server drives. Implemented by
// the pipeline wiring layer.
type Controller interface {
	SwitchModelVersion(version domain.ModelVersion) error
	Status() Status
	Shutdown()
}

// Status is a point-in-time snapshot of pipeline health, returned by
// the "status" command.
type Status struct {
	ModelVersion string
	ModelName    string
	Buffer1Depth int
	Buffer2Depth int
}

// Request is the JSON structure for admin commands.
type Request struct {
	Cmd     string `json:"cmd"`
	Version string `json:"version,omitempty"`
}

// Response is the JSON structure for admin command responses.
type Response struct {
	OK           bool   `json:"ok"`
	Error        string `json:"error,omitempty"`
	Version      string `json:"version,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	Buffer1Depth int    `json:"buffer1_depth,omitempty"`
	Buffer2Depth int    `json:"buffer2_depth,omitempty"`
}

// Server is the admin Unix domain socket server.
type Server struct {
	socketPath string
	controller Controller
	log        *zap.Logger
	conns      chan net.Conn
}

// NewServer creates an admin Server. log may be nil.
func NewServer(socketPath string, controller Controller, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		socketPath: socketPath,
		controller: controller,
		log:        log,
		conns:      make(chan net.Conn, queueDepth),
	}
}

// ListenAndServe binds the admin socket, removing any stale socket
// file first, and runs until ctx is cancelled. A fixed pool of
// workers drains accepted connections from an internal queue; when
// the queue is full, new connections are rejected immediately rather
// than left to pile up in the kernel accept backlog.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("admin: remove stale socket %q: %w", s.socketPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("admin: mkdir %q: %w", filepath.Dir(s.socketPath), err)
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("admin: listen %q: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		lis.Close()
		return fmt.Errorf("admin: chmod %q: %w", s.socketPath, err)
	}

	s.log.Info("admin socket listening",
		zap.String("path", s.socketPath),
		zap.Int("workers", workerCount))

	var workers sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			s.drainQueue()
		}()
	}

	acceptDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	go func() {
		defer close(acceptDone)
		for {
			conn, err := lis.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					s.log.Error("admin: accept error", zap.Error(err))
					continue
				}
			}
			select {
			case s.conns <- conn:
			default:
				s.log.Warn("admin: connection queue full, rejecting")
				_ = conn.Close()
			}
		}
	}()

	<-acceptDone
	close(s.conns)
	workers.Wait()
	return nil
}

// drainQueue is a single worker's loop: pull one connection at a
// time off the queue, serve it, close it, repeat until the queue is
// closed.
func (s *Server) drainQueue() {
	for conn := range s.conns {
		s.handleConn(conn)
		_ = conn.Close()
	}
}

// handleConn reads one request line, routes it, and writes one
// response line back.
func (s *Server) handleConn(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(requestTimeout))

	reader := bufio.NewReader(io.LimitReader(conn, maxRequestBytes))
	line, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.log.Warn("admin: read error", zap.Error(err))
		return
	}
	if len(line) == 0 {
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.respond(conn, Response{OK: false, Error: "invalid JSON: " + err.Error()})
		return
	}

	s.respond(conn, s.route(req))
}

// route maps a request's command name to its handler.
func (s *Server) route(req Request) Response {
	switch req.Cmd {
	case "switch_version":
		return s.cmdSwitchVersion(req)
	case "status":
		return s.cmdStatus()
	case "shutdown":
		return s.cmdShutdown()
	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
}

func (s *Server) cmdSwitchVersion(req Request) Response {
	version, err := parseVersion(req.Version)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	if err := s.controller.SwitchModelVersion(version); err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	s.log.Info("admin: model version switched", zap.String("version", req.Version))
	return Response{OK: true, Version: req.Version}
}

func (s *Server) cmdStatus() Response {
	st := s.controller.Status()
	return Response{
		OK:           true,
		Version:      st.ModelVersion,
		ModelName:    st.ModelName,
		Buffer1Depth: st.Buffer1Depth,
		Buffer2Depth: st.Buffer2Depth,
	}
}

func (s *Server) cmdShutdown() Response {
	s.log.Info("admin: shutdown requested")
	s.controller.Shutdown()
	return Response{OK: true}
}

func (s *Server) respond(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

func parseVersion(name string) (domain.ModelVersion, error) {
	switch name {
	case "n":
		return domain.ModelVersionN, nil
	case "n_minus_1":
		return domain.ModelVersionNMinus1, nil
	default:
		return domain.ModelVersionN, fmt.Errorf("unknown version %q (valid: n, n_minus_1)", name)
	}
}
