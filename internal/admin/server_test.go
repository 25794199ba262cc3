package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fraudpipeline/core/internal/domain"
)

type mockController struct {
	switched     domain.ModelVersion
	switchErr    error
	status       Status
	shutdownHit  bool
}

func (m *mockController) SwitchModelVersion(v domain.ModelVersion) error {
	if m.switchErr != nil {
		return m.switchErr
	}
	m.switched = v
	return nil
}

func (m *mockController) Status() Status { return m.status }

func (m *mockController) Shutdown() { m.shutdownHit = true }

func startTestServer(t *testing.T, ctrl Controller) (string, context.CancelFunc) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "admin.sock")
	srv := NewServer(sockPath, ctrl, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	go func() {
		go func() {
			for i := 0; i < 50; i++ {
				if _, err := os.Stat(sockPath); err == nil {
					close(ready)
					return
				}
				time.Sleep(10 * time.Millisecond)
			}
			close(ready)
		}()
		_ = srv.ListenAndServe(ctx)
	}()
	<-ready
	return sockPath, cancel
}

func roundTrip(t *testing.T, sockPath string, req Request) Response {
	t.Helper()
	conn, err := net.DialTimeout("unix", sockPath, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	data, _ := json.Marshal(req)
	if _, err := conn.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	var resp Response
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		t.Fatalf("no response: %v", scanner.Err())
	}
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestSwitchVersionDelegatesToController(t *testing.T) {
	ctrl := &mockController{}
	sock, cancel := startTestServer(t, ctrl)
	defer cancel()

	resp := roundTrip(t, sock, Request{Cmd: "switch_version", Version: "n_minus_1"})
	if !resp.OK || resp.Version != "n_minus_1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if ctrl.switched != domain.ModelVersionNMinus1 {
		t.Fatalf("controller not switched, got %v", ctrl.switched)
	}
}

func TestSwitchVersionRejectsUnknownVersion(t *testing.T) {
	ctrl := &mockController{}
	sock, cancel := startTestServer(t, ctrl)
	defer cancel()

	resp := roundTrip(t, sock, Request{Cmd: "switch_version", Version: "bogus"})
	if resp.OK {
		t.Fatalf("expected failure for unknown version")
	}
}

func TestStatusReportsControllerSnapshot(t *testing.T) {
	ctrl := &mockController{status: Status{ModelVersion: "n", ModelName: "DEMO", Buffer1Depth: 3, Buffer2Depth: 2}}
	sock, cancel := startTestServer(t, ctrl)
	defer cancel()

	resp := roundTrip(t, sock, Request{Cmd: "status"})
	if !resp.OK || resp.Version != "n" || resp.ModelName != "DEMO" || resp.Buffer1Depth != 3 || resp.Buffer2Depth != 2 {
		t.Fatalf("unexpected status response: %+v", resp)
	}
}

func TestShutdownInvokesController(t *testing.T) {
	ctrl := &mockController{}
	sock, cancel := startTestServer(t, ctrl)
	defer cancel()

	resp := roundTrip(t, sock, Request{Cmd: "shutdown"})
	if !resp.OK {
		t.Fatalf("expected ok, got %+v", resp)
	}
	if !ctrl.shutdownHit {
		t.Fatalf("expected controller shutdown to be invoked")
	}
}

func TestUnknownCommandReturnsError(t *testing.T) {
	ctrl := &mockController{}
	sock, cancel := startTestServer(t, ctrl)
	defer cancel()

	resp := roundTrip(t, sock, Request{Cmd: "bogus"})
	if resp.OK {
		t.Fatalf("expected failure for unknown command")
	}
}
