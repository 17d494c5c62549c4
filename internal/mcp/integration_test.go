package mcp

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

// stdioSession drives serve over pipes, one JSON-RPC message per line
type stdioSession struct {
	in    *io.PipeWriter
	lines chan string
	done  chan error
}

func startSession(t *testing.T, server *Server) (*stdioSession, context.CancelFunc) {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	sess := &stdioSession{in: inW, lines: make(chan string, 16), done: make(chan error, 1)}
	go func() {
		sess.done <- server.serve(ctx, inR, outW)
		outW.Close()
	}()
	go func() {
		scanner := bufio.NewScanner(outR)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			sess.lines <- scanner.Text()
		}
		close(sess.lines)
	}()
	return sess, cancel
}

func (s *stdioSession) send(t *testing.T, msg string) {
	t.Helper()
	if _, err := io.WriteString(s.in, msg+"\n"); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}
}

func (s *stdioSession) receive(t *testing.T) string {
	t.Helper()
	select {
	case line, ok := <-s.lines:
		if !ok {
			t.Fatal("server closed its output")
		}
		return line
	case <-time.After(5 * time.Second):
		t.Fatal("no response within 5s")
		return ""
	}
}

func TestServerIntegration_Stdio(t *testing.T) {
	server, store := newTestServer(t)
	importRequest(t, server, store)

	sess, cancel := startSession(t, server)
	defer cancel()

	sess.send(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0.0.1"}}}`)
	if resp := sess.receive(t); !strings.Contains(resp, `"test-server"`) {
		t.Errorf("initialize response should name the server, got: %s", resp)
	}

	sess.send(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)

	sess.send(t, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	resp := sess.receive(t)
	for _, tool := range []string{"submission_import", "submission_get", "submission_list", "submission_export", "submission_qc", "submission_delete", "sample_update", "server_info"} {
		if !strings.Contains(resp, `"`+tool+`"`) {
			t.Errorf("tools/list should include %s", tool)
		}
	}

	sess.send(t, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"submission_list","arguments":{}}}`)
	if resp := sess.receive(t); !strings.Contains(resp, "Found 1 submission(s)") {
		t.Errorf("submission_list over stdio = %s", resp)
	}

	sess.in.Close()
	select {
	case <-sess.done:
	case <-time.After(5 * time.Second):
		t.Error("server did not stop after stdin closed")
	}
}

func TestServerRun_ContextCancellation(t *testing.T) {
	server, _ := newTestServer(t)

	sess, cancel := startSession(t, server)
	defer sess.in.Close()

	cancel()

	select {
	case err := <-sess.done:
		if err != nil {
			t.Errorf("serve() after cancel = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("server did not stop after context cancellation")
	}
}
