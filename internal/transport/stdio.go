package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/conikeec/mcp-probe/internal/correlate"
	"github.com/conikeec/mcp-probe/internal/protocol"
)

// GracefulShutdownTimeout is how long Disconnect waits for the child to
// exit after SIGTERM before escalating to SIGKILL.
const GracefulShutdownTimeout = 5 * time.Second

// stderrTailLines bounds the ring buffer surfaced as
// Info().Metadata["stderr_tail"].
const stderrTailLines = 200

// StdioConfig configures a child-process MCP server spoken to over its
// stdin/stdout.
type StdioConfig struct {
	Command    string
	Args       []string
	Env        []string // additional KEY=VALUE entries, appended to the parent env
	WorkingDir string
	Timeout    time.Duration // default per-request timeout when callers pass 0
}

// Stdio implements Transport by spawning a child process and framing
// messages as newline-delimited JSON (NDJSON) over its stdin/stdout.
type Stdio struct {
	counters

	cfg StdioConfig

	mu        sync.Mutex
	connected bool
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    io.ReadCloser
	table     *correlate.Table
	notifCh   chan *ServerMessage
	done      chan struct{}
	wg        sync.WaitGroup
	stderr    *ringBuffer
}

// NewStdio creates a stdio transport. Connect spawns the child process.
func NewStdio(cfg StdioConfig) *Stdio {
	return &Stdio{
		cfg:     cfg,
		table:   correlate.New(),
		notifCh: make(chan *ServerMessage, 64),
		done:    make(chan struct{}),
		stderr:  newRingBuffer(stderrTailLines),
	}
}

// Connect spawns the child process and starts the stdout read loop.
func (t *Stdio) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return &ConnectionFailedError{Transport: KindStdio, Reason: "already connected"}
	}

	// A plain exec.Command (not CommandContext) is used deliberately: ctx
	// here only bounds the connect attempt, and the child must survive
	// after Connect returns until an explicit Disconnect.
	cmd := exec.Command(t.cfg.Command, t.cfg.Args...)
	cmd.Dir = t.cfg.WorkingDir
	if len(t.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), t.cfg.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &ConnectionFailedError{Transport: KindStdio, Reason: fmt.Sprintf("stdin pipe: %v", err)}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ConnectionFailedError{Transport: KindStdio, Reason: fmt.Sprintf("stdout pipe: %v", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &ConnectionFailedError{Transport: KindStdio, Reason: fmt.Sprintf("stderr pipe: %v", err)}
	}

	if err := cmd.Start(); err != nil {
		return &ConnectionFailedError{Transport: KindStdio, Reason: err.Error()}
	}

	t.cmd = cmd
	t.stdin = stdin
	t.stdout = stdout
	t.connected = true

	t.wg.Add(2)
	go t.readLoop(stdout)
	go t.readStderr(stderr)

	return nil
}

func (t *Stdio) readStderr(stderr io.ReadCloser) {
	defer t.wg.Done()
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		t.mu.Lock()
		t.stderr.add(scanner.Text())
		t.mu.Unlock()
	}
}

// readLoop reads NDJSON messages from the child's stdout, classifying and
// dispatching each: responses complete their correlation waiter,
// notifications and server-to-client requests go to notifCh in
// transport-observed order.
func (t *Stdio) readLoop(stdout io.ReadCloser) {
	defer t.wg.Done()
	reader := bufio.NewReader(stdout)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				t.errors.Add(1)
			}
			return
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if DebugLogging {
			log.Printf("stdio Recv: %s", line)
		}
		t.dispatch(line)
	}
}

func (t *Stdio) dispatch(line []byte) {
	kind, err := protocol.Classify(line)
	if err != nil {
		t.errors.Add(1)
		log.Printf("stdio: dropping unparseable message: %v", err)
		return
	}

	switch kind {
	case protocol.KindResponse:
		resp, err := protocol.DecodeResponse(line)
		if err != nil {
			t.errors.Add(1)
			log.Printf("stdio: dropping malformed response: %v", err)
			return
		}
		t.responsesRecv.Add(1)
		t.table.Complete(resp.ID.String(), resp)

	case protocol.KindNotification:
		n, err := protocol.DecodeNotification(line)
		if err != nil {
			t.errors.Add(1)
			log.Printf("stdio: dropping malformed notification: %v", err)
			return
		}
		t.notificationsRecv.Add(1)
		t.enqueue(&ServerMessage{Notification: n})

	case protocol.KindRequest:
		req, err := protocol.DecodeRequest(line)
		if err != nil {
			t.errors.Add(1)
			log.Printf("stdio: dropping malformed server request: %v", err)
			return
		}
		t.enqueue(&ServerMessage{Request: req})
	}
}

func (t *Stdio) enqueue(msg *ServerMessage) {
	select {
	case t.notifCh <- msg:
	case <-t.done:
	}
}

// SendRequest writes the request as NDJSON and waits for its correlated response.
func (t *Stdio) SendRequest(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil, &NotConnectedError{Transport: KindStdio}
	}
	t.mu.Unlock()

	if timeout <= 0 {
		timeout = t.cfg.Timeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	id := req.ID.String()
	waiter, err := t.table.Register(id, req.Method, timeout)
	if err != nil {
		return nil, err
	}

	if err := t.writeEnvelope(req); err != nil {
		t.table.Cancel(id)
		return nil, err
	}
	t.requestsSent.Add(1)

	resp, err := waiter.Wait(ctx)
	if err != nil {
		return nil, translateWaitErr(err, KindStdio)
	}
	return resp, nil
}

// SendNotification writes the notification as NDJSON; no response is awaited.
func (t *Stdio) SendNotification(ctx context.Context, notif *protocol.Notification) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return &NotConnectedError{Transport: KindStdio}
	}
	t.mu.Unlock()

	if err := t.writeEnvelope(notif); err != nil {
		return err
	}
	t.requestsSent.Add(1)
	return nil
}

func (t *Stdio) writeEnvelope(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &SerializationError{Transport: KindStdio, Reason: err.Error()}
	}
	if DebugLogging {
		log.Printf("stdio Send: %s", data)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return &NotConnectedError{Transport: KindStdio}
	}
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		t.errors.Add(1)
		return &NetworkError{Transport: KindStdio, Reason: "write", Err: err}
	}
	return nil
}

// ReceiveMessage returns the next queued notification or server-to-client request.
func (t *Stdio) ReceiveMessage(ctx context.Context, timeout time.Duration) (*ServerMessage, error) {
	var timerCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerCh = timer.C
	}

	select {
	case msg, ok := <-t.notifCh:
		if !ok {
			return nil, &DisconnectedError{Transport: KindStdio, Reason: "transport closed"}
		}
		return msg, nil
	case <-timerCh:
		return nil, &TimeoutError{Transport: KindStdio, Where: "receive_message", Duration: timeout}
	case <-t.done:
		return nil, &DisconnectedError{Transport: KindStdio, Reason: "transport closed"}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Disconnect signals the child to terminate (SIGTERM, then SIGKILL after
// GracefulShutdownTimeout), fails every outstanding waiter atomically, and
// releases pipes.
func (t *Stdio) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false
	cmd := t.cmd
	t.mu.Unlock()

	t.table.FailAll(&DisconnectedError{Transport: KindStdio, Reason: "disconnect"})
	close(t.done)

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)

		waitDone := make(chan struct{})
		go func() {
			t.wg.Wait()
			_ = cmd.Wait()
			close(waitDone)
		}()

		select {
		case <-waitDone:
		case <-time.After(GracefulShutdownTimeout):
			_ = cmd.Process.Signal(syscall.SIGKILL)
			<-waitDone
		}
	}

	_ = t.stdin.Close()
	return nil
}

// IsConnected reports whether the transport is currently usable.
func (t *Stdio) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Info returns a snapshot including the child's stderr tail.
func (t *Stdio) Info() Info {
	sent, recv, notif, errs := t.counters.snapshot()
	t.mu.Lock()
	tail := t.stderr.snapshot()
	connected := t.connected
	var pid int
	if t.cmd != nil && t.cmd.Process != nil {
		pid = t.cmd.Process.Pid
	}
	t.mu.Unlock()

	return Info{
		Kind:              KindStdio,
		Connected:         connected,
		RequestsSent:      sent,
		ResponsesRecv:     recv,
		NotificationsRecv: notif,
		Errors:            errs,
		Metadata: map[string]any{
			"command":     t.cfg.Command,
			"pid":         pid,
			"stderr_tail": tail,
		},
	}
}
