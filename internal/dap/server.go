package dap

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/SkyN9ne/firefox-debugger/internal/adapter"
	"github.com/SkyN9ne/firefox-debugger/internal/config"
	"github.com/SkyN9ne/firefox-debugger/internal/launch"
	"github.com/SkyN9ne/firefox-debugger/internal/rdp"
)

// Server drives one editor connection: it decodes requests, runs them
// against the adapter session, and pushes session notifications back as
// events.
type Server struct {
	transport Transport
	cfg       config.Config
	log       *zap.Logger

	seqMu sync.Mutex
	seq   int

	mu       sync.Mutex
	session  *adapter.Session
	instance *launch.Instance
	// lineDelta and columnDelta are subtracted from debuggee positions
	// on the way to the editor and added on the way back. Zero for
	// one-based clients, one for zero-based clients.
	lineDelta   int
	columnDelta int
}

// NewServer creates a server over an editor transport.
func NewServer(transport Transport, cfg config.Config, log *zap.Logger) *Server {
	return &Server{
		transport: transport,
		cfg:       cfg,
		log:       log.Named("dap"),
	}
}

// Run reads and serves requests until the editor disconnects or the
// transport fails.
func (s *Server) Run(ctx context.Context) error {
	defer s.shutdown(ctx)

	for {
		content, err := s.transport.Receive()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("editor transport: %w", err)
		}

		var req Request
		if err := json.Unmarshal(content, &req); err != nil {
			s.log.Warn("undecodable request", zap.Error(err))
			continue
		}
		if req.Type != "request" {
			s.log.Warn("unexpected message type", zap.String("type", req.Type))
			continue
		}

		if stop := s.handle(ctx, &req); stop {
			return nil
		}
	}
}

// handle serves one request and reports whether the session is over.
func (s *Server) handle(ctx context.Context, req *Request) bool {
	s.log.Debug("request", zap.Int("seq", req.Seq), zap.String("command", req.Command))

	var (
		body any
		err  error
		stop bool
	)
	switch req.Command {
	case "initialize":
		body, err = s.onInitialize(req.Arguments)
	case "launch":
		err = s.onLaunch(ctx, req.Arguments)
	case "attach":
		err = s.onAttach(ctx, req.Arguments)
	case "configurationDone":
		// Breakpoints requested before this point are already applied
		// or deferred; nothing is held back.
	case "setBreakpoints":
		body, err = s.onSetBreakpoints(ctx, req.Arguments)
	case "threads":
		body, err = s.onThreads()
	case "stackTrace":
		body, err = s.onStackTrace(ctx, req.Arguments)
	case "scopes":
		body, err = s.onScopes(req.Arguments)
	case "variables":
		body, err = s.onVariables(ctx, req.Arguments)
	case "evaluate":
		body, err = s.onEvaluate(ctx, req.Arguments)
	case "continue":
		body, err = s.onContinue(ctx, req.Arguments)
	case "next":
		err = s.onStep(ctx, req.Arguments, (*adapter.ThreadAdapter).StepOver)
	case "stepIn":
		err = s.onStep(ctx, req.Arguments, (*adapter.ThreadAdapter).StepInto)
	case "stepOut":
		err = s.onStep(ctx, req.Arguments, (*adapter.ThreadAdapter).StepOut)
	case "pause":
		err = s.onPause(ctx, req.Arguments)
	case "disconnect":
		stop = true
	default:
		err = fmt.Errorf("unsupported command %q", req.Command)
	}

	s.respond(req, body, err)
	if req.Command == "initialize" && err == nil {
		s.sendEvent("initialized", nil)
	}
	return stop
}

func (s *Server) respond(req *Request, body any, err error) {
	resp := Response{
		ProtocolMessage: ProtocolMessage{Seq: s.nextSeq(), Type: "response"},
		RequestSeq:      req.Seq,
		Command:         req.Command,
		Success:         err == nil,
		Body:            body,
	}
	if err != nil {
		resp.Message = err.Error()
		s.log.Warn("request failed",
			zap.String("command", req.Command), zap.Error(err))
	}
	s.send(resp)
}

func (s *Server) sendEvent(event string, body any) {
	s.send(Event{
		ProtocolMessage: ProtocolMessage{Seq: s.nextSeq(), Type: "event"},
		Event:           event,
		Body:            body,
	})
}

func (s *Server) send(msg any) {
	content, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("marshal outbound message", zap.Error(err))
		return
	}
	if err := s.transport.Send(content); err != nil {
		s.log.Warn("send to editor failed", zap.Error(err))
	}
}

func (s *Server) nextSeq() int {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.seq++
	return s.seq
}

func (s *Server) onInitialize(raw json.RawMessage) (any, error) {
	var args InitializeArguments
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("initialize arguments: %w", err)
		}
	}

	s.mu.Lock()
	// Absent fields default to one-based per the protocol.
	if args.LinesStartAt1 != nil && !*args.LinesStartAt1 {
		s.lineDelta = 1
	}
	if args.ColumnsStartAt1 != nil && !*args.ColumnsStartAt1 {
		s.columnDelta = 1
	}
	s.mu.Unlock()

	return Capabilities{
		SupportsConfigurationDoneRequest: true,
		SupportsEvaluateForHovers:        true,
		SupportTerminateDebuggee:         true,
	}, nil
}

func (s *Server) onLaunch(ctx context.Context, raw json.RawMessage) error {
	var args LaunchArguments
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return fmt.Errorf("launch arguments: %w", err)
		}
	}

	port := args.Port
	if port == 0 {
		port = s.cfg.Firefox.Port
	}
	executable := args.FirefoxExecutable
	if executable == "" {
		executable = s.cfg.Firefox.Executable
	}
	url := args.URL
	if url == "" && args.File != "" {
		url = pathToURL(args.File)
	}

	instance, err := launch.Start(ctx, launch.Options{
		Executable: executable,
		Port:       port,
		URL:        url,
		ExtraArgs:  args.FirefoxArgs,
		Log:        s.log,
	})
	if err != nil {
		return err
	}
	transport, err := instance.Connect(ctx)
	if err != nil {
		instance.Terminate()
		return err
	}

	s.mu.Lock()
	s.instance = instance
	s.mu.Unlock()
	return s.bootstrap(ctx, transport)
}

func (s *Server) onAttach(ctx context.Context, raw json.RawMessage) error {
	var args AttachArguments
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return fmt.Errorf("attach arguments: %w", err)
		}
	}

	host := args.Host
	if host == "" {
		host = s.cfg.Firefox.Host
	}
	port := args.Port
	if port == 0 {
		port = s.cfg.Firefox.Port
	}

	transport, err := rdp.NewSocketTransport(net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return s.bootstrap(ctx, transport)
}

// bootstrap builds the session over an established wire transport and
// runs the attach handshake.
func (s *Server) bootstrap(ctx context.Context, transport rdp.Transport) error {
	conn := rdp.NewConnection(transport, s.log)
	session := adapter.NewSession(conn, s.log, adapter.Handlers{
		OnStopped: func(threadHandle int, reason string) {
			s.sendEvent("stopped", StoppedEventBody{
				Reason:   mapStopReason(reason),
				ThreadID: threadHandle,
			})
		},
		OnContinued: func(threadHandle int) {
			s.sendEvent("continued", ContinuedEventBody{ThreadID: threadHandle})
		},
		OnThreadStarted: func(threadHandle int) {
			s.sendEvent("thread", ThreadEventBody{Reason: "started", ThreadID: threadHandle})
		},
		OnThreadExited: func(threadHandle int) {
			s.sendEvent("thread", ThreadEventBody{Reason: "exited", ThreadID: threadHandle})
		},
		OnBreakpointsBound: func(url string, bound []adapter.BreakpointResult) {
			source := urlToSource(url)
			for _, bp := range bound {
				s.sendEvent("breakpoint", BreakpointEventBody{
					Reason: "changed",
					Breakpoint: Breakpoint{
						Verified: bp.Verified,
						Line:     bp.Line - s.lineDelta,
						Source:   source,
					},
				})
			}
		},
		OnTerminated: func() {
			s.sendEvent("terminated", TerminatedEventBody{})
		},
	})

	if _, err := session.Attach(ctx); err != nil {
		conn.Close()
		return err
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	return nil
}

func (s *Server) currentSession() (*adapter.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, adapter.ErrNotAttached
	}
	return s.session, nil
}

func (s *Server) onSetBreakpoints(ctx context.Context, raw json.RawMessage) (any, error) {
	session, err := s.currentSession()
	if err != nil {
		return nil, err
	}
	var args SetBreakpointsArguments
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("setBreakpoints arguments: %w", err)
	}

	lines := make([]int, 0, len(args.Breakpoints))
	for _, bp := range args.Breakpoints {
		lines = append(lines, bp.Line+s.lineDelta)
	}
	if len(args.Breakpoints) == 0 {
		for _, line := range args.Lines {
			lines = append(lines, line+s.lineDelta)
		}
	}

	url := args.Source.Path
	if url == "" {
		url = args.Source.Name
	}
	url = pathToURL(url)

	results, err := session.SetBreakpoints(ctx, url, lines)
	if err != nil {
		return nil, err
	}

	body := SetBreakpointsResponseBody{Breakpoints: make([]Breakpoint, len(results))}
	for i, result := range results {
		body.Breakpoints[i] = Breakpoint{
			Verified: result.Verified,
			Line:     result.Line - s.lineDelta,
			Source:   urlToSource(url),
		}
	}
	return body, nil
}

func (s *Server) onThreads() (any, error) {
	session, err := s.currentSession()
	if err != nil {
		return nil, err
	}
	body := ThreadsResponseBody{Threads: []Thread{}}
	for _, info := range session.Threads() {
		body.Threads = append(body.Threads, Thread{ID: info.Handle, Name: info.Name})
	}
	return body, nil
}

func (s *Server) onStackTrace(ctx context.Context, raw json.RawMessage) (any, error) {
	session, err := s.currentSession()
	if err != nil {
		return nil, err
	}
	var args StackTraceArguments
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("stackTrace arguments: %w", err)
	}

	frames, err := session.StackTrace(ctx, args.ThreadID)
	if err != nil {
		return nil, err
	}

	body := StackTraceResponseBody{
		StackFrames: make([]StackFrame, len(frames)),
		TotalFrames: len(frames),
	}
	for i, frame := range frames {
		body.StackFrames[i] = StackFrame{
			ID:     frame.Handle,
			Name:   frame.Name,
			Source: urlToSource(frame.SourceURL),
			Line:   frame.Line - s.lineDelta,
			Column: frame.Column - s.columnDelta,
		}
	}
	return body, nil
}

func (s *Server) onScopes(raw json.RawMessage) (any, error) {
	session, err := s.currentSession()
	if err != nil {
		return nil, err
	}
	var args ScopesArguments
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("scopes arguments: %w", err)
	}

	scopes, err := session.Scopes(args.FrameID)
	if err != nil {
		return nil, err
	}
	body := ScopesResponseBody{Scopes: make([]Scope, len(scopes))}
	for i, scope := range scopes {
		body.Scopes[i] = Scope{
			Name:               scope.Name,
			VariablesReference: scope.VariablesHandle,
			// Expanding a scope may query object actors.
			Expensive: i > 0,
		}
	}
	return body, nil
}

func (s *Server) onVariables(ctx context.Context, raw json.RawMessage) (any, error) {
	session, err := s.currentSession()
	if err != nil {
		return nil, err
	}
	var args VariablesArguments
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("variables arguments: %w", err)
	}

	vars, err := session.Variables(ctx, args.VariablesReference)
	if err != nil {
		return nil, err
	}
	body := VariablesResponseBody{Variables: make([]Variable, len(vars))}
	for i, v := range vars {
		body.Variables[i] = Variable{
			Name:               v.Name,
			Value:              v.Value,
			VariablesReference: v.VariablesHandle,
		}
	}
	return body, nil
}

func (s *Server) onEvaluate(ctx context.Context, raw json.RawMessage) (any, error) {
	session, err := s.currentSession()
	if err != nil {
		return nil, err
	}
	var args EvaluateArguments
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("evaluate arguments: %w", err)
	}

	result, err := session.Evaluate(ctx, args.FrameID, args.Expression)
	if err != nil {
		return nil, err
	}
	return EvaluateResponseBody{
		Result:             result.Value,
		VariablesReference: result.VariablesHandle,
	}, nil
}

func (s *Server) onContinue(ctx context.Context, raw json.RawMessage) (any, error) {
	session, err := s.currentSession()
	if err != nil {
		return nil, err
	}
	var args ContinueArguments
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("continue arguments: %w", err)
	}
	thread, err := session.Thread(args.ThreadID)
	if err != nil {
		return nil, err
	}
	if err := thread.Resume(ctx); err != nil {
		return nil, err
	}
	return ContinueResponseBody{AllThreadsContinued: false}, nil
}

func (s *Server) onStep(ctx context.Context, raw json.RawMessage, step func(*adapter.ThreadAdapter, context.Context) error) error {
	session, err := s.currentSession()
	if err != nil {
		return err
	}
	var args struct {
		ThreadID int `json:"threadId"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return fmt.Errorf("step arguments: %w", err)
	}
	thread, err := session.Thread(args.ThreadID)
	if err != nil {
		return err
	}
	return step(thread, ctx)
}

func (s *Server) onPause(ctx context.Context, raw json.RawMessage) error {
	session, err := s.currentSession()
	if err != nil {
		return err
	}
	var args PauseArguments
	if err := json.Unmarshal(raw, &args); err != nil {
		return fmt.Errorf("pause arguments: %w", err)
	}
	thread, err := session.Thread(args.ThreadID)
	if err != nil {
		return err
	}
	return thread.Pause(ctx)
}

// shutdown tears the session and any launched process down.
func (s *Server) shutdown(ctx context.Context) {
	s.mu.Lock()
	session := s.session
	instance := s.instance
	s.session = nil
	s.instance = nil
	s.mu.Unlock()

	if session != nil {
		if err := session.Disconnect(ctx); err != nil {
			s.log.Warn("session disconnect failed", zap.Error(err))
		}
	}
	if instance != nil {
		if err := instance.Terminate(); err != nil {
			s.log.Warn("firefox terminate failed", zap.Error(err))
		}
	}
}
