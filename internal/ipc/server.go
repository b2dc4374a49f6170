package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"safespace/internal/logging"
	"safespace/internal/logs"
	"safespace/internal/node"
	"safespace/internal/report"
)

// Server exposes node control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	node      *node.Node
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. shutdown,
// when non-nil, is invoked after a Stop request so the daemon process can
// exit.
func NewServer(ctx context.Context, path string, n *node.Node, shutdown func(), logger *slog.Logger) (*Server, error) {
	if n == nil {
		return nil, errors.New("ipc server requires node")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{node: n, shutdown: shutdown, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Safespace", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		node:      n,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually before the next start"))
	}
}

type service struct {
	node     *node.Node
	shutdown func()
	logger   *slog.Logger
	ctx      context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.node.Status()
	resp.Running = status.Running
	resp.NodeID = status.NodeID
	resp.PID = status.PID
	resp.Online = status.Online
	resp.CameraActive = status.CameraActive
	resp.AwaitingConfirmation = status.AwaitingConfirmation
	resp.Models = append(resp.Models, status.Models...)
	resp.SpeedLimit = status.Display.SpeedLimit
	resp.AlertActive = status.Display.AlertActive
	resp.LockPath = status.LockPath
	resp.JournalPath = status.JournalPath
	if !status.StartedAt.IsZero() {
		resp.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	for i, lane := range status.Display.Lanes {
		resp.Lanes = append(resp.Lanes, LaneState{Index: i, Status: string(lane)})
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("node stop requested")
	s.node.Stop()
	resp.Stopped = true
	s.log().Info("node stopped via IPC",
		logging.String(logging.FieldEventType, "node_stop"))
	if s.shutdown != nil {
		go s.shutdown()
	}
	return nil
}

func (s *service) Trigger(req TriggerRequest, resp *TriggerResponse) error {
	lane := req.Lane
	if lane == "" {
		lane = "0"
	}
	s.log().Debug("manual trigger requested", logging.String(logging.FieldLane, lane))

	id, err := s.node.TriggerReport(s.ctx, lane)
	if err != nil {
		if errors.Is(err, report.ErrAwaitingConfirmation) {
			resp.Accepted = false
			resp.Message = "rejected: an earlier report is awaiting confirmation"
			return nil
		}
		return err
	}
	resp.Accepted = true
	resp.ReportID = id
	resp.Message = "report submitted"
	s.log().Info("manual report triggered",
		logging.String(logging.FieldEventType, "manual_trigger"),
		logging.String(logging.FieldLane, lane),
		logging.String(logging.FieldReportID, id))
	return nil
}

func (s *service) Detect(_ DetectRequest, resp *DetectResponse) error {
	results, err := s.node.ProcessLatest()
	if err != nil {
		return err
	}
	for _, name := range s.node.Status().Models {
		det, ok := results[name]
		if !ok {
			continue
		}
		resp.Results = append(resp.Results, DetectResult{Model: name, Boxes: len(det.Boxes)})
	}
	return nil
}

func (s *service) Failures(req FailuresRequest, resp *FailuresResponse) error {
	for _, failure := range s.node.RecentFailures(req.Limit) {
		resp.Failures = append(resp.Failures, FailureRecord{
			Kind:      string(failure.Kind),
			Message:   failure.Message,
			Critical:  failure.Critical,
			Timestamp: failure.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return nil
}

func (s *service) Reports(req ReportsRequest, resp *ReportsResponse) error {
	entries, err := s.node.RecentReports(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		record := ReportRecord{
			ID:         entry.ID,
			Lane:       entry.LaneNumber,
			AIDetected: entry.AIDetected,
			MediaCount: entry.MediaCount,
			Status:     string(entry.Status),
			CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339),
		}
		if entry.ResolvedAt != nil {
			record.ResolvedAt = entry.ResolvedAt.UTC().Format(time.RFC3339)
		}
		resp.Reports = append(resp.Reports, record)
	}
	return nil
}

func (s *service) Instructions(req InstructionsRequest, resp *InstructionsResponse) error {
	entries, err := s.node.RecentInstructions(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		resp.Instructions = append(resp.Instructions, InstructionRecord{
			Event:      entry.Event,
			IsAccident: entry.IsAccident,
			SpeedLimit: entry.SpeedLimit,
			LaneStates: append([]string(nil), entry.LaneStates...),
			ReceivedAt: entry.ReceivedAt.UTC().Format(time.RFC3339),
		})
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.node.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
