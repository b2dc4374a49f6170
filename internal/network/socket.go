package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"safespace/internal/logging"
)

// envelope is the wire frame on the event socket: a named event plus its
// JSON payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Socket is the production Client: a gorilla/websocket connection for
// events plus plain HTTP for report uploads.
type Socket struct {
	serverURL  string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	handler EventHandler
	wg      sync.WaitGroup
}

// NewSocket builds a disconnected socket for the given Central Unit base
// URL. reportTimeout bounds each multipart upload.
func NewSocket(serverURL string, reportTimeout time.Duration, logger *slog.Logger) *Socket {
	if reportTimeout <= 0 {
		reportTimeout = 15 * time.Second
	}
	return &Socket{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: reportTimeout},
		logger:     logging.NewComponentLogger(logger, "socket"),
	}
}

// Connect dials the event socket and starts the read loop. Safe to call
// again after Disconnect; a second call while connected is a no-op.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	wsURL, err := s.socketURL()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	s.conn = conn
	s.wg.Add(1)
	go s.readLoop(conn)

	s.logger.Info("connected to central unit", logging.String("url", wsURL))
	return nil
}

// Disconnect closes the socket and waits for the read loop to drain.
func (s *Socket) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	err := conn.Close()
	s.wg.Wait()
	s.logger.Info("disconnected from central unit")
	return err
}

// Connected reports whether the event socket is up.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Subscribe registers the inbound-event consumer.
func (s *Socket) Subscribe(handler EventHandler) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// Emit sends one named event. Fails when disconnected.
func (s *Socket) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("emit %s: not connected", event)
	}
	if err := s.conn.WriteJSON(envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// PostMultipart uploads form fields plus media attachments to the given
// path on the Central Unit. Missing media files are skipped, and at most
// maxReportMedia attachments go out. Returns the HTTP status code.
func (s *Socket) PostMultipart(path string, fields map[string]string, mediaPaths []string) (int, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return 0, fmt.Errorf("write field %s: %w", key, err)
		}
	}

	attached := 0
	for _, mediaPath := range mediaPaths {
		if attached >= maxReportMedia {
			break
		}
		if err := attachFile(writer, mediaPath); err != nil {
			s.logger.Warn("skipping media attachment",
				logging.String("path", mediaPath), logging.Error(err))
			continue
		}
		attached++
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.serverURL+path, &body)
	if err != nil {
		return 0, fmt.Errorf("build report request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func attachFile(writer *multipart.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="media"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

// socketURL converts the configured HTTP base URL into the websocket
// endpoint.
func (s *Socket) socketURL() (string, error) {
	parsed, err := url.Parse(s.serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url %q: %w", s.serverURL, err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", parsed.Scheme)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/ws"
	return parsed.String(), nil
}

func (s *Socket) readLoop(conn *websocket.Conn) {
	defer s.wg.Done()
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("event socket closed")
			} else {
				s.logger.Warn("event socket read failed", logging.Error(err))
			}
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		handler := s.handler
		s.mu.Unlock()
		if handler != nil {
			handler(env.Event, env.Data)
		}
	}
}
