package network

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"safespace/internal/config"
	"safespace/internal/failures"
	"safespace/internal/report"
)

// fakeClient records every transport interaction and lets tests script
// failures.
type fakeClient struct {
	mu          sync.Mutex
	connectErr  error
	emitErr     error
	postStatus  int
	postErr     error
	connected   bool
	emits       []string
	posts       []map[string]string
	postedMedia [][]string
	handler     EventHandler
}

func (c *fakeClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *fakeClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *fakeClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.emitErr != nil {
		return c.emitErr
	}
	c.emits = append(c.emits, event)
	return nil
}

func (c *fakeClient) PostMultipart(path string, fields map[string]string, mediaPaths []string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.postErr != nil {
		return 0, c.postErr
	}
	c.posts = append(c.posts, fields)
	c.postedMedia = append(c.postedMedia, append([]string(nil), mediaPaths...))
	if c.postStatus == 0 {
		return 200, nil
	}
	return c.postStatus, nil
}

func (c *fakeClient) Subscribe(handler EventHandler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

func (c *fakeClient) push(t *testing.T, event string, payload string) {
	t.Helper()
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		t.Fatal("no event handler subscribed")
	}
	handler(event, json.RawMessage(payload))
}

type recordingSink struct {
	mu           sync.Mutex
	instructions []report.Instruction
}

func (s *recordingSink) OnInstruction(inst report.Instruction) {
	s.mu.Lock()
	s.instructions = append(s.instructions, inst)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instructions)
}

func testUnit(client *fakeClient, sink InstructionSink) (*Unit, *failures.Tracker) {
	tracker := failures.NewTracker(config.Failures{Threshold: 5, WindowSeconds: 300, MaxHistory: 100}, nil)
	node := config.Node{ID: "node-7", Lat: 52.23, Long: 21.01}
	cfg := config.Network{HeartbeatInterval: 1}
	return NewUnit(node, cfg, client, sink, tracker, nil), tracker
}

func sampleReport(media ...string) report.AccidentReport {
	return report.AccidentReport{
		NodeID: "node-7", Lat: 52.23, Long: 21.01,
		LaneNumber: "2", MediaPaths: media, AIDetected: true,
		Timestamp: time.Now(),
	}
}

func TestStartFailureLeavesUnitOffline(t *testing.T) {
	client := &fakeClient{connectErr: errors.New("refused")}
	unit, tracker := testUnit(client, &recordingSink{})

	if err := unit.Start(context.Background()); err == nil {
		t.Fatal("Start should surface the connection failure")
	}
	if unit.Online() {
		t.Fatal("unit should be offline after failed connect")
	}
	history := tracker.RecentHistory(1)
	if len(history) != 1 || history[0].Kind != failures.KindNetwork {
		t.Fatalf("expected one recorded network failure, got %v", history)
	}

	unit.ReportAccident(sampleReport())
	client.mu.Lock()
	posts := len(client.posts)
	client.mu.Unlock()
	if posts != 0 {
		t.Fatal("offline unit must not attempt uploads")
	}
}

func TestHeartbeatCarriesNodeIdentity(t *testing.T) {
	client := &fakeClient{}
	unit, _ := testUnit(client, &recordingSink{})

	if err := unit.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer unit.Stop()

	deadline := time.After(2 * time.Second)
	for {
		client.mu.Lock()
		beats := len(client.emits)
		client.mu.Unlock()
		if beats >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no heartbeat emitted")
		case <-time.After(time.Millisecond):
		}
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.emits[0] != EventHeartbeat {
		t.Fatalf("emitted %q, want %q", client.emits[0], EventHeartbeat)
	}
}

func TestHeartbeatFailureIsRecordedAndLoopContinues(t *testing.T) {
	client := &fakeClient{emitErr: errors.New("pipe broken")}
	unit, tracker := testUnit(client, &recordingSink{})

	if err := unit.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer unit.Stop()

	deadline := time.After(2 * time.Second)
	for len(tracker.RecentHistory(1)) == 0 {
		select {
		case <-deadline:
			t.Fatal("heartbeat failure never recorded")
		case <-time.After(time.Millisecond):
		}
	}
	if !unit.Online() {
		t.Fatal("a failed heartbeat must not take the unit offline")
	}
}

func TestReportAccidentUploadsFieldsAndCapsMedia(t *testing.T) {
	client := &fakeClient{}
	unit, _ := testUnit(client, &recordingSink{})
	if err := unit.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer unit.Stop()

	unit.ReportAccident(sampleReport("a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg", "f.jpg", "g.jpg"))

	deadline := time.After(2 * time.Second)
	for {
		client.mu.Lock()
		done := len(client.posts) == 1
		client.mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("report never uploaded")
		case <-time.After(time.Millisecond):
		}
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	fields := client.posts[0]
	if fields["nodeId"] != "node-7" || fields["laneNumber"] != "2" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["lat"] != "52.23" || fields["long"] != "21.01" {
		t.Fatalf("unexpected coordinates: %v", fields)
	}
	if got := len(client.postedMedia[0]); got != 5 {
		t.Fatalf("attached %d media, want 5", got)
	}
}

func TestFailedUploadRecordsNetworkError(t *testing.T) {
	client := &fakeClient{postStatus: 500}
	unit, tracker := testUnit(client, &recordingSink{})
	if err := unit.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer unit.Stop()

	unit.ReportAccident(sampleReport())

	deadline := time.After(2 * time.Second)
	for len(tracker.RecentHistory(1)) == 0 {
		select {
		case <-deadline:
			t.Fatal("failed upload never recorded")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestInboundEventsBecomeInstructions(t *testing.T) {
	client := &fakeClient{}
	sink := &recordingSink{}
	unit, _ := testUnit(client, sink)
	if err := unit.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer unit.Stop()

	client.push(t, EventRoadUpdate, `{"isAccident":true,"speedLimit":80,"laneStates":["blocked","up"]}`)
	client.push(t, EventAccidentResponse, `{"isAccident":false}`)
	client.push(t, "weather_update", `{"rain":true}`)

	if got := sink.count(); got != 2 {
		t.Fatalf("forwarded %d instructions, want 2", got)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	first := sink.instructions[0]
	if !first.IsAccident || first.SpeedLimit != 80 || len(first.LaneStates) != 2 {
		t.Fatalf("first instruction = %+v", first)
	}
	if sink.instructions[1].IsAccident {
		t.Fatal("second instruction should be the all-clear")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	client := &fakeClient{}
	unit, _ := testUnit(client, &recordingSink{})
	if err := unit.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	unit.Stop()
	unit.Stop()

	if unit.Online() {
		t.Fatal("unit should be offline after Stop")
	}
	if client.Connected() {
		t.Fatal("client should be disconnected after Stop")
	}
}
