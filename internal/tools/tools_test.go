package tools

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"kaizen/internal/ack"
	"kaizen/internal/ai"
	"kaizen/internal/collect"
	"kaizen/internal/config"
	"kaizen/internal/orchestrator"
)

// --- Test helpers ---

type fakeClient struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeClient) Request(ctx context.Context, prompt string, opts ai.Options) (*ai.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &ai.Response{Content: "suggestion", Model: "test-model", Provider: "test"}, nil
}

// setupOrchestrator builds an orchestrator over fakes plus a real
// sqlite store in a temp dir.
func setupOrchestrator(t *testing.T) (*orchestrator.Orchestrator, *collect.Store) {
	t.Helper()

	cfg := config.Default()
	gate := ack.NewState(ack.Config{
		PendingTimeout: cfg.PendingTimeout,
		StaleTimeout:   cfg.StaleTimeout,
	}, zap.NewNop())

	store, err := collect.New(t.TempDir())
	if err != nil {
		t.Fatalf("setup: open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	orch := orchestrator.New(cfg, &fakeClient{}, store, gate, zap.NewNop())
	t.Cleanup(func() { orch.StopAll() })
	return orch, store
}

// startLoop runs the start tool and returns the new loop's id.
func startLoop(t *testing.T, orch *orchestrator.Orchestrator, topic string) string {
	t.Helper()

	tool := NewStartLoopTool(orch, context.Background())
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"topic":            topic,
		"interval_seconds": 3600,
	}
	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("start loop: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("start loop failed: %s", getResultText(result))
	}

	loops := orch.ListLoops()
	if len(loops) == 0 {
		t.Fatal("start loop: registry is empty")
	}
	return loops[len(loops)-1].ID
}

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- StartLoopTool ---

func TestStartLoopTool_Handle_Success(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	tool := NewStartLoopTool(orch, context.Background())

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"topic":            "optimize the query planner",
		"interval_seconds": 3600,
		"max_iterations":   3,
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	text := getResultText(result)
	if !strings.Contains(text, "Loop Started") {
		t.Error("result should contain 'Loop Started'")
	}
	if !strings.Contains(text, "loop-1") {
		t.Error("result should contain the loop id")
	}
	if !strings.Contains(text, "optimization") {
		t.Errorf("result should show the derived category, got: %s", text)
	}
	if !strings.Contains(text, "kaizen_acknowledge") {
		t.Error("result should point at the acknowledge tool")
	}
}

func TestStartLoopTool_Handle_MissingTopic(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	tool := NewStartLoopTool(orch, context.Background())

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Error("should return error when topic is missing")
	}
}

func TestStartLoopTool_Handle_DefaultsApply(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	tool := NewStartLoopTool(orch, context.Background())

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"topic": "tighten error handling",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	loops := orch.ListLoops()
	if len(loops) != 1 {
		t.Fatalf("expected 1 loop, got %d", len(loops))
	}
	cfg := config.Default()
	if loops[0].Interval != cfg.DefaultInterval {
		t.Errorf("interval = %v, want default %v", loops[0].Interval, cfg.DefaultInterval)
	}
	if loops[0].MaxIterations != cfg.DefaultMaxIterations {
		t.Errorf("max iterations = %d, want default %d", loops[0].MaxIterations, cfg.DefaultMaxIterations)
	}
}

// --- AcknowledgeTool ---

func TestAcknowledgeTool_Handle_MissingLoopID(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	tool := NewAcknowledgeTool(orch)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Error("should return error when loop_id is missing")
	}
}

func TestAcknowledgeTool_Handle_UnknownLoop(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	tool := NewAcknowledgeTool(orch)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"loop_id": "loop-999",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatal("unknown loop id should not be a tool error")
	}
	if !strings.Contains(getResultText(result), "no outstanding acknowledgment") {
		t.Errorf("result should explain the id is unknown: %s", getResultText(result))
	}
}

func TestAcknowledgeTool_Handle_OpensGate(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	id := startLoop(t, orch, "improve caching layer")

	tool := NewAcknowledgeTool(orch)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"loop_id":  id,
		"response": "confirmed",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "Acknowledged") {
		t.Error("result should contain 'Acknowledged'")
	}
	if !strings.Contains(text, "kaizen_fetch_prompts") {
		t.Errorf("result should say delivery is open: %s", text)
	}
}

func TestAcknowledgeTool_Handle_ReportsRemaining(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	first := startLoop(t, orch, "debug the login flow")
	startLoop(t, orch, "optimize the query planner")

	tool := NewAcknowledgeTool(orch)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"loop_id": first,
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "still pending") {
		t.Errorf("result should report remaining pending loops: %s", text)
	}
}

// --- FetchPromptsTool ---

func TestFetchPromptsTool_Handle_BlockedBeforeAck(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	id := startLoop(t, orch, "improve caching layer")

	tool := NewFetchPromptsTool(orch)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "Prompt Delivery Blocked") {
		t.Error("result should say delivery is blocked")
	}
	if !strings.Contains(text, id) {
		t.Errorf("blocked result should name the pending loop: %s", text)
	}
}

func TestFetchPromptsTool_Handle_DeliversAfterAck(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	id := startLoop(t, orch, "improve caching layer")
	if _, err := orch.Acknowledge(id, "ok"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	tool := NewFetchPromptsTool(orch)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"limit": 2,
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "Improvement Prompts") {
		t.Errorf("result should contain prompts, got: %s", text)
	}
	if !strings.Contains(text, "improve caching layer") {
		t.Errorf("prompts should carry the acknowledged topic: %s", text)
	}
}

// --- ListLoopsTool ---

func TestListLoopsTool_Handle_Empty(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	tool := NewListLoopsTool(orch)

	req := mcp.CallToolRequest{}
	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "No active loops") {
		t.Error("empty registry should say so")
	}
}

func TestListLoopsTool_Handle_ShowsPendingStatus(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	id := startLoop(t, orch, "review the audit trail")

	tool := NewListLoopsTool(orch)
	req := mcp.CallToolRequest{}
	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, id) {
		t.Error("listing should contain the loop id")
	}
	if !strings.Contains(text, "pending") {
		t.Errorf("unacknowledged loop should show pending status: %s", text)
	}
}

// --- StopLoopsTool ---

func TestStopLoopsTool_Handle_NothingRunning(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	tool := NewStopLoopsTool(orch)

	req := mcp.CallToolRequest{}
	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "No loops were running") {
		t.Error("result should say nothing was running")
	}
}

func TestStopLoopsTool_Handle_WarnsAboutPending(t *testing.T) {
	orch, _ := setupOrchestrator(t)
	id := startLoop(t, orch, "improve test coverage")

	tool := NewStopLoopsTool(orch)
	req := mcp.CallToolRequest{}
	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, id) {
		t.Error("result should list the stopped loop")
	}
	if !strings.Contains(text, "await acknowledgment") {
		t.Errorf("result should warn about unacknowledged loops: %s", text)
	}
	if n := len(orch.ListLoops()); n != 0 {
		t.Errorf("registry holds %d loops after stop", n)
	}
}

// --- HistoryTool ---

func TestHistoryTool_Handle_ShowsInteractionsAndAcks(t *testing.T) {
	orch, store := setupOrchestrator(t)

	if err := store.Record(collect.Interaction{
		LoopID:    "loop-1",
		Topic:     "improve caching layer",
		Iteration: 1,
		Success:   true,
		Model:     "test-model",
		Provider:  "test",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := orch.Acknowledge("loop-1", "done"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	tool := NewHistoryTool(orch, store)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"loop_id": "loop-1",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "Recent Iterations") {
		t.Error("result should contain the iterations section")
	}
	if !strings.Contains(text, "test-model") {
		t.Error("result should show the recorded model")
	}
	recent, err := store.Recent("loop-1", 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].CreatedAt == "" {
		t.Fatalf("stored interaction missing timestamp: %+v", recent)
	}
	if !strings.Contains(text, recent[0].CreatedAt) {
		t.Errorf("result should show the stored timestamp %q: %s", recent[0].CreatedAt, text)
	}
	if !strings.Contains(text, "1 iteration(s), 1 succeeded") {
		t.Errorf("result should show loop stats: %s", text)
	}
	if !strings.Contains(text, "Recent Acknowledgments") {
		t.Errorf("result should contain the acknowledgments section: %s", text)
	}
}

func TestHistoryTool_Handle_EmptyStore(t *testing.T) {
	orch, store := setupOrchestrator(t)

	tool := NewHistoryTool(orch, store)
	req := mcp.CallToolRequest{}
	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "No recorded iterations") {
		t.Error("empty store should say so")
	}
}

// --- formatDuration ---

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m30s"},
		{2 * time.Hour, "120m"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
