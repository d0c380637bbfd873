package tracker

import (
	"testing"
)

// setupTracker creates a tracker over a fresh in-memory store
func setupTracker(t *testing.T) *Tracker {
	t.Helper()
	return New(NewMemoryStore(), Config{})
}

// setupStrictTracker creates a tracker that errors on unknown ids
func setupStrictTracker(t *testing.T) *Tracker {
	t.Helper()
	return New(NewMemoryStore(), Config{Strict: true})
}

// TestCreateDefaults tests the initial state of a created operation
func TestCreateDefaults(t *testing.T) {
	trk := setupTracker(t)

	id := trk.Create("campaign_clone", map[string]any{"customerId": "123-456"})
	if id == "" {
		t.Fatal("Create returned empty id")
	}

	op, err := trk.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if op.Status != StatusPending {
		t.Errorf("status = %s, want pending", op.Status)
	}
	if op.Progress != 0 {
		t.Errorf("progress = %v, want 0", op.Progress)
	}
	if op.StartedAt != nil || op.CompletedAt != nil {
		t.Error("timestamps set on a pending operation")
	}
	if len(op.Logs) != 0 {
		t.Errorf("logs = %d entries, want 0", len(op.Logs))
	}
	if op.Metadata["customerId"] != "123-456" {
		t.Errorf("metadata customerId = %v, want 123-456", op.Metadata["customerId"])
	}
	if op.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
}

// TestCreateUniqueIDs tests that ids never collide
func TestCreateUniqueIDs(t *testing.T) {
	trk := setupTracker(t)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := trk.Create("campaign_clone", nil)
		if seen[id] {
			t.Fatalf("duplicate id after %d creations: %s", i, id)
		}
		seen[id] = true
	}
}

// TestStartTransition tests pending -> running
func TestStartTransition(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)

	if err := trk.Start(id); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	op, _ := trk.Get(id)
	if op.Status != StatusRunning {
		t.Errorf("status = %s, want running", op.Status)
	}
	if op.StartedAt == nil {
		t.Error("StartedAt not stamped")
	}
	if len(op.Logs) != 1 || op.Logs[0].Message != "Operation started" {
		t.Errorf("logs = %+v, want one start entry", op.Logs)
	}
	if op.Logs[0].Level != LevelInfo {
		t.Errorf("start log level = %s, want info", op.Logs[0].Level)
	}
}

// TestStartTwiceIsNoop tests that a second start leaves the record untouched
func TestStartTwiceIsNoop(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)

	if err := trk.Start(id); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	first, _ := trk.Get(id)

	if err := trk.Start(id); err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}
	second, _ := trk.Get(id)

	if !second.StartedAt.Equal(*first.StartedAt) {
		t.Error("second start changed StartedAt")
	}
	if len(second.Logs) != len(first.Logs) {
		t.Error("second start appended a log entry")
	}
}

// TestProgressClamping tests that progress stays within [0, 100]
func TestProgressClamping(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)
	if err := trk.Start(id); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{150, 100},
	}
	for _, tt := range tests {
		if err := trk.UpdateProgress(id, tt.in); err != nil {
			t.Fatalf("UpdateProgress(%v) failed: %v", tt.in, err)
		}
		op, _ := trk.Get(id)
		if op.Progress != tt.want {
			t.Errorf("progress after UpdateProgress(%v) = %v, want %v", tt.in, op.Progress, tt.want)
		}
	}
}

// TestProgressNotMonotonic tests that backward corrections are recorded
func TestProgressNotMonotonic(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)
	_ = trk.Start(id)

	_ = trk.UpdateProgress(id, 80)
	_ = trk.UpdateProgress(id, 30)

	op, _ := trk.Get(id)
	if op.Progress != 30 {
		t.Errorf("progress = %v, want 30", op.Progress)
	}
}

// TestProgressIgnoredWhenNotRunning tests that progress updates outside
// running are no-ops
func TestProgressIgnoredWhenNotRunning(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)

	if err := trk.UpdateProgress(id, 50); err != nil {
		t.Fatalf("UpdateProgress on pending returned error: %v", err)
	}
	op, _ := trk.Get(id)
	if op.Progress != 0 {
		t.Errorf("progress on pending = %v, want 0", op.Progress)
	}

	_ = trk.Start(id)
	_ = trk.Complete(id)
	if err := trk.UpdateProgress(id, 50); err != nil {
		t.Fatalf("UpdateProgress on completed returned error: %v", err)
	}
	op, _ = trk.Get(id)
	if op.Progress != 100 {
		t.Errorf("progress on completed = %v, want 100", op.Progress)
	}
}

// TestCompleteForcesFullProgress tests running -> completed
func TestCompleteForcesFullProgress(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)
	_ = trk.Start(id)
	_ = trk.UpdateProgress(id, 60)

	if err := trk.Complete(id); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	op, _ := trk.Get(id)
	if op.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", op.Status)
	}
	if op.Progress != 100 {
		t.Errorf("progress = %v, want 100", op.Progress)
	}
	if op.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}
	last := op.Logs[len(op.Logs)-1]
	if last.Message != "Operation completed" {
		t.Errorf("last log = %q, want completion entry", last.Message)
	}
}

// TestFailStoresError tests running -> failed with error details
func TestFailStoresError(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)
	_ = trk.Start(id)
	_ = trk.UpdateProgress(id, 40)

	opErr := &OperationError{Message: "quota exceeded", Code: "RESOURCE_EXHAUSTED"}
	if err := trk.Fail(id, opErr); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	op, _ := trk.Get(id)
	if op.Status != StatusFailed {
		t.Errorf("status = %s, want failed", op.Status)
	}
	if op.Progress != 40 {
		t.Errorf("progress = %v, want 40 (preserved)", op.Progress)
	}
	if op.Error == nil || op.Error.Message != "quota exceeded" {
		t.Errorf("error = %+v, want quota exceeded", op.Error)
	}
	last := op.Logs[len(op.Logs)-1]
	if last.Level != LevelError {
		t.Errorf("failure log level = %s, want error", last.Level)
	}
	if last.Message != "Operation failed: quota exceeded" {
		t.Errorf("failure log = %q", last.Message)
	}
	if last.Details["code"] != "RESOURCE_EXHAUSTED" {
		t.Errorf("failure log details = %v", last.Details)
	}
}

// TestFailFromPending tests that early failures are allowed before start
func TestFailFromPending(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)

	if err := trk.Fail(id, &OperationError{Message: "validation rejected"}); err != nil {
		t.Fatalf("Fail from pending failed: %v", err)
	}
	op, _ := trk.Get(id)
	if op.Status != StatusFailed {
		t.Errorf("status = %s, want failed", op.Status)
	}
	if op.StartedAt != nil {
		t.Error("StartedAt stamped on a never-started operation")
	}
	if op.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}
}

// TestCancelTransition tests cooperative cancellation
func TestCancelTransition(t *testing.T) {
	trk := setupTracker(t)

	// From pending.
	id := trk.Create("campaign_clone", nil)
	if err := trk.Cancel(id); err != nil {
		t.Fatalf("Cancel from pending failed: %v", err)
	}
	op, _ := trk.Get(id)
	if op.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", op.Status)
	}

	// From running.
	id = trk.Create("campaign_clone", nil)
	_ = trk.Start(id)
	if err := trk.Cancel(id); err != nil {
		t.Fatalf("Cancel from running failed: %v", err)
	}
	op, _ = trk.Get(id)
	if op.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", op.Status)
	}
	if op.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}
}

// TestTerminalStatesAbsorbing tests that no transition leaves a terminal state
func TestTerminalStatesAbsorbing(t *testing.T) {
	trk := setupTracker(t)

	terminals := []struct {
		name   string
		finish func(id string)
		want   Status
	}{
		{"completed", func(id string) { _ = trk.Complete(id) }, StatusCompleted},
		{"failed", func(id string) { _ = trk.Fail(id, &OperationError{Message: "x"}) }, StatusFailed},
		{"cancelled", func(id string) { _ = trk.Cancel(id) }, StatusCancelled},
	}

	for _, term := range terminals {
		id := trk.Create("campaign_clone", nil)
		_ = trk.Start(id)
		term.finish(id)

		before, _ := trk.Get(id)

		_ = trk.Start(id)
		_ = trk.Complete(id)
		_ = trk.Fail(id, &OperationError{Message: "late"})
		_ = trk.Cancel(id)
		_ = trk.UpdateProgress(id, 7)

		after, _ := trk.Get(id)
		if after.Status != term.want {
			t.Errorf("%s: status = %s, want %s", term.name, after.Status, term.want)
		}
		if after.Progress != before.Progress {
			t.Errorf("%s: progress changed from %v to %v", term.name, before.Progress, after.Progress)
		}
		if !after.CompletedAt.Equal(*before.CompletedAt) {
			t.Errorf("%s: CompletedAt changed", term.name)
		}
	}
}

// TestAddLogAppendOnly tests log ordering and terminal-state annotation
func TestAddLogAppendOnly(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)
	_ = trk.Start(id)

	_ = trk.AddLog(id, LevelDebug, "first", nil)
	_ = trk.AddLog(id, LevelWarning, "second", map[string]any{"campaign": "42"})
	_ = trk.Complete(id)

	// Annotating a finished operation is allowed.
	if err := trk.AddLog(id, LevelInfo, "post-mortem note", nil); err != nil {
		t.Fatalf("AddLog on completed failed: %v", err)
	}

	logs, err := trk.Logs(id)
	if err != nil {
		t.Fatalf("Logs failed: %v", err)
	}
	want := []string{"Operation started", "first", "second", "Operation completed", "post-mortem note"}
	if len(logs) != len(want) {
		t.Fatalf("logs = %d entries, want %d", len(logs), len(want))
	}
	for i, msg := range want {
		if logs[i].Message != msg {
			t.Errorf("logs[%d] = %q, want %q", i, logs[i].Message, msg)
		}
	}
	if logs[2].Details["campaign"] != "42" {
		t.Errorf("logs[2] details = %v", logs[2].Details)
	}
}

// TestAddLogInvalidLevel tests that an invalid level falls back to info
func TestAddLogInvalidLevel(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)

	if err := trk.AddLog(id, Level("shout"), "hello", nil); err != nil {
		t.Fatalf("AddLog failed: %v", err)
	}
	logs, _ := trk.Logs(id)
	if logs[0].Level != LevelInfo {
		t.Errorf("level = %s, want info fallback", logs[0].Level)
	}
}

// TestCreateRestorePoint tests restore point capture
func TestCreateRestorePoint(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)
	_ = trk.Start(id)

	rpID, err := trk.CreateRestorePoint(id, RestorePointCampaignCreation,
		map[string]any{"resource_name": "customers/1/campaigns/2"},
		&RestorePointMeta{Name: "Before clone", ResourceID: "2"})
	if err != nil {
		t.Fatalf("CreateRestorePoint failed: %v", err)
	}
	if rpID == "" {
		t.Fatal("empty restore point id")
	}

	points, err := trk.RestorePoints(id)
	if err != nil {
		t.Fatalf("RestorePoints failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("restore points = %d, want 1", len(points))
	}
	rp := points[0]
	if rp.ID != rpID || rp.Type != RestorePointCampaignCreation {
		t.Errorf("restore point = %+v", rp)
	}
	if rp.Metadata == nil || rp.Metadata.Name != "Before clone" {
		t.Errorf("restore point metadata = %+v", rp.Metadata)
	}

	// Capture appends a log entry referencing the new point.
	logs, _ := trk.Logs(id)
	last := logs[len(logs)-1]
	if last.Message != "Restore point created: "+rpID {
		t.Errorf("last log = %q", last.Message)
	}
}

// TestCreateRestorePointErrors tests unknown-id and terminal-state errors
func TestCreateRestorePointErrors(t *testing.T) {
	trk := setupTracker(t)

	if _, err := trk.CreateRestorePoint("nope", RestorePointCampaignUpdate, nil, nil); !IsNotFound(err) {
		t.Errorf("unknown id error = %v, want not-found", err)
	}

	id := trk.Create("campaign_clone", nil)
	_ = trk.Start(id)
	_ = trk.Complete(id)
	if _, err := trk.CreateRestorePoint(id, RestorePointCampaignUpdate, nil, nil); !IsConflict(err) {
		t.Errorf("terminal state error = %v, want conflict", err)
	}
}

// TestLenientModeUnknownID tests that mutators silently no-op by default
func TestLenientModeUnknownID(t *testing.T) {
	trk := setupTracker(t)

	if err := trk.Start("missing"); err != nil {
		t.Errorf("Start = %v, want nil", err)
	}
	if err := trk.UpdateProgress("missing", 50); err != nil {
		t.Errorf("UpdateProgress = %v, want nil", err)
	}
	if err := trk.Complete("missing"); err != nil {
		t.Errorf("Complete = %v, want nil", err)
	}
	if err := trk.Fail("missing", nil); err != nil {
		t.Errorf("Fail = %v, want nil", err)
	}
	if err := trk.Cancel("missing"); err != nil {
		t.Errorf("Cancel = %v, want nil", err)
	}
	if err := trk.AddLog("missing", LevelInfo, "x", nil); err != nil {
		t.Errorf("AddLog = %v, want nil", err)
	}

	// Reads always error.
	if _, err := trk.Get("missing"); !IsNotFound(err) {
		t.Errorf("Get = %v, want not-found", err)
	}
}

// TestStrictModeUnknownID tests that strict mode surfaces unknown ids
func TestStrictModeUnknownID(t *testing.T) {
	trk := setupStrictTracker(t)

	if err := trk.Start("missing"); !IsNotFound(err) {
		t.Errorf("Start = %v, want not-found", err)
	}
	if err := trk.UpdateProgress("missing", 50); !IsNotFound(err) {
		t.Errorf("UpdateProgress = %v, want not-found", err)
	}
	if err := trk.AddLog("missing", LevelInfo, "x", nil); !IsNotFound(err) {
		t.Errorf("AddLog = %v, want not-found", err)
	}
}

// TestSnapshotIsolation tests that returned snapshots do not alias the record
func TestSnapshotIsolation(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", map[string]any{"chunkSize": 5})
	_ = trk.Start(id)

	op, _ := trk.Get(id)
	op.Status = StatusFailed
	op.Metadata["chunkSize"] = 99
	op.Logs = append(op.Logs, LogEntry{Message: "tampered"})

	fresh, _ := trk.Get(id)
	if fresh.Status != StatusRunning {
		t.Errorf("status = %s after snapshot mutation, want running", fresh.Status)
	}
	if fresh.Metadata["chunkSize"] != 5 {
		t.Errorf("metadata = %v after snapshot mutation", fresh.Metadata["chunkSize"])
	}
	if len(fresh.Logs) != 1 {
		t.Errorf("logs = %d entries after snapshot mutation, want 1", len(fresh.Logs))
	}
}

// TestSubscribeReceivesMutations tests snapshot delivery on every mutation
func TestSubscribeReceivesMutations(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)

	var got []Status
	unsub := trk.Subscribe(id, func(op *Operation) {
		got = append(got, op.Status)
	})
	defer unsub()

	_ = trk.Start(id)
	_ = trk.UpdateProgress(id, 50)
	_ = trk.Complete(id)

	// Immediate replay of pending, then one snapshot per mutation.
	want := []Status{StatusPending, StatusRunning, StatusRunning, StatusCompleted}
	if len(got) != len(want) {
		t.Fatalf("notifications = %d, want %d (%v)", len(got), len(want), got)
	}
	for i, s := range want {
		if got[i] != s {
			t.Errorf("notification %d = %s, want %s", i, got[i], s)
		}
	}
}

// TestUnsubscribeStopsDelivery tests that an unsubscribed callback is quiet
func TestUnsubscribeStopsDelivery(t *testing.T) {
	trk := setupTracker(t)
	id := trk.Create("campaign_clone", nil)

	count := 0
	unsub := trk.Subscribe(id, func(op *Operation) { count++ })
	unsub()
	unsub() // safe to call twice

	before := count
	_ = trk.Start(id)
	if count != before {
		t.Errorf("delivery after unsubscribe: count went %d -> %d", before, count)
	}
}
