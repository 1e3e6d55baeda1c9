package prefs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-prefs/pkg/activity"
)

// manualRunner queues background tasks so tests control exactly when the
// load and save pipelines run.
type manualRunner struct {
	queue []func()
}

func (r *manualRunner) Go(fn func()) {
	r.queue = append(r.queue, fn)
}

func (r *manualRunner) drain() int {
	ran := 0
	for len(r.queue) > 0 {
		fn := r.queue[0]
		r.queue = r.queue[1:]
		fn()
		ran++
	}
	return ran
}

// fakeBinding stands in for generated per-type glue. Install marks every
// field changed, matching how real host containers track writes.
type fakeBinding struct {
	value    testPrefs
	dirty    bool
	installs int
}

func (b *fakeBinding) Install(value testPrefs) {
	b.value = value
	b.dirty = true
	b.installs++
}

func (b *fakeBinding) Snapshot() testPrefs {
	return b.value
}

func (b *fakeBinding) Dirty() bool {
	dirty := b.dirty
	b.dirty = false
	return dirty
}

func (b *fakeBinding) edit(mutate func(*testPrefs)) {
	mutate(&b.value)
	b.dirty = true
}

type countingStore struct {
	Store
	writes int
}

func (s *countingStore) Write(ctx context.Context, key string, data []byte) error {
	s.writes++
	return s.Store.Write(ctx, key, data)
}

type failingStore struct {
	readErr  error
	writeErr error
	data     map[string][]byte
}

func (s *failingStore) Read(_ context.Context, key string) ([]byte, bool, error) {
	if s.readErr != nil {
		return nil, false, s.readErr
	}
	data, ok := s.data[key]
	return data, ok, nil
}

func (s *failingStore) Write(_ context.Context, key string, data []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	s.data[key] = data
	return nil
}

type logRecorder struct {
	events []LogEvent
}

func (l *logRecorder) Log(event LogEvent) {
	l.events = append(l.events, event)
}

func (l *logRecorder) opsWithErr() []string {
	var ops []string
	for _, event := range l.events {
		if event.Err != nil {
			ops = append(ops, event.Op)
		}
	}
	return ops
}

func newTestRuntime(t *testing.T, store Store, runner Runner, opts ...Option[testPrefs]) (*Runtime[testPrefs], *fakeBinding) {
	t.Helper()
	binding := &fakeBinding{}
	opts = append([]Option[testPrefs]{WithRunner[testPrefs](runner)}, opts...)
	runtime, err := New(binding, store, Ref{Name: "settings"}, testPrefs{Volume: 50, Difficulty: "normal"}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return runtime, binding
}

func TestNewValidation(t *testing.T) {
	store := NewMemoryStore()
	binding := &fakeBinding{}

	if _, err := New[testPrefs](nil, store, Ref{Name: "settings"}, testPrefs{}); err == nil {
		t.Fatal("expected error for nil binding")
	}
	if _, err := New[testPrefs](binding, nil, Ref{Name: "settings"}, testPrefs{}); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := New[testPrefs](binding, store, Ref{Scope: "user"}, testPrefs{}); err == nil {
		t.Fatal("expected error for incomplete ref")
	}
}

func TestRuntimeFirstRunLoadsDefaults(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: NewMemoryStore()}
	runner := &manualRunner{}
	runtime, binding := newTestRuntime(t, store, runner)

	runtime.Startup(ctx)
	if runtime.Loaded() {
		t.Fatal("loaded before the background task ran")
	}
	if binding.value.Volume != 50 || binding.value.Difficulty != "normal" {
		t.Fatalf("defaults not installed at startup: %+v", binding.value)
	}

	runner.drain()
	runtime.Tick(ctx)

	if !runtime.Loaded() {
		t.Fatal("expected loaded after applying the batch")
	}
	if binding.value.Volume != 50 || binding.value.Difficulty != "normal" {
		t.Fatalf("expected defaults after absent record, got %+v", binding.value)
	}
	if store.writes != 0 {
		t.Fatalf("first run must not save, got %d writes", store.writes)
	}
}

func TestRuntimeTickBeforeLoadCompletes(t *testing.T) {
	ctx := context.Background()
	runner := &manualRunner{}
	runtime, _ := newTestRuntime(t, NewMemoryStore(), runner)

	runtime.Startup(ctx)
	runtime.Tick(ctx)
	if runtime.Loaded() {
		t.Fatal("load applied before the background task completed")
	}

	runner.drain()
	runtime.Tick(ctx)
	if !runtime.Loaded() {
		t.Fatal("expected loaded once the batch was polled")
	}
}

func TestRuntimeLoadTickDoesNotSave(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: NewMemoryStore()}
	if err := store.Write(ctx, "settings", []byte(`{"volume": 60, "difficulty": "hard"}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store.writes = 0

	runner := &manualRunner{}
	runtime, binding := newTestRuntime(t, store, runner)
	runtime.Startup(ctx)
	runner.drain()

	// The apply tick installs fresh values into every field; that must not
	// look like a user edit.
	runtime.Tick(ctx)
	if got := runner.drain(); got != 0 {
		t.Fatalf("save spawned on the load tick, %d tasks", got)
	}
	runtime.Tick(ctx)
	if got := runner.drain(); got != 0 {
		t.Fatalf("change flags leaked past the load tick, %d tasks", got)
	}
	if store.writes != 0 {
		t.Fatalf("expected no writes, got %d", store.writes)
	}
	if binding.value.Volume != 60 || binding.value.Difficulty != "hard" {
		t.Fatalf("stored record not installed: %+v", binding.value)
	}
}

func TestRuntimeSavesOncePerTick(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: NewMemoryStore()}
	runner := &manualRunner{}
	runtime, binding := newTestRuntime(t, store, runner)

	runtime.Startup(ctx)
	runner.drain()
	runtime.Tick(ctx)

	// Two fields change between ticks; the trigger coalesces them into one
	// snapshot save.
	binding.edit(func(p *testPrefs) { p.Volume = 65 })
	binding.edit(func(p *testPrefs) { p.Difficulty = "hard" })
	runtime.Tick(ctx)
	if got := runner.drain(); got != 1 {
		t.Fatalf("expected exactly one save task, got %d", got)
	}
	if store.writes != 1 {
		t.Fatalf("expected one write, got %d", store.writes)
	}

	data, ok, err := store.Read(ctx, "settings")
	if err != nil || !ok {
		t.Fatalf("read back: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(string(data), `"volume": 65`) || !strings.Contains(string(data), `"hard"`) {
		t.Fatalf("snapshot missing coalesced edits: %s", data)
	}

	// Quiet ticks spawn nothing.
	runtime.Tick(ctx)
	runtime.Tick(ctx)
	if got := runner.drain(); got != 0 {
		t.Fatalf("save spawned without changes, %d tasks", got)
	}
}

func TestRuntimeRestartRestoresPersistedValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	runner := &manualRunner{}

	runtime, binding := newTestRuntime(t, store, runner)
	runtime.Startup(ctx)
	runner.drain()
	runtime.Tick(ctx)

	binding.edit(func(p *testPrefs) { p.Volume = 60 })
	runtime.Tick(ctx)
	runner.drain()

	restarted, restartedBinding := newTestRuntime(t, store, runner)
	restarted.Startup(ctx)
	runner.drain()
	restarted.Tick(ctx)

	if !restarted.Loaded() {
		t.Fatal("expected loaded after restart")
	}
	if restartedBinding.value.Volume != 60 {
		t.Fatalf("expected persisted volume 60, got %d", restartedBinding.value.Volume)
	}
	if restartedBinding.value.Difficulty != "normal" {
		t.Fatalf("expected persisted difficulty normal, got %q", restartedBinding.value.Difficulty)
	}
}

func TestRuntimeCorruptRecordDegradesToDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Write(ctx, "settings", []byte(`{{{ corrupt`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	runner := &manualRunner{}
	recorder := &logRecorder{}
	runtime, binding := newTestRuntime(t, store, runner, WithLogger[testPrefs](recorder))
	runtime.Startup(ctx)
	runner.drain()
	runtime.Tick(ctx)

	if !runtime.Loaded() {
		t.Fatal("corrupt record must still complete the load")
	}
	if binding.value.Volume != 50 || binding.value.Difficulty != "normal" {
		t.Fatalf("expected defaults, got %+v", binding.value)
	}

	ops := recorder.opsWithErr()
	if len(ops) != 1 || ops[0] != "decode" {
		t.Fatalf("expected one decode error event, got %v", ops)
	}
}

func TestRuntimeStoreReadErrorDegradesToDefaults(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{readErr: errors.New("backend offline")}
	runner := &manualRunner{}
	recorder := &logRecorder{}
	runtime, binding := newTestRuntime(t, store, runner, WithLogger[testPrefs](recorder))

	runtime.Startup(ctx)
	runner.drain()
	runtime.Tick(ctx)

	if !runtime.Loaded() {
		t.Fatal("read failure must still complete the load")
	}
	if binding.value.Volume != 50 {
		t.Fatalf("expected defaults, got %+v", binding.value)
	}
	if ops := recorder.opsWithErr(); len(ops) != 1 || ops[0] != "load" {
		t.Fatalf("expected one load error event, got %v", ops)
	}
}

func TestRuntimeGuardRejectsRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Write(ctx, "settings", []byte(`{"volume": 900, "difficulty": "hard"}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	runner := &manualRunner{}
	recorder := &logRecorder{}
	runtime, binding := newTestRuntime(t, store, runner,
		WithLogger[testPrefs](recorder),
		WithGuard[testPrefs]("volume <= 100"),
	)
	runtime.Startup(ctx)
	runner.drain()
	runtime.Tick(ctx)

	if binding.value.Volume != 50 {
		t.Fatalf("rejected record leaked into the binding: %+v", binding.value)
	}

	found := false
	for _, event := range recorder.events {
		if event.Op == "rule" && event.Err != nil {
			var ruleErr *RuleError
			if !errors.As(event.Err, &ruleErr) {
				t.Fatalf("expected *RuleError, got %T", event.Err)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("expected a rule rejection event")
	}
}

func TestRuntimeGuardAcceptsRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Write(ctx, "settings", []byte(`{"volume": 70, "difficulty": "hard"}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	runner := &manualRunner{}
	runtime, binding := newTestRuntime(t, store, runner,
		WithGuard[testPrefs]("volume <= 100", `difficulty in ["easy", "normal", "hard"]`),
	)
	runtime.Startup(ctx)
	runner.drain()
	runtime.Tick(ctx)

	if binding.value.Volume != 70 || binding.value.Difficulty != "hard" {
		t.Fatalf("accepted record not installed: %+v", binding.value)
	}
}

func TestRuntimeSaveFailureIsLoggedAndRetried(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{writeErr: errors.New("disk full")}
	runner := &manualRunner{}
	recorder := &logRecorder{}
	runtime, binding := newTestRuntime(t, store, runner, WithLogger[testPrefs](recorder))

	runtime.Startup(ctx)
	runner.drain()
	runtime.Tick(ctx)

	binding.edit(func(p *testPrefs) { p.Volume = 75 })
	runtime.Tick(ctx)
	runner.drain()

	if ops := recorder.opsWithErr(); len(ops) != 1 || ops[0] != "write" {
		t.Fatalf("expected one write error event, got %v", ops)
	}

	// The failed save dropped its snapshot; the next edit retries.
	store.writeErr = nil
	binding.edit(func(p *testPrefs) { p.Volume = 80 })
	runtime.Tick(ctx)
	runner.drain()

	data, ok := store.data["settings"]
	if !ok {
		t.Fatal("expected record after retry")
	}
	if !strings.Contains(string(data), `"volume": 80`) {
		t.Fatalf("retry snapshot stale: %s", data)
	}
}

func TestRuntimeEmitsLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	runner := &manualRunner{}
	capture := &activity.CaptureHook{}
	emitter := activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: true})

	runtime, binding := newTestRuntime(t, store, runner,
		WithEmitter[testPrefs](emitter),
		WithIdentity[testPrefs](activity.Identity{ActorID: "tester"}),
	)
	runtime.Startup(ctx)
	runner.drain()
	runtime.Tick(ctx)

	binding.edit(func(p *testPrefs) { p.Volume = 90 })
	runtime.Tick(ctx)
	runner.drain()

	verbs := make([]string, 0, len(capture.Events))
	for _, event := range capture.Events {
		verbs = append(verbs, event.Verb)
	}
	if len(verbs) != 2 || verbs[0] != "prefs.loaded" || verbs[1] != "prefs.saved" {
		t.Fatalf("unexpected event verbs: %v", verbs)
	}
	for _, event := range capture.Events {
		if event.ObjectID != "settings" || event.ObjectType != "prefs" {
			t.Fatalf("unexpected event object: %+v", event)
		}
		if event.ActorID != "tester" {
			t.Fatalf("identity not attributed: %+v", event)
		}
	}
}
