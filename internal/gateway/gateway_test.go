package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/graph"
	"github.com/starford/vssflow/internal/models"
	"github.com/starford/vssflow/internal/vssapi"
)

// echoBackend stores whatever is saved and returns it on list.
type echoBackend struct {
	mu      sync.Mutex
	scripts []models.Script
	nextID  int
	listErr error
	saveErr error
	runErr  error
	lists   atomic.Int32
	ran     []string
	block   chan struct{}
}

func (b *echoBackend) ListScripts(ctx context.Context) ([]models.Script, error) {
	b.lists.Add(1)
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]models.Script(nil), b.scripts...), nil
}

func (b *echoBackend) SaveScript(ctx context.Context, s models.Script) (*models.Script, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return nil, b.saveErr
	}
	if s.ID == "" {
		b.nextID++
		s.ID = fmt.Sprintf("s%d", b.nextID)
	}
	for i := range b.scripts {
		if b.scripts[i].ID == s.ID {
			b.scripts[i] = s
			return &s, nil
		}
	}
	b.scripts = append(b.scripts, s)
	return &s, nil
}

func (b *echoBackend) RunScript(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runErr != nil {
		return b.runErr
	}
	b.ran = append(b.ran, id)
	return nil
}

type recorder struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
}

func (r *recorder) last(t *testing.T) Notification {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.got) == 0 {
		t.Fatal("no notification")
	}
	return r.got[len(r.got)-1]
}

func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func buildGraph(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.New(graph.WithIDFunc(seqIDs("n")))
	src, _ := s.AddNode(graph.KindDataSource, graph.Position{X: 10, Y: 20})
	br, _ := s.AddNode(graph.KindBranch, graph.Position{X: 200, Y: 20})
	out, _ := s.AddNode(graph.KindOutput, graph.Position{X: 400, Y: 20})
	op := graph.OpGreater
	ten := 10.0
	if _, err := s.UpdateNode(br.ID, graph.Patch{Operator: &op, Value: &ten}); err != nil {
		t.Fatal(err)
	}
	for _, pair := range [][2]string{{src.ID, br.ID}, {br.ID, out.ID}} {
		if _, err := s.Connect(pair[0], pair[1]); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	backend := &echoBackend{}
	src := buildGraph(t)
	gw := New(backend, src, nil, quiet())

	saved, err := gw.Save(context.Background(), "inspection line 1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("saved script has no id")
	}

	dst := graph.New(graph.WithIDFunc(seqIDs("m")))
	gw2 := New(backend, dst, nil, quiet())
	scripts, err := gw2.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(scripts) != 1 {
		t.Fatalf("scripts = %d, want 1", len(scripts))
	}
	if _, err := gw2.Open(saved.ID); err != nil {
		t.Fatalf("Open: %v", err)
	}

	want, got := src.Snapshot(), dst.Snapshot()
	if len(got.Nodes) != len(want.Nodes) || len(got.Edges) != len(want.Edges) {
		t.Fatalf("counts = %d/%d, want %d/%d", len(got.Nodes), len(got.Edges), len(want.Nodes), len(want.Edges))
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, want)
	}
	if st := gw2.Status(); st.ScriptID != saved.ID || st.Name != "inspection line 1" || st.Dirty {
		t.Errorf("status = %+v", st)
	}
}

func TestFailedSaveLeavesGraphUnchanged(t *testing.T) {
	backend := &echoBackend{saveErr: &vssapi.Error{Status: http.StatusInternalServerError}}
	store := buildGraph(t)
	rec := &recorder{}
	gw := New(backend, store, rec, quiet())

	before, version := store.Snapshot(), store.Version()
	if _, err := gw.Save(context.Background(), "x"); err == nil {
		t.Fatal("expected save error")
	}
	if !reflect.DeepEqual(store.Snapshot(), before) || store.Version() != version {
		t.Error("graph changed after failed save")
	}
	n := rec.last(t)
	if n.Level != LevelError || n.Action != OpSave || n.Message != "HTTP 500" {
		t.Errorf("notification = %+v", n)
	}
	if st := gw.Status(); st.ScriptID != "" {
		t.Errorf("failed save bound script %q", st.ScriptID)
	}
}

func TestSaveHTTP500AgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := buildGraph(t)
	before := store.Snapshot()
	beforeJSON, _ := json.Marshal(before)
	rec := &recorder{}
	client := vssapi.New(srv.URL, vssapi.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	gw := New(client, store, rec, quiet())

	_, err := gw.Save(context.Background(), "demo")
	var apiErr *vssapi.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("err = %v", err)
	}
	afterJSON, _ := json.Marshal(store.Snapshot())
	if string(afterJSON) != string(beforeJSON) {
		t.Errorf("graph changed:\nbefore %s\nafter  %s", beforeJSON, afterJSON)
	}
	if n := rec.last(t); n.Level != LevelError || n.Message != "HTTP 500" {
		t.Errorf("notification = %+v", n)
	}
}

func TestServerMessageVerbatim(t *testing.T) {
	backend := &echoBackend{runErr: &vssapi.Error{Status: http.StatusConflict, Message: "script is already running"}}
	rec := &recorder{}
	gw := New(backend, graph.New(), rec, quiet())

	if err := gw.Run(context.Background(), "s9"); err == nil {
		t.Fatal("expected run error")
	}
	if n := rec.last(t); n.Message != "script is already running" || n.ScriptID != "s9" {
		t.Errorf("notification = %+v", n)
	}
}

func TestTransportFailureGenericMessage(t *testing.T) {
	backend := &echoBackend{listErr: &vssapi.TransportError{Endpoint: vssapi.EndpointScripts, Err: errors.New("connection refused")}}
	rec := &recorder{}
	store := graph.New()
	before := store.Snapshot()
	gw := New(backend, store, rec, quiet())

	if _, err := gw.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if n := rec.last(t); n.Level != LevelError || n.Action != OpLoad || n.Message != msgLoadFailed {
		t.Errorf("notification = %+v", n)
	}
	if !reflect.DeepEqual(store.Snapshot(), before) {
		t.Error("failed load touched the graph")
	}
}

func TestLoadSingleFlight(t *testing.T) {
	backend := &echoBackend{block: make(chan struct{})}
	gw := New(backend, graph.New(), nil, quiet())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = gw.Load(context.Background())
		}()
	}
	// Let the callers pile up behind the first request.
	time.Sleep(50 * time.Millisecond)
	close(backend.block)
	wg.Wait()

	if n := backend.lists.Load(); n != 1 {
		t.Errorf("ListScripts called %d times, want 1", n)
	}
}

func TestOpenMalformedLeavesGraph(t *testing.T) {
	backend := &echoBackend{scripts: []models.Script{
		{ID: "bad", Name: "broken", Content: json.RawMessage(`[{"type":"edge","source":"a","target":"b"}]`)},
	}}
	store := buildGraph(t)
	before := store.Snapshot()
	rec := &recorder{}
	gw := New(backend, store, rec, quiet())
	if _, err := gw.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := gw.Open("bad"); err == nil {
		t.Fatal("expected open error")
	}
	if !reflect.DeepEqual(store.Snapshot(), before) {
		t.Error("graph changed after malformed open")
	}
	if n := rec.last(t); n.Level != LevelError || n.Action != OpOpen {
		t.Errorf("notification = %+v", n)
	}
	if _, err := gw.Open("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("open missing err = %v", err)
	}
}

func TestOpenEmptyContentSeeds(t *testing.T) {
	backend := &echoBackend{scripts: []models.Script{{ID: "s1", Name: "blank"}}}
	store := buildGraph(t)
	gw := New(backend, store, nil, quiet(), WithIDFunc(seqIDs("seed")))
	if _, err := gw.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := gw.Open("s1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := store.Snapshot()
	if len(got.Nodes) != 2 || len(got.Edges) != 0 {
		t.Fatalf("graph = %+v, want seed", got)
	}
	if got.Nodes[0].Kind != graph.KindInput || got.Nodes[1].Kind != graph.KindTerminalOutput {
		t.Errorf("seed kinds = %s, %s", got.Nodes[0].Kind, got.Nodes[1].Kind)
	}
}

func TestSaveUpdatesBoundScript(t *testing.T) {
	backend := &echoBackend{}
	store := buildGraph(t)
	gw := New(backend, store, nil, quiet())

	first, err := gw.Save(context.Background(), "v1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddNode(graph.KindVariable, graph.Position{}); err != nil {
		t.Fatal(err)
	}
	if !gw.Status().Dirty {
		t.Error("status not dirty after mutation")
	}
	second, err := gw.Save(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID || second.Name != "v1" {
		t.Errorf("second save = %+v, want update of %s", second, first.ID)
	}
	if len(backend.scripts) != 1 {
		t.Errorf("backend has %d scripts, want 1", len(backend.scripts))
	}
	gw.mu.Lock()
	cached := len(gw.scripts)
	gw.mu.Unlock()
	if cached != 1 {
		t.Errorf("cached scripts = %d, want 1", cached)
	}
}

func TestSaveRequiresName(t *testing.T) {
	gw := New(&echoBackend{}, graph.New(), nil, quiet())
	if _, err := gw.Save(context.Background(), ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestRunUsesBoundScript(t *testing.T) {
	backend := &echoBackend{}
	rec := &recorder{}
	gw := New(backend, buildGraph(t), rec, quiet())

	if err := gw.Run(context.Background(), ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("run without script err = %v", err)
	}
	saved, err := gw.Save(context.Background(), "runner")
	if err != nil {
		t.Fatal(err)
	}
	if err := gw.Run(context.Background(), ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(backend.ran) != 1 || backend.ran[0] != saved.ID {
		t.Errorf("ran = %v", backend.ran)
	}
	if n := rec.last(t); n.Level != LevelSuccess || n.Action != OpRun {
		t.Errorf("notification = %+v", n)
	}
}

// slowBackend answers after delay regardless of the caller's context.
type slowBackend struct {
	echoBackend
	delay     time.Duration
	completed atomic.Int32
}

func (b *slowBackend) wait(ctx context.Context) error {
	select {
	case <-time.After(b.delay):
		b.completed.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *slowBackend) ListScripts(ctx context.Context) ([]models.Script, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	return b.echoBackend.ListScripts(ctx)
}

func (b *slowBackend) SaveScript(ctx context.Context, s models.Script) (*models.Script, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	return b.echoBackend.SaveScript(ctx, s)
}

func (b *slowBackend) RunScript(ctx context.Context, id string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	return b.echoBackend.RunScript(ctx, id)
}

func TestSaveSurvivesCallerCancel(t *testing.T) {
	backend := &slowBackend{delay: 150 * time.Millisecond}
	rec := &recorder{}
	gw := New(backend, buildGraph(t), rec, quiet())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	saved, err := gw.Save(ctx, "line B")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if st := gw.Status(); st.ScriptID != saved.ID || st.Dirty {
		t.Errorf("status = %+v, want bound to %s", st, saved.ID)
	}
	if n := rec.last(t); n.Level != LevelSuccess || n.Action != OpSave {
		t.Errorf("notification = %+v", n)
	}

	// A second save updates the same script instead of creating another.
	if _, err := gw.Save(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if len(backend.scripts) != 1 {
		t.Errorf("backend has %d scripts, want 1", len(backend.scripts))
	}

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := gw.Run(ctx, ""); err != nil {
		t.Errorf("Run with cancelled ctx: %v", err)
	}
	if n := backend.completed.Load(); n != 3 {
		t.Errorf("completed backend calls = %d, want 3", n)
	}
}

func TestSharedLoadIgnoresFirstCallerCancel(t *testing.T) {
	backend := &slowBackend{delay: 150 * time.Millisecond}
	backend.scripts = []models.Script{{ID: "s1", Name: "a"}}
	gw := New(backend, graph.New(), nil, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := gw.Load(ctx)
		errA <- err
	}()
	time.Sleep(30 * time.Millisecond)

	errB := make(chan error, 1)
	var gotB []models.Script
	go func() {
		var err error
		gotB, err = gw.Load(context.Background())
		errB <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-errA; err != nil {
		t.Errorf("first caller: %v", err)
	}
	if err := <-errB; err != nil {
		t.Fatalf("second caller: %v", err)
	}
	if len(gotB) != 1 {
		t.Errorf("scripts = %d, want 1", len(gotB))
	}
}
