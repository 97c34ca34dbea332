package mockapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/vssflow/internal/gateway"
	"github.com/starford/vssflow/internal/graph"
	"github.com/starford/vssflow/internal/models"
	"github.com/starford/vssflow/internal/testutil"
	"github.com/starford/vssflow/internal/vssapi"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(testutil.TestDB(t), discard()))
	t.Cleanup(srv.Close)
	return srv
}

func decodeEnvelope(t *testing.T, resp *http.Response) models.Envelope[json.RawMessage] {
	t.Helper()
	defer resp.Body.Close()
	var env models.Envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestEnvelopeShape(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/scripts")
	if err != nil {
		t.Fatal(err)
	}
	env := decodeEnvelope(t, resp)
	if env.Code != http.StatusOK || env.Timestamp == "" || string(env.Data) != "[]" {
		t.Errorf("envelope = %+v data=%s", env, env.Data)
	}
}

func TestSaveRequiresName(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Post(srv.URL+"/scripts", "application/json", strings.NewReader(`{"content":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	env := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusBadRequest || env.Message != "name is required" {
		t.Errorf("status %d, envelope %+v", resp.StatusCode, env)
	}
}

func TestRunUnknownScript(t *testing.T) {
	srv := newServer(t)
	client := vssapi.New(srv.URL, vssapi.WithLogger(discard()))
	err := client.RunScript(context.Background(), "ghost")
	if err == nil || err.Error() != "script not found" {
		t.Errorf("err = %v, want server message", err)
	}
}

func TestClientRoundTrip(t *testing.T) {
	srv := newServer(t)
	client := vssapi.New(srv.URL, vssapi.WithLogger(discard()))
	ctx := context.Background()

	saved, err := client.SaveScript(ctx, models.Script{Name: "cap check", Content: json.RawMessage(`[]`)})
	if err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("no id assigned")
	}
	if err := client.RunScript(ctx, saved.ID); err != nil {
		t.Fatalf("RunScript: %v", err)
	}

	resp, err := http.Get(srv.URL + "/scripts/run/" + saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	env := decodeEnvelope(t, resp)
	var runs []models.RunReceipt
	if err := json.Unmarshal(env.Data, &runs); err != nil || len(runs) != 1 {
		t.Errorf("runs = %s (%v)", env.Data, err)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/scripts/"+saved.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp, _ = http.Get(srv.URL + "/scripts/" + saved.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
}

// Saving through the gateway and opening in a fresh session reproduces the
// graph, with the SQLite-backed mock echoing what was stored.
func TestGatewayRoundTrip(t *testing.T) {
	srv := newServer(t)
	client := vssapi.New(srv.URL, vssapi.WithLogger(discard()))
	ctx := context.Background()

	src := graph.New()
	a, _ := src.AddNode(graph.KindDataSource, graph.Position{X: 150, Y: 100})
	b, _ := src.AddNode(graph.KindLoop, graph.Position{X: 300, Y: 100})
	c, _ := src.AddNode(graph.KindOutput, graph.Position{X: 450, Y: 100})
	three := 3
	if _, err := src.UpdateNode(b.ID, graph.Patch{Iteration: &three}); err != nil {
		t.Fatal(err)
	}
	for _, p := range [][2]string{{a.ID, b.ID}, {b.ID, b.ID}, {b.ID, c.ID}} {
		if _, err := src.Connect(p[0], p[1]); err != nil {
			t.Fatal(err)
		}
	}

	gw := gateway.New(client, src, nil, gateway.WithLogger(discard()))
	saved, err := gw.Save(ctx, "loop demo")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst := graph.New()
	gw2 := gateway.New(client, dst, nil, gateway.WithLogger(discard()))
	if _, err := gw2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := gw2.Open(saved.ID); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if want, got := src.Snapshot(), dst.Snapshot(); !reflect.DeepEqual(want, got) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, want)
	}
	if err := gw2.Run(ctx, ""); err != nil {
		t.Errorf("Run bound script: %v", err)
	}
}
