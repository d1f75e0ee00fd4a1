package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bdobrica/aether/internal/aether/api"
	"github.com/bdobrica/aether/internal/aether/character"
	"github.com/bdobrica/aether/internal/aether/chat"
	"github.com/bdobrica/aether/internal/aether/config"
	"github.com/bdobrica/aether/internal/aether/llm"
	"github.com/bdobrica/aether/internal/aether/memory"
	"github.com/bdobrica/aether/internal/aether/store"
)

// fakeLLM answers both Chat and Complete from fixed replies.
type fakeLLM struct {
	mu       sync.Mutex
	cfg      llm.Config
	chat     []string
	complete string
	err      error
	calls    int
}

func (f *fakeLLM) Chat(ctx context.Context, msgs []llm.Message, temp float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.chat) == 0 {
		return "ok.", nil
	}
	reply := f.chat[0]
	f.chat = f.chat[1:]
	return reply, nil
}

func (f *fakeLLM) Complete(ctx context.Context, sys, user string, temp float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.complete, f.err
}

func (f *fakeLLM) SetConfig(c llm.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = c
}

func (f *fakeLLM) Config() llm.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// busyEngine rejects every cycle.
type busyEngine struct{}

func (busyEngine) SendAsync(context.Context, string, chat.Input, func(*chat.Result, error)) error {
	return chat.ErrCycleInFlight
}
func (busyEngine) RegenerateAsync(context.Context, string, func(*chat.Result, error)) error {
	return chat.ErrCycleInFlight
}
func (busyEngine) Status(id string) chat.Status {
	return chat.Status{CharID: id, State: chat.StateSending}
}

type testEnv struct {
	srv   *api.Server
	store *store.Store
	llm   *fakeLLM
	cfg   config.Store
}

func newTestEnv(t *testing.T, engine api.Conversations) *testEnv {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "api-test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fake := &fakeLLM{cfg: llm.Config{BaseURL: "https://boot.example/v1", Model: "boot", APIKey: "sk-boot-secret-key"}}
	hub := api.NewHub(nil)
	if engine == nil {
		eng := chat.NewEngine(chat.Config{
			MinChunkDelay: time.Microsecond,
			MaxChunkDelay: time.Microsecond,
			PerCharDelay:  time.Nanosecond,
			ChunkPause:    time.Microsecond,
		}, st, st, fake, nil)
		eng.SetObserver(hub)
		engine = eng
	}

	cfgStore := config.New(st)
	srv := api.NewServer(api.Deps{
		Store:     st,
		Archivist: memory.NewArchivist(st, fake, nil),
		Engine:    engine,
		Hub:       hub,
		Settings:  cfgStore,
		Endpoint:  fake,
		BootLLM:   fake.cfg,
		Version:   "test",
	})
	return &testEnv{srv: srv, store: st, llm: fake, cfg: cfgStore}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) character(t *testing.T, p *character.Profile) string {
	t.Helper()
	if err := e.store.CreateCharacter(context.Background(), p); err != nil {
		t.Fatalf("CreateCharacter: %v", err)
	}
	return p.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["api_configured"] != true {
		t.Errorf("health = %v", body)
	}
}

func TestCharacterCRUD(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/characters", map[string]any{
		"name":     "Mika",
		"memories": []map[string]string{{"date": "2023-05-01", "summary": "park"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}
	created := decode[character.Profile](t, rec)
	if created.ID == "" {
		t.Fatal("created character has no id")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/characters/"+created.ID, nil)
	got := decode[character.Profile](t, rec)
	if got.Name != "Mika" || len(got.Memories) != 1 {
		t.Errorf("get = %+v", got)
	}

	rec = env.do(t, http.MethodPut, "/api/v1/characters/"+created.ID, map[string]any{"name": "Mika II"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body)
	}
	if got := decode[character.Profile](t, rec); got.Name != "Mika II" || len(got.Memories) != 1 {
		t.Errorf("update without memories should keep them: %+v", got)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/characters/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/characters/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", rec.Code)
	}
	if body := decode[map[string]map[string]string](t, rec); body["error"]["code"] != "NOT_FOUND" {
		t.Errorf("error body = %v", body)
	}
}

func TestCreateCharacter_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	if rec := env.do(t, http.MethodPost, "/api/v1/characters", map[string]any{"name": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty name status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/characters", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}
}

func TestMemoryTreeAndRefine(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.character(t, &character.Profile{Name: "C", Memories: []memory.Fragment{
		{Date: "2023-05-01", Summary: "a"},
		{Date: "2023-05-09", Summary: "b"},
		{Date: "someday", Summary: "c"},
	}})
	env.llm.complete = "A calm May."

	rec := env.do(t, http.MethodGet, "/api/v1/characters/"+id+"/memories/tree", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tree status = %d", rec.Code)
	}
	tree := decode[struct {
		Tree  memory.Tree  `json:"tree"`
		Stats memory.Stats `json:"stats"`
	}](t, rec)
	if tree.Stats.Count != 3 || len(tree.Tree) != 2 {
		t.Errorf("tree = %+v", tree)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/characters/"+id+"/memories/refine", map[string]string{"year": "2023", "month": "5"})
	if rec.Code != http.StatusOK {
		t.Fatalf("refine status = %d body=%s", rec.Code, rec.Body)
	}
	if got := decode[map[string]string](t, rec); got["key"] != "2023-05" || got["summary"] != "A calm May." {
		t.Errorf("refine = %v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/characters/"+id+"/memories/refine", map[string]string{"year": "2022", "month": "01"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("refine of empty month status = %d", rec.Code)
	}
}

func TestRefine_UpstreamFailureMapsTo502(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.character(t, &character.Profile{Name: "C", Memories: []memory.Fragment{{Date: "2023-05-01", Summary: "a"}}})
	env.llm.err = errors.Join(llm.ErrTransport, errors.New("HTTP 500"))

	rec := env.do(t, http.MethodPost, "/api/v1/characters/"+id+"/memories/refine", map[string]string{"year": "2023", "month": "05"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	idx, _ := env.store.GetRefinedIndex(context.Background(), id)
	if len(idx) != 0 {
		t.Errorf("failed refine stored a summary: %v", idx)
	}
}

func TestImportAndExport(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.character(t, &character.Profile{Name: "Mika"})
	env.llm.complete = "```json\n[{\"date\":\"2023-05-01\",\"summary\":\"picnic\",\"mood\":\"happy\"}]\n```"

	rec := env.do(t, http.MethodPost, "/api/v1/characters/"+id+"/memories/import", map[string]string{"text": "we had a picnic"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("import status = %d body=%s", rec.Code, rec.Body)
	}
	got := decode[map[string][]memory.Fragment](t, rec)
	if len(got["imported"]) != 1 || got["imported"][0].Summary != "picnic" {
		t.Errorf("imported = %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/characters/"+id+"/memories/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "picnic") || !strings.Contains(rec.Body.String(), "Mika") {
		t.Errorf("export missing content: %s", rec.Body)
	}
}

func TestPostMessage_WithoutReplyOnlyLogs(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.character(t, &character.Profile{Name: "C"})

	rec := env.do(t, http.MethodPost, "/api/v1/characters/"+id+"/messages", map[string]any{"content": "hello"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if env.llm.calls != 0 {
		t.Errorf("endpoint called %d times without reply", env.llm.calls)
	}
	msgs, _ := env.store.ListMessages(context.Background(), id)
	if len(msgs) != 1 || msgs[0].Role != chat.RoleUser {
		t.Errorf("log = %+v", msgs)
	}
}

func TestPostMessage_RejectsSameInputWithOrWithoutReply(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"blank text", map[string]any{"content": "   "}},
		{"empty text", map[string]any{"type": "text"}},
		{"unknown type", map[string]any{"type": "fax", "content": "x"}},
	}
	for _, tc := range tests {
		for _, reply := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s reply=%v", tc.name, reply), func(t *testing.T) {
				env := newTestEnv(t, nil)
				id := env.character(t, &character.Profile{Name: "C"})
				body := map[string]any{"reply": reply}
				for k, v := range tc.body {
					body[k] = v
				}

				rec := env.do(t, http.MethodPost, "/api/v1/characters/"+id+"/messages", body)
				if rec.Code != http.StatusBadRequest {
					t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
				}
				if msgs, _ := env.store.ListMessages(context.Background(), id); len(msgs) != 0 {
					t.Errorf("rejected message logged: %+v", msgs)
				}
			})
		}
	}
}

func TestPostMessage_ReplyDeliversChunks(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.character(t, &character.Profile{Name: "C"})
	env.llm.chat = []string{"Hi there! Nice to see you."}

	rec := env.do(t, http.MethodPost, "/api/v1/characters/"+id+"/messages", map[string]any{"content": "hello", "reply": true})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		msgs, _ := env.store.ListMessages(context.Background(), id)
		if len(msgs) == 3 {
			if msgs[1].Content != "Hi there" || msgs[2].Content != "Nice to see you" {
				t.Errorf("chunks = %q, %q", msgs[1].Content, msgs[2].Content)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("reply not delivered, log = %+v", msgs)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPostMessage_BusyIs409(t *testing.T) {
	env := newTestEnv(t, busyEngine{})
	id := env.character(t, &character.Profile{Name: "C"})

	rec := env.do(t, http.MethodPost, "/api/v1/characters/"+id+"/messages", map[string]any{"content": "hi", "reply": true})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/v1/characters/"+id+"/regenerate", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("regenerate status = %d", rec.Code)
	}
}

func TestListAndClearMessages(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.character(t, &character.Profile{Name: "C"})
	ctx := context.Background()
	for _, c := range []string{"1", "2", "3"} {
		env.store.AppendMessage(ctx, id, chat.RoleUser, chat.TypeText, c, nil)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/characters/"+id+"/messages?limit=2", nil)
	got := decode[map[string][]chat.Message](t, rec)
	if len(got["messages"]) != 2 || got["messages"][0].Content != "2" {
		t.Errorf("messages = %+v", got)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/characters/"+id+"/messages?limit=x", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/characters/"+id+"/messages", nil)
	if got := decode[map[string]int64](t, rec); got["deleted"] != 3 {
		t.Errorf("deleted = %v", got)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.character(t, &character.Profile{Name: "C"})

	rec := env.do(t, http.MethodGet, "/api/v1/characters/"+id+"/status", nil)
	if got := decode[chat.Status](t, rec); got.State != chat.StateIdle {
		t.Errorf("status = %+v", got)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/characters/nobody/status", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown character status = %d", rec.Code)
	}
}

func TestAPISettings_KeyNeverEchoed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/settings/api", nil)
	if strings.Contains(rec.Body.String(), "sk-boot-secret-key") {
		t.Fatalf("GET leaked the key: %s", rec.Body)
	}

	rec = env.do(t, http.MethodPut, "/api/v1/settings/api", map[string]string{
		"base_url": "https://runtime.example/v1",
		"api_key":  "sk-runtime-secret-key",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d body=%s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "sk-runtime-secret-key") {
		t.Fatalf("PUT leaked the key: %s", rec.Body)
	}

	live := env.llm.Config()
	if live.BaseURL != "https://runtime.example/v1" || live.APIKey != "sk-runtime-secret-key" || live.Model != "boot" {
		t.Errorf("live config = %+v", live)
	}
	stored, _ := env.cfg.Get(context.Background(), config.KeyAPIKey)
	if stored != "sk-runtime-secret-key" {
		t.Errorf("stored key = %q", stored)
	}

	rec = env.do(t, http.MethodPut, "/api/v1/settings/api", map[string]string{"base_url": "ftp://nope"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad url status = %d", rec.Code)
	}
}

func TestEvents_StreamsStatusAndMessages(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.character(t, &character.Profile{Name: "C"})

	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/characters/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first api.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial event: %v", err)
	}
	if first.Type != "status" {
		t.Fatalf("initial event type = %q", first.Type)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/characters/"+id+"/messages", map[string]any{"content": "ping"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("post status = %d", rec.Code)
	}

	var ev struct {
		Type    string       `json:"type"`
		Payload chat.Message `json:"payload"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read message event: %v", err)
	}
	if ev.Type != "message" || ev.Payload.Content != "ping" {
		t.Errorf("event = %+v", ev)
	}
}
