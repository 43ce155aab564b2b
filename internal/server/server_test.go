package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/skill-gap-wizard/internal/blob"
	"github.com/jonathan/skill-gap-wizard/internal/extraction"
	"github.com/jonathan/skill-gap-wizard/internal/persistence"
	"github.com/jonathan/skill-gap-wizard/internal/requirements"
	"github.com/jonathan/skill-gap-wizard/internal/roles"
	"github.com/jonathan/skill-gap-wizard/internal/server/ratelimit"
	"github.com/jonathan/skill-gap-wizard/internal/wizard"
)

const testDelay = 20 * time.Millisecond

type stubExtractor struct {
	mu    sync.Mutex
	calls []string
}

func (e *stubExtractor) Extract(_ context.Context, f extraction.File) (*extraction.Response, error) {
	e.mu.Lock()
	e.calls = append(e.calls, f.Name)
	e.mu.Unlock()
	if strings.HasPrefix(f.Name, "bad") {
		return nil, errors.New("unreadable")
	}
	return &extraction.Response{Text: "text of " + f.Name}, nil
}

func (e *stubExtractor) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

type stubRoles struct{ err error }

func (r stubRoles) Search(_ context.Context, q string) ([]roles.Role, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []roles.Role{{ID: "r1", Title: "Backend Engineer (" + q + ")"}}, nil
}

type stubGenerator struct{ err error }

func (g stubGenerator) Generate(_ context.Context, req requirements.Request) (*requirements.Requirements, error) {
	if g.err != nil {
		return nil, g.err
	}
	if err := req.Validate(); err != nil {
		return nil, &requirements.GenerationError{Role: req.RoleName, Message: "invalid request", Cause: err}
	}
	return &requirements.Requirements{Responsibilities: []string{"Lead " + req.RoleName}}, nil
}

type testServer struct {
	*Server
	kv        *persistence.MemoryKV
	blobs     *blob.MemoryStore
	extractor *stubExtractor
}

func newTestServer(t *testing.T, mutate func(*Config, *Deps)) *testServer {
	t.Helper()
	ts := &testServer{
		kv:        persistence.NewMemoryKV(),
		blobs:     blob.NewMemoryStore(),
		extractor: &stubExtractor{},
	}
	cfg := Config{
		AutoAdvanceDelay: testDelay,
		RateLimit:        &ratelimit.Config{Enabled: false},
	}
	deps := Deps{
		KV:        ts.kv,
		Blobs:     ts.blobs,
		Roles:     stubRoles{},
		Extractor: ts.extractor,
		Generator: stubGenerator{},
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	s, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	ts.Server = s
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) mount(t *testing.T, browserID, externalID string) SessionResponse {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/sessions", CreateSessionRequest{BrowserID: browserID, ExternalSessionID: externalID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (ts *testServer) state(t *testing.T, id string) StateResponse {
	t.Helper()
	w := ts.do(t, http.MethodGet, "/sessions/"+id+"/screen", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (ts *testServer) waitForStep(t *testing.T, id string, step wizard.StepID) {
	t.Helper()
	require.Eventually(t, func() bool {
		return ts.state(t, id).Screen.Step == step
	}, 2*time.Second, 5*time.Millisecond, "waiting for %s", step)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, w.Body.String())
}

func TestNew_RequiresKV(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.mount(t, "browser-1", "")
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 1, resp.State.CurrentStep)
	assert.Equal(t, 13, resp.State.Total)
	assert.Equal(t, wizard.StepSelectObjective, resp.Screen.Step)
	assert.Equal(t, "ObjectiveSelection", resp.Screen.Component)

	w := ts.do(t, http.MethodPost, "/sessions", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWizardFlow_DefineBranch(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.mount(t, "browser-1", "").SessionID
	base := "/sessions/" + id

	w := ts.do(t, http.MethodPut, base+"/objective", ObjectiveRequest{Objective: wizard.ObjectiveTeamProductivity})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ts.waitForStep(t, id, wizard.StepTargetRole)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, base+"/role", RoleRequest{ID: "r1", Title: "Backend Engineer"}).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, base+"/requirement-choice", RequirementChoiceRequest{Choice: wizard.RequirementDefine}).Code)
	ts.waitForStep(t, id, wizard.StepBenchmarkScenario)

	w = ts.do(t, http.MethodPut, base+"/requirement-choice", RequirementChoiceRequest{Choice: wizard.RequirementHave})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPut, base+"/scenario", ScenarioRequest{Scenario: "peer-company"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, base+"/scenario", ScenarioRequest{Scenario: "top-performer"})
	require.Equal(t, http.StatusOK, w.Code)
	ts.waitForStep(t, id, wizard.StepReviewRequirements)

	w = ts.do(t, http.MethodPost, base+"/requirements", SessionRequirementsRequest{ExperienceLevel: requirements.LevelSenior})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.State.Requirements)
	assert.Equal(t, []string{"Lead Backend Engineer"}, resp.State.Requirements.Responsibilities)

	w = ts.do(t, http.MethodPost, base+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, wizard.StepReportGeneration, ts.state(t, id).Screen.Step)

	w = ts.do(t, http.MethodPost, base+"/jump", JumpRequest{Step: 99})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 13, ts.state(t, id).State.CurrentStep)
}

func TestNavigation_BackFromFirstStep(t *testing.T) {
	ts := newTestServer(t, func(c *Config, _ *Deps) { c.ExitPolicy = wizard.StayOnFirst })
	id := ts.mount(t, "browser-1", "").SessionID

	w := ts.do(t, http.MethodPost, "/sessions/"+id+"/back", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ts.state(t, id).State.CurrentStep)

	w = ts.do(t, http.MethodPost, "/sessions/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, ts.state(t, id).State.CurrentStep)
}

func TestObjective_Validation(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.mount(t, "browser-1", "").SessionID

	w := ts.do(t, http.MethodPut, "/sessions/"+id+"/objective", ObjectiveRequest{Objective: "world-domination"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/sessions/"+id+"/objective", ObjectiveRequest{Objective: "hiring-readiness"})
	require.Equal(t, http.StatusOK, w.Code)

	time.Sleep(3 * testDelay)
	assert.Equal(t, wizard.StepSelectObjective, ts.state(t, id).Screen.Step, "only team-productivity unlocks the flow")
}

func uploadBody(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploads(t *testing.T) {
	ts := newTestServer(t, nil)
	mounted := ts.mount(t, "browser-1", "")
	base := "/sessions/" + mounted.SessionID

	body, contentType := uploadBody(t, "alice.pdf", "bad.pdf", "bob.pdf")
	req := httptest.NewRequest(http.MethodPost, base+"/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var accepted UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.Len(t, accepted.Files, 3)

	require.Eventually(t, func() bool {
		up := ts.state(t, mounted.SessionID).State.Uploads
		return up.Len() == 3 && !up.Processing()
	}, 2*time.Second, 5*time.Millisecond)

	up := ts.state(t, mounted.SessionID).State.Uploads
	assert.Equal(t, 2, up.ReadyCount())
	assert.Equal(t, extraction.NoTextMessage, up.Results[1].Error)
	assert.Equal(t, []string{"alice.pdf", "bad.pdf", "bob.pdf"}, ts.extractor.names())

	data, err := ts.blobs.Get(context.Background(), "browser-1", accepted.Files[0].ID.String())
	require.NoError(t, err)
	assert.Equal(t, "content of alice.pdf", string(data))

	var complete bool
	require.Eventually(t, func() bool {
		raw, ok, err := ts.kv.Get(context.Background(), "browser-1", string(persistence.KeyProcessingComplete))
		return err == nil && ok && json.Unmarshal(raw, &complete) == nil && complete
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, base+"/uploads/selected", map[string]int{"index": 2}).Code)
	w = ts.do(t, http.MethodDelete, base+"/uploads/0", nil)
	require.Equal(t, http.StatusOK, w.Code)

	up = ts.state(t, mounted.SessionID).State.Uploads
	assert.Equal(t, 2, up.Len())
	assert.Equal(t, 1, up.Selected, "selection follows the file it pointed at")

	_, err = ts.blobs.Get(context.Background(), "browser-1", accepted.Files[0].ID.String())
	assert.ErrorIs(t, err, blob.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, base+"/uploads/7", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodDelete, base+"/uploads/x", nil).Code)
}

func TestUploads_RequiresFiles(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.mount(t, "browser-1", "").SessionID

	body, contentType := uploadBody(t)
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionReset_ClearsPersistedState(t *testing.T) {
	ts := newTestServer(t, nil)

	first := ts.mount(t, "browser-1", "ext-A")
	assert.False(t, first.Reset)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/sessions/"+first.SessionID+"/role", RoleRequest{ID: "r9", Title: "SRE"}).Code)

	remount := ts.mount(t, "browser-1", "ext-A")
	assert.False(t, remount.Reset)
	require.NotNil(t, remount.State.Selections.TargetRole)
	assert.Equal(t, "SRE", remount.State.Selections.TargetRole.Title)
	assert.Equal(t, 1, remount.State.CurrentStep, "step is never restored")

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/sessions/"+first.SessionID+"/screen", nil).Code,
		"remounting unmounts the previous session")

	fresh := ts.mount(t, "browser-1", "ext-B")
	assert.True(t, fresh.Reset)
	assert.Nil(t, fresh.State.Selections.TargetRole)

	w := ts.do(t, http.MethodGet, "/sessions/"+fresh.SessionID+"/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.JSONEq(t, `"ext-B"`, string(snapshot["session_id"]))
	assert.NotContains(t, snapshot, "selected_role_id")
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.mount(t, "browser-1", "").SessionID

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/sessions/"+id+"/next", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/sessions/"+id, nil).Code)
}

func TestEvents_StreamTransitions(t *testing.T) {
	ts := newTestServer(t, nil)
	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()

	id := ts.mount(t, "browser-1", "").SessionID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	nextEvent := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if name, ok := strings.CutPrefix(strings.TrimSpace(line), "event: "); ok {
				return name
			}
		}
	}

	require.Equal(t, "screen", nextEvent())

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/sessions/"+id+"/next", nil).Code)
	assert.Equal(t, string(wizard.EventScrollTop), nextEvent())
	assert.Equal(t, string(wizard.EventTransition), nextEvent())
	assert.Equal(t, "screen", nextEvent())

	require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/sessions/"+id, nil).Code)
	assert.Equal(t, "closed", nextEvent())
}

func TestRoles(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/roles?search=go", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var found []roles.Role
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Backend Engineer (go)", found[0].Title)

	failing := newTestServer(t, func(_ *Config, d *Deps) {
		d.Roles = stubRoles{err: &roles.FetchError{Query: "go", StatusCode: 503, Message: "down"}}
	})
	assert.Equal(t, http.StatusBadGateway, failing.do(t, http.MethodGet, "/roles?search=go", nil).Code)

	missing := newTestServer(t, func(_ *Config, d *Deps) { d.Roles = nil })
	assert.Equal(t, http.StatusServiceUnavailable, missing.do(t, http.MethodGet, "/roles", nil).Code)
}

func TestGenerateRequirements(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/requirements/generate", requirements.Request{RoleName: "Data Engineer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp RequirementsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Lead Data Engineer"}, resp.Requirements.Responsibilities)

	w = ts.do(t, http.MethodPost, "/requirements/generate", requirements.Request{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	failing := newTestServer(t, func(_ *Config, d *Deps) {
		d.Generator = stubGenerator{err: &requirements.GenerationError{Role: "x", Message: "model call failed"}}
	})
	w = failing.do(t, http.MethodPost, "/requirements/generate", requirements.Request{RoleName: "x"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSessionRequirements_NeedsRole(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.mount(t, "browser-1", "").SessionID
	w := ts.do(t, http.MethodPost, "/sessions/"+id+"/requirements", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *Config, _ *Deps) {
		c.RateLimit = &ratelimit.Config{
			Enabled:       true,
			DefaultLimit:  100,
			DefaultWindow: time.Minute,
			EndpointConfigs: []ratelimit.EndpointConfig{
				{Path: "/sessions", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1},
			},
		}
	})

	ts.mount(t, "browser-1", "")
	w := ts.do(t, http.MethodPost, "/sessions", CreateSessionRequest{BrowserID: "browser-2"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodOptions, "/sessions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
}
