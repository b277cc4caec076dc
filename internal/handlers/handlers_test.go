package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/milestones/internal/app"
	"github.com/shrimpsizemoose/milestones/internal/models"
	"github.com/shrimpsizemoose/milestones/internal/scoring"
	"github.com/shrimpsizemoose/milestones/internal/store"
)

type memStore struct {
	mu      sync.Mutex
	data    []byte
	saveErr error
	loadErr error
	pingErr error
	saves   int
}

func (m *memStore) fail(load, save, ping error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr, m.saveErr, m.pingErr = load, save, ping
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memStore) Load(ctx context.Context) ([]models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return store.DecodeRoster(m.data)
}

func (m *memStore) Save(ctx context.Context, students []models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := store.EncodeRoster(students)
	if err != nil {
		return err
	}
	m.data = data
	m.saves++
	return nil
}

func (m *memStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *memStore) Close() error { return nil }

const seedDocument = `[
  {"id": 1, "name": "Ann", "birthday": "2019-05-03", "info": "", "assessmentData": {}, "image": null},
  {"id": 2, "name": "Bo", "birthday": "2020-01-15", "info": "twin", "assessmentData": {}, "image": null}
]`

func newTestServer(t *testing.T, st *memStore) (*httptest.Server, *app.Service) {
	t.Helper()
	config, err := app.ParseConfig("test.toml", []byte(`
[server]
port = ":0"
[storage]
dsn = ":memory:"
[session]
secret = "test-secret-test-secret-test-sec"
`))
	require.NoError(t, err)

	service, err := app.NewServiceWithStore(config, st)
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(service))
	t.Cleanup(srv.Close)
	return srv, service
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func do(t *testing.T, client *http.Client, method, url string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestStudentsEndpoint(t *testing.T) {
	st := &memStore{data: []byte(seedDocument)}
	srv, _ := newTestServer(t, st)
	client := newClient(t)

	t.Run("GET returns stored roster", func(t *testing.T) {
		resp, body := do(t, client, http.MethodGet, srv.URL+"/api/students", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var payload studentsPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Len(t, payload.Students, 2)
		assert.Equal(t, "Bo", payload.Students[1].Name)
	})

	t.Run("POST replaces roster", func(t *testing.T) {
		body := `{"students":[{"id":7,"name":"Cy","birthday":"2021-02-28","info":"","assessmentData":{"Music":{"value":"Advanced","lastUpdated":"2024-04-01T12:00:00.000Z"}},"image":null}]}`
		resp, respBody := do(t, client, http.MethodPost, srv.URL+"/api/students", body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"message":"Students saved successfully"}`, string(respBody))

		students, err := st.Load(context.Background())
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, models.RatingAdvanced, students[0].AssessmentData[models.CategoryMusic].Value)
	})

	t.Run("POST with invalid rating is rejected", func(t *testing.T) {
		body := `{"students":[{"id":7,"name":"Cy","birthday":"2021-02-28","assessmentData":{"Music":{"value":"Great"}}}]}`
		resp, _ := do(t, client, http.MethodPost, srv.URL+"/api/students", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Other methods are not allowed", func(t *testing.T) {
		for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
			resp, _ := do(t, client, method, srv.URL+"/api/students", nil)
			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, method)
			assert.Equal(t, "GET, POST", resp.Header.Get("Allow"), method)
		}
	})
}

func TestStudentsEndpointKeepsPendingEdits(t *testing.T) {
	st := &memStore{data: []byte(seedDocument)}
	srv, _ := newTestServer(t, st)
	client := newClient(t)

	resp, _ := do(t, client, http.MethodPut, srv.URL+"/api/roster/1", models.StudentInfo{Name: "Annie", Birthday: "2019-05-03"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, client, http.MethodGet, srv.URL+"/api/students", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload studentsPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Students, 2)
	assert.Equal(t, "Annie", payload.Students[0].Name)

	resp, _ = do(t, client, http.MethodPost, srv.URL+"/api/roster/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stored, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Annie", stored[0].Name)
}

func TestStudentsEndpointStorageErrors(t *testing.T) {
	st := &memStore{data: []byte(seedDocument)}
	srv, _ := newTestServer(t, st)
	client := newClient(t)

	st.fail(errors.New("timeout"), nil, nil)
	resp, body := do(t, client, http.MethodGet, srv.URL+"/api/students", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Error fetching students"}`, string(body))

	st.fail(nil, errors.New("read only"), nil)
	resp, body = do(t, client, http.MethodPost, srv.URL+"/api/students", `{"students":[]}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Error saving students"}`, string(body))
}

func TestRosterEndpoints(t *testing.T) {
	st := &memStore{data: []byte(seedDocument)}
	srv, service := newTestServer(t, st)
	client := newClient(t)

	resp, body := do(t, client, http.MethodPost, srv.URL+"/api/roster", models.StudentInfo{Name: "Cy", Birthday: "2021-02-28"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var added models.Student
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, "Cy", added.Name)
	assert.Len(t, service.Roster.Students(), 3)

	resp, _ = do(t, client, http.MethodPost, srv.URL+"/api/roster", models.StudentInfo{Name: "", Birthday: "2021-02-28"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1, st.saveCount())

	resp, _ = do(t, client, http.MethodPut, srv.URL+"/api/roster/2", models.StudentInfo{Name: "Bobby", Birthday: "2020-01-15"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, client, http.MethodPut, srv.URL+"/api/roster/404", models.StudentInfo{Name: "X", Birthday: "2020-01-15"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, client, http.MethodPost, srv.URL+"/api/roster/save", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	stored, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bobby", stored[1].Name)

	resp, body = do(t, client, http.MethodDelete, srv.URL+"/api/roster/"+strconv.FormatInt(added.ID, 10), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"removed":true}`, string(body))

	saves := st.saveCount()
	resp, body = do(t, client, http.MethodDelete, srv.URL+"/api/roster/12345", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"removed":false}`, string(body))
	assert.Equal(t, saves, st.saveCount())

	resp, _ = do(t, client, http.MethodDelete, srv.URL+"/api/roster/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRosterEndpointsStorageFailure(t *testing.T) {
	st := &memStore{data: []byte(seedDocument)}
	srv, service := newTestServer(t, st)
	client := newClient(t)

	st.fail(nil, errors.New("connection reset"), nil)
	resp, _ := do(t, client, http.MethodPost, srv.URL+"/api/roster", models.StudentInfo{Name: "Cy", Birthday: "2021-02-28"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Len(t, service.Roster.Students(), 2)

	resp, _ = do(t, client, http.MethodDelete, srv.URL+"/api/roster/1", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Len(t, service.Roster.Students(), 2)
}

func TestCategoriesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &memStore{})
	resp, body := do(t, newClient(t), http.MethodGet, srv.URL+"/api/categories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Categories []categoryInfo  `json:"categories"`
		Skills     []models.Skill  `json:"skills"`
		Ratings    []models.Rating `json:"ratings"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Len(t, payload.Categories, len(models.Categories))
	assert.Equal(t, models.Skills, payload.Skills)
	assert.Equal(t, models.RatingLevels, payload.Ratings)
	for _, c := range payload.Categories {
		assert.NotEmpty(t, c.Skills, c.Name)
		assert.Len(t, c.Guidelines, 3, c.Name)
	}
}

func TestSessionFlow(t *testing.T) {
	st := &memStore{data: []byte(seedDocument)}
	srv, _ := newTestServer(t, st)
	client := newClient(t)

	resp, _ := do(t, client, http.MethodPost, srv.URL+"/api/session/rate", rateRequest{Category: models.CategorySensory, Value: models.RatingAdvanced})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, client, http.MethodPost, srv.URL+"/api/session/select/99", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, client, http.MethodPost, srv.URL+"/api/session/select/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, client, http.MethodPost, srv.URL+"/api/session/rate", rateRequest{Category: models.CategorySensory, Value: models.RatingAdvanced})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"changed":true}`, string(body))

	resp, _ = do(t, client, http.MethodPost, srv.URL+"/api/session/rate", `{"category":"Juggling","value":"Advanced"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, client, http.MethodPost, srv.URL+"/api/session/annotate", annotateRequest{Category: models.CategoryOther, Text: "hums"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, client, http.MethodGet, srv.URL+"/api/session/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary scoring.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, 1, summary.Distribution[0].Count)
	for _, s := range summary.Profile {
		if s.Skill == models.SkillResilience || s.Skill == models.SkillCuriosity {
			assert.InDelta(t, 1.0, s.Score, 1e-9)
			assert.True(t, s.RecentlyChanged)
		}
	}

	assert.Zero(t, st.saveCount())
	resp, _ = do(t, client, http.MethodPost, srv.URL+"/api/session/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RatingAdvanced, stored[0].AssessmentData[models.CategorySensory].Value)
	assert.Equal(t, "hums", stored[0].AssessmentData[models.CategoryOther].OtherValue)

	resp, body = do(t, client, http.MethodGet, srv.URL+"/api/roster/1/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, strings.Contains(string(body), `"recentChange":true`))
}

func TestSessionsAreIsolatedPerClient(t *testing.T) {
	srv, _ := newTestServer(t, &memStore{data: []byte(seedDocument)})
	first, second := newClient(t), newClient(t)

	resp, _ := do(t, first, http.MethodPost, srv.URL+"/api/session/select/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, second, http.MethodGet, srv.URL+"/api/session/summary", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, first, http.MethodGet, srv.URL+"/api/session/summary", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionRegistryStaysBounded(t *testing.T) {
	srv, service := newTestServer(t, &memStore{data: []byte(seedDocument)})
	cookieless := &http.Client{Timeout: 5 * time.Second}

	for i := 0; i < 200; i++ {
		resp, body := do(t, cookieless, http.MethodGet, srv.URL+"/api/session", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), `"studentId":null`)
		assert.Empty(t, resp.Cookies())

		resp, _ = do(t, cookieless, http.MethodGet, srv.URL+"/api/session/summary", nil)
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	}
	assert.Zero(t, service.Sessions.Len())

	client := newClient(t)
	resp, _ := do(t, client, http.MethodPost, srv.URL+"/api/session/select/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, client, http.MethodPost, srv.URL+"/api/session/select/2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, service.Sessions.Len())
}

func TestRemoveClearsSelection(t *testing.T) {
	srv, _ := newTestServer(t, &memStore{data: []byte(seedDocument)})
	client := newClient(t)

	resp, _ := do(t, client, http.MethodPost, srv.URL+"/api/session/select/2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, client, http.MethodDelete, srv.URL+"/api/roster/2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, client, http.MethodGet, srv.URL+"/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"studentId":null`)
}

func TestHealthz(t *testing.T) {
	st := &memStore{}
	srv, _ := newTestServer(t, st)
	client := newClient(t)

	resp, _ := do(t, client, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	st.fail(nil, nil, errors.New("down"))
	resp, _ = do(t, client, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
