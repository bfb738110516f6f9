package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding/internal/app/server"
	"onboarding/internal/domain/auth"
	"onboarding/internal/domain/users"
	"onboarding/internal/platform/config"
	"onboarding/internal/platform/storage"
	"onboarding/internal/testutil"
)

const (
	hrEmail       = "hr@example.com"
	employeeEmail = "employee@example.com"
	testPassword  = "ChangeMe123!"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"requestId"`
}

func (e envelope) code() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Code
}

type fixture struct {
	t        *testing.T
	ts       *httptest.Server
	users    *testutil.UserStore
	docs     *testutil.DocumentStore
	hr       users.User
	employee users.User
}

func testConfig() config.Config {
	return config.Config{
		Environment:             "test",
		JWTSecret:               "0123456789abcdef0123456789abcdef",
		JWTTTL:                  30 * time.Minute,
		JWTIssuer:               "onboarding-test",
		MaxBodyBytes:            1 << 20,
		MaxUploadBytes:          4 << 20,
		RateLimitPerMinute:      1000,
		LoginRateLimitPerMinute: 100,
		IdempotencyTTL:          time.Hour,
		CORSAllowedOrigins:      []string{"http://localhost:3000"},
		MetricsEnabled:          true,
	}
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		t:     t,
		users: testutil.NewUserStore(),
		docs:  testutil.NewDocumentStore(),
	}
	f.hr = f.users.Seed("Hana HR", hrEmail, testPassword, auth.RoleHR, true)
	f.employee = f.users.Seed("Eli Employee", employeeEmail, testPassword, auth.RoleEmployee, true)

	f.ts = httptest.NewServer(server.NewRouter(server.Deps{
		Config:    cfg,
		Users:     f.users,
		Documents: f.docs,
		Files:     files,
	}))
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fixture) send(req *http.Request, token string) (*http.Response, envelope, []byte) {
	f.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.ts.Client().Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(f.t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env, raw
}

func (f *fixture) do(method, path, token string, body any) (*http.Response, envelope) {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	require.NoError(f.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, env, _ := f.send(req, token)
	return resp, env
}

func (f *fixture) login(email, password string) string {
	f.t.Helper()
	resp, env := f.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(f.t, http.StatusOK, resp.StatusCode, env.code())
	var data struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(f.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(f.t, data.AccessToken)
	return data.AccessToken
}

func uploadBody(t *testing.T, fields map[string]string, fileName string, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func (f *fixture) upload(token string, body []byte, contentType, idemKey string) (*http.Response, envelope) {
	f.t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/api/documents/upload", bytes.NewReader(body))
	require.NoError(f.t, err)
	req.Header.Set("Content-Type", contentType)
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp, env, _ := f.send(req, token)
	return resp, env
}

func TestHealthAndReadiness(t *testing.T) {
	f := newFixture(t)

	resp, env := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, _ = f.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	f.users.PingErr = assert.AnError
	resp, env = f.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not_ready", env.code())
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	f := newFixture(t)
	resp, env := f.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "not_found", env.code())
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.users.Seed("Ina Inactive", "inactive@example.com", testPassword, auth.RoleHR, false)

	resp, env := f.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "HR@Example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		User        struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.AccessToken)
	assert.Equal(t, "bearer", data.TokenType)
	assert.Equal(t, f.hr.ID, data.User.ID)
	assert.Equal(t, "hr", data.User.Role)

	stored, err := f.users.GetByID(context.Background(), f.hr.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: hrEmail, password: "not-the-password"},
		{name: "unknown email", email: "ghost@example.com", password: testPassword},
		{name: "inactive account", email: "inactive@example.com", password: testPassword},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			resp, env := f.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": tc.email, "password": tc.password})
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "invalid_credentials", env.code())
		})
	}

	resp, env = f.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": hrEmail})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", env.code())
}

func TestLoginRateLimit(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.LoginRateLimitPerMinute = 2 })
	for i := 0; i < 2; i++ {
		resp, _ := f.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": hrEmail, "password": "wrong-password"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, env := f.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": hrEmail, "password": testPassword})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", env.code())
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestRoleGuard(t *testing.T) {
	f := newFixture(t)
	hrToken := f.login(hrEmail, testPassword)
	employeeToken := f.login(employeeEmail, testPassword)

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "no token", path: "/api/users/list", status: http.StatusUnauthorized},
		{name: "garbage token", path: "/api/users/list", token: "not.a.jwt", status: http.StatusUnauthorized},
		{name: "employee on users", path: "/api/users/list", token: employeeToken, status: http.StatusForbidden},
		{name: "employee on documents", path: "/api/documents/categories", token: employeeToken, status: http.StatusForbidden},
		{name: "hr on users", path: "/api/users/list", token: hrToken, status: http.StatusOK},
		{name: "employee on me", path: "/api/auth/me", token: employeeToken, status: http.StatusOK},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := f.do(http.MethodGet, tc.path, tc.token, nil)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestDeactivatedCallerLosesAccess(t *testing.T) {
	f := newFixture(t)
	hrToken := f.login(hrEmail, testPassword)
	second := f.users.Seed("Max Manager", "manager@example.com", testPassword, auth.RoleManager, true)
	managerToken := f.login("manager@example.com", testPassword)

	resp, _ := f.do(http.MethodDelete, "/api/users/"+second.ID, hrToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := f.do(http.MethodGet, "/api/users/list", managerToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", env.code())
}

func TestUserLifecycle(t *testing.T) {
	f := newFixture(t)
	token := f.login(hrEmail, testPassword)

	create := map[string]any{
		"name":        "New Hire",
		"email":       "New.Hire@Example.com",
		"password":    "welcome-aboard",
		"department":  "Engineering",
		"start_date":  "2026-11-02",
		"employee_id": "E-1001",
	}
	resp, env := f.do(http.MethodPost, "/api/users/create", token, create)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.code())
	var created struct {
		Message string `json:"message"`
		UserID  string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.UserID)
	assert.Equal(t, "User New Hire created!", created.Message)

	resp, env = f.do(http.MethodPost, "/api/users/create", token, create)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "email_exists", env.code())

	bad := map[string]any{"name": "X", "email": "x@example.com", "password": "long-enough", "start_date": "02/11/2026"}
	resp, env = f.do(http.MethodPost, "/api/users/create", token, bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", env.code())

	resp, env = f.do(http.MethodGet, "/api/users/list?limit=2", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Users []users.User `json:"users"`
		Total int64        `json:"total"`
		Limit int          `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Users, 2)
	assert.Equal(t, 2, page.Limit)

	resp, env = f.do(http.MethodGet, "/api/users/"+created.UserID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		User map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "new.hire@example.com", got.User["email"])
	assert.Equal(t, "pending", got.User["status"])
	assert.NotContains(t, got.User, "password_hash")
	assert.NotContains(t, got.User, "PasswordHash")

	resp, env = f.do(http.MethodGet, "/api/users/not-an-id", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_id", env.code())

	resp, env = f.do(http.MethodGet, "/api/users/u999", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "user_not_found", env.code())

	changed := func(env envelope) bool {
		var out struct {
			Changed bool `json:"changed"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &out))
		return out.Changed
	}

	resp, env = f.do(http.MethodPut, "/api/users/"+created.UserID+"/role", token, map[string]string{"role": "manager"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, changed(env))
	resp, env = f.do(http.MethodPut, "/api/users/"+created.UserID+"/role", token, map[string]string{"role": "manager"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, changed(env))
	resp, env = f.do(http.MethodPut, "/api/users/"+created.UserID+"/role", token, map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_role", env.code())

	resp, env = f.do(http.MethodPut, "/api/users/"+created.UserID, token, map[string]string{"position": "Engineer"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, changed(env))

	resp, env = f.do(http.MethodDelete, "/api/users/"+created.UserID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, changed(env))
	resp, env = f.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "new.hire@example.com", "password": "welcome-aboard"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env = f.do(http.MethodPut, "/api/users/"+created.UserID+"/activate", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, changed(env))
	f.login("new.hire@example.com", "welcome-aboard")
}

func TestCreateUserRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)
	token := f.login(hrEmail, testPassword)
	resp, env := f.do(http.MethodPost, "/api/users/create", token, map[string]any{
		"name": "Eve", "email": "eve@example.com", "password": "long-enough", "is_admin": true,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", env.code())
}

func TestDocumentUploadAndDownload(t *testing.T) {
	f := newFixture(t)
	token := f.login(hrEmail, testPassword)
	content := []byte("%PDF-1.4 resume bytes\x00\x01\x02")

	body, ct := uploadBody(t, map[string]string{"employee_id": f.employee.ID, "category": "resume"}, "cv.pdf", content)
	resp, env := f.upload(token, body, ct, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.code())
	var uploaded struct {
		Document struct {
			ID         string `json:"id"`
			FileName   string `json:"file_name"`
			FileSize   int64  `json:"file_size"`
			UploadedBy string `json:"uploaded_by"`
			Category   string `json:"category"`
		} `json:"document"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &uploaded))
	doc := uploaded.Document
	assert.Equal(t, "cv.pdf", doc.FileName)
	assert.EqualValues(t, len(content), doc.FileSize)
	assert.Equal(t, hrEmail, doc.UploadedBy)
	assert.Equal(t, "resume", doc.Category)

	resp, env = f.do(http.MethodGet, "/api/documents/user/"+f.employee.ID+"/categories", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary struct {
		UserName   string `json:"user_name"`
		Categories []struct {
			Category      string `json:"category"`
			DocumentCount int    `json:"document_count"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, "Eli Employee", summary.UserName)
	require.Len(t, summary.Categories, 5)
	for _, c := range summary.Categories {
		want := 0
		if c.Category == "resume" {
			want = 1
		}
		assert.Equal(t, want, c.DocumentCount, c.Category)
	}

	resp, env = f.do(http.MethodGet, "/api/documents/user/"+f.employee.ID+"/category/resume", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Documents []struct {
			ID string `json:"id"`
		} `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed.Documents, 1)
	assert.Equal(t, doc.ID, listed.Documents[0].ID)

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/api/documents/download/"+doc.ID, nil)
	require.NoError(t, err)
	resp, _, raw := f.send(req, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, content, raw)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "cv.pdf")
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	resp, env = f.upload(token, body, ct, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_document", env.code())
	assert.Equal(t, 1, f.docs.Len())
}

func TestDocumentErrors(t *testing.T) {
	f := newFixture(t)
	token := f.login(hrEmail, testPassword)

	cases := []struct {
		name   string
		fields map[string]string
		file   string
		status int
		code   string
	}{
		{name: "invalid category", fields: map[string]string{"employee_id": f.employee.ID, "category": "selfie"}, file: "a.png", status: http.StatusBadRequest, code: "invalid_category"},
		{name: "unknown employee", fields: map[string]string{"employee_id": "u404", "category": "passport"}, file: "a.png", status: http.StatusNotFound, code: "user_not_found"},
		{name: "missing file", fields: map[string]string{"employee_id": f.employee.ID, "category": "passport"}, status: http.StatusBadRequest, code: "validation_error"},
		{name: "camel case employee field", fields: map[string]string{"employeeId": f.employee.ID, "category": "passport"}, file: "p.jpg", status: http.StatusCreated},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			body, ct := uploadBody(t, tc.fields, tc.file, []byte("bytes"))
			resp, env := f.upload(token, body, ct, "")
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, env.code())
		})
	}

	resp, env := f.do(http.MethodGet, "/api/documents/user/"+f.employee.ID+"/category/selfie", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_category", env.code())

	resp, env = f.do(http.MethodGet, "/api/documents/download/not-an-id", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_id", env.code())

	resp, env = f.do(http.MethodGet, "/api/documents/download/d999", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "document_not_found", env.code())
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.MaxBodyBytes = 1024
		c.MaxUploadBytes = 2048
	})
	token := f.login(hrEmail, testPassword)
	body, ct := uploadBody(t, map[string]string{"employee_id": f.employee.ID, "category": "resume"}, "big.bin", bytes.Repeat([]byte("x"), 4096))
	resp, env := f.upload(token, body, ct, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "payload_too_large", env.code())
	assert.Equal(t, 0, f.docs.Len())
}

func TestUploadIdempotencyReplay(t *testing.T) {
	f := newFixture(t)
	token := f.login(hrEmail, testPassword)
	body, ct := uploadBody(t, map[string]string{"employee_id": f.employee.ID, "category": "id_copy"}, "id.png", []byte("png"))

	first, firstEnv := f.upload(token, body, ct, "upload-1")
	require.Equal(t, http.StatusCreated, first.StatusCode)

	retry, retryCT := uploadBody(t, map[string]string{"category": "id_copy", "employee_id": f.employee.ID}, "id.png", []byte("png"))
	require.NotEqual(t, ct, retryCT)
	second, secondEnv := f.upload(token, retry, retryCT, "upload-1")
	require.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	assert.JSONEq(t, string(firstEnv.Data), string(secondEnv.Data))
	assert.Equal(t, 1, f.docs.Len())

	other, otherCT := uploadBody(t, map[string]string{"employee_id": f.employee.ID, "category": "id_copy"}, "id-back.png", []byte("png"))
	resp, env := f.upload(token, other, otherCT, "upload-1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "idempotency_conflict", env.code())
}

func TestActiveUsersAndChecklist(t *testing.T) {
	f := newFixture(t)
	token := f.login(hrEmail, testPassword)
	f.users.Seed("Gone", "gone@example.com", testPassword, auth.RoleEmployee, false)

	resp, env := f.do(http.MethodGet, "/api/documents/users", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var active struct {
		Users []users.User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &active))
	assert.Len(t, active.Users, 2)

	resp, env = f.do(http.MethodGet, "/api/documents/categories", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"display_name":"Iqama"`)

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/api/documents/user/"+f.employee.ID+"/checklist", nil)
	require.NoError(t, err)
	resp, _, raw := f.send(req, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/healthz", "", nil)
	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/metrics", nil)
	require.NoError(t, err)
	resp, _, raw := f.send(req, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, raw)

	g := newFixture(t, func(c *config.Config) { c.MetricsEnabled = false })
	resp, _ = g.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
