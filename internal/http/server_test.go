package http

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"spendbook/internal/auth"
	"spendbook/internal/core"
	"spendbook/internal/services"
	"spendbook/internal/storage"
)

type ServerTestSuite struct {
	suite.Suite
	repo   *storage.SQLiteRepository
	server *Server
	ts     *httptest.Server
	client *http.Client
}

func (s *ServerTestSuite) SetupTest() {
	repo, err := storage.NewSQLiteRepository(filepath.Join(s.T().TempDir(), "spendbook.db"))
	s.Require().NoError(err)
	s.repo = repo

	hash, err := auth.HashPassword("s3cret")
	s.Require().NoError(err)
	_, err = repo.CreateUser(context.Background(), "alice", hash)
	s.Require().NoError(err)

	ledger := services.NewLedgerService(repo, nil)
	verifier := auth.NewVerifier(repo)

	srv, err := NewServer(":0", ledger, verifier, repo, time.Hour, false)
	s.Require().NoError(err)
	s.server = srv

	s.ts = httptest.NewServer(srv.Handler)

	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	s.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (s *ServerTestSuite) TearDownTest() {
	s.ts.Close()
	s.Require().NoError(s.server.Shutdown(context.Background()))
	s.Require().NoError(s.repo.Close())
}

func (s *ServerTestSuite) login() {
	resp, err := s.client.PostForm(s.ts.URL+"/login", url.Values{
		"username": {"alice"},
		"password": {"s3cret"},
	})
	s.Require().NoError(err)
	resp.Body.Close()
	s.Require().Equal(http.StatusSeeOther, resp.StatusCode)
	s.Require().Equal(core.CurrentMonthToken().Path(), resp.Header.Get("Location"))
}

func (s *ServerTestSuite) get(path string) *http.Response {
	resp, err := s.client.Get(s.ts.URL + path)
	s.Require().NoError(err)
	return resp
}

func (s *ServerTestSuite) postForm(path string, form url.Values) *http.Response {
	resp, err := s.client.PostForm(s.ts.URL+path, form)
	s.Require().NoError(err)
	return resp
}

func (s *ServerTestSuite) body(resp *http.Response) string {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return string(b)
}

func (s *ServerTestSuite) TestUnauthenticatedRedirectsToLogin() {
	resp := s.get("/")
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/login", resp.Header.Get("Location"))

	resp = s.get("/2020/05")
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/login", resp.Header.Get("Location"))
}

func (s *ServerTestSuite) TestLoginWrongPassword() {
	resp := s.postForm("/login", url.Values{
		"username": {"alice"},
		"password": {"wrong"},
	})
	body := s.body(resp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Contains(body, "Invalid username or password.")
}

func (s *ServerTestSuite) TestLoginAndMonthPage() {
	s.login()

	resp := s.get("/")
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal(core.CurrentMonthToken().Path(), resp.Header.Get("Location"))

	resp = s.get("/2020/05")
	body := s.body(resp)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "May 2020")
	s.Contains(body, "No expenses recorded for this month.")
}

func (s *ServerTestSuite) TestInvalidMonthPathIsNotFound() {
	s.login()

	for _, path := range []string{"/2020/13", "/2009/05", "/20x0/05", "/2020/5"} {
		resp := s.get(path)
		resp.Body.Close()
		s.Equal(http.StatusNotFound, resp.StatusCode, "path %s", path)
	}
}

func (s *ServerTestSuite) TestMonthNavigationBounds() {
	s.login()

	// The earliest month has no page before it; the link is disabled
	// instead of pointing at a 404.
	resp := s.get("/2010/01")
	body := s.body(resp)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.NotContains(body, `href="/2009/12"`)
	s.Contains(body, `<span class="disabled">&larr; previous</span>`)

	resp = s.get("/2020/05")
	body = s.body(resp)
	s.Contains(body, `href="/2020/04"`)
}

func (s *ServerTestSuite) TestCreateExpense() {
	s.login()

	resp := s.postForm("/expenses", url.Values{
		"description": {"groceries"},
		"amount":      {"42.50"},
		"date":        {"2020-05-10"},
	})
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/2020/05", resp.Header.Get("Location"))

	resp = s.get("/2020/05")
	body := s.body(resp)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "groceries")
	s.Contains(body, "42.50")
	s.Contains(body, "Expense added.")

	// Flash is one-shot.
	resp = s.get("/2020/05")
	body = s.body(resp)
	s.NotContains(body, "Expense added.")
}

func (s *ServerTestSuite) TestCreateExpenseValidationErrors() {
	s.login()

	resp := s.postForm("/expenses", url.Values{
		"description": {""},
		"amount":      {"-5"},
		"date":        {"2020-05-10"},
	})
	body := s.body(resp)
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	s.Contains(body, core.MsgDescriptionRequired)
	s.Contains(body, core.MsgAmountInvalid)
}

func (s *ServerTestSuite) TestUpdateExpense() {
	s.login()

	resp := s.postForm("/expenses", url.Values{
		"description": {"coffee"},
		"amount":      {"3.00"},
		"date":        {"2020-05-10"},
	})
	resp.Body.Close()
	s.Require().Equal(http.StatusSeeOther, resp.StatusCode)

	resp = s.get("/expenses/1/edit")
	body := s.body(resp)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "coffee")

	resp = s.postForm("/expenses/1", url.Values{
		"description": {"espresso"},
		"amount":      {"3.50"},
		"date":        {"2020-06-02"},
	})
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/2020/06", resp.Header.Get("Location"))

	resp = s.get("/2020/06")
	body = s.body(resp)
	s.Contains(body, "espresso")
}

func (s *ServerTestSuite) TestUpdateExpenseValidationKeepsCancelMonth() {
	s.login()

	resp := s.postForm("/expenses", url.Values{
		"description": {"coffee"},
		"amount":      {"3.00"},
		"date":        {"2020-05-10"},
	})
	resp.Body.Close()
	s.Require().Equal(http.StatusSeeOther, resp.StatusCode)

	// A rejected edit keeps pointing cancel at the expense's month.
	resp = s.postForm("/expenses/1", url.Values{
		"description": {""},
		"amount":      {"3.50"},
		"date":        {"2020-05-11"},
	})
	body := s.body(resp)
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	s.Contains(body, core.MsgDescriptionRequired)
	s.Contains(body, `href="/2020/05"`)
	s.NotContains(body, `href="`+core.CurrentMonthToken().Path()+`"`)
}

func (s *ServerTestSuite) TestDeleteExpense() {
	s.login()

	resp := s.postForm("/expenses", url.Values{
		"description": {"cinema"},
		"amount":      {"12.00"},
		"date":        {"2020-05-10"},
	})
	resp.Body.Close()
	s.Require().Equal(http.StatusSeeOther, resp.StatusCode)

	resp = s.postForm("/expenses/1/delete", nil)
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/2020/05", resp.Header.Get("Location"))

	resp = s.get("/2020/05")
	body := s.body(resp)
	s.NotContains(body, "cinema")
}

func (s *ServerTestSuite) TestExpenseNotFound() {
	s.login()

	resp := s.get("/expenses/999/edit")
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp = s.postForm("/expenses/999/delete", nil)
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *ServerTestSuite) TestLogoutEndsSession() {
	s.login()

	resp := s.postForm("/logout", nil)
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/login", resp.Header.Get("Location"))

	resp = s.get("/2020/05")
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/login", resp.Header.Get("Location"))
}

func (s *ServerTestSuite) TestHealthEndpoints() {
	for _, path := range []string{"/healthz", "/readyz"} {
		resp := s.get(path)
		resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode)
	}
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func TestLoginLimiter(t *testing.T) {
	ll := newLoginLimiter()
	defer ll.stop()

	for i := 0; i < 10; i++ {
		if !ll.allow("10.0.0.1") {
			t.Fatalf("attempt %d unexpectedly blocked", i+1)
		}
	}
	if ll.allow("10.0.0.1") {
		t.Fatal("11th attempt within a minute should be blocked")
	}
	if !ll.allow("10.0.0.2") {
		t.Fatal("other client should not be affected")
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "192.0.2.1:4312", nil, "192.0.2.1"},
		{"x-forwarded-for", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "203.0.113.9"},
		{"x-forwarded-for chain", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"}, "203.0.113.9"},
		{"x-real-ip", "10.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
