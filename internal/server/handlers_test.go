package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablechat-io/tablechat/internal/agent"
	"github.com/tablechat-io/tablechat/internal/session"
	"github.com/tablechat-io/tablechat/internal/translate"
)

type scriptedTranslator struct {
	replies  []string
	requests []translate.Request
}

func (m *scriptedTranslator) Translate(_ context.Context, req translate.Request) (string, error) {
	i := len(m.requests)
	m.requests = append(m.requests, req)
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return "", fmt.Errorf("no scripted reply for call %d", i+1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, tr translate.Translator) *httptest.Server {
	t.Helper()

	var ag *agent.Agent
	if tr != nil {
		var err error
		ag, err = agent.New(agent.Config{
			Logger:     discardLogger(),
			Translator: tr,
			RetryDelay: time.Millisecond,
		})
		require.NoError(t, err)
	}

	store := session.NewStore(time.Minute)
	t.Cleanup(store.Stop)

	srv := httptest.NewServer(New(discardLogger(), store, ag, 4).Router())
	t.Cleanup(srv.Close)
	return srv
}

// newClient returns an http.Client with a cookie jar so calls share a
// session.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func uploadCSV(t *testing.T, c *http.Client, url, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url+"/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.Do(req)
	require.NoError(t, err)
	return resp
}

func postChat(t *testing.T, c *http.Client, url, question string) *http.Response {
	t.Helper()
	body, err := json.Marshal(map[string]string{"question": question})
	require.NoError(t, err)
	resp, err := c.Post(url+"/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

const staffCSV = `name,department,salary
Mr. John Smith,Sales,50000
Jane Doe,Engineering,72000
`

func TestIndexServesShellAndMintsCookie(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tablechat")
}

func TestUpload(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newClient(t)

	t.Run("valid csv", func(t *testing.T) {
		resp := uploadCSV(t, c, srv.URL, "staff.csv", staffCSV)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		out := decodeJSON(t, resp)
		assert.Equal(t, `File "staff.csv" ready.`, out["success"])
	})

	t.Run("missing file part", func(t *testing.T) {
		resp, err := c.Post(srv.URL+"/upload", "multipart/form-data; boundary=x", strings.NewReader("--x--\r\n"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		out := decodeJSON(t, resp)
		assert.Equal(t, "No file part", out["error"])
	})

	t.Run("wrong extension", func(t *testing.T) {
		resp := uploadCSV(t, c, srv.URL, "staff.xlsx", staffCSV)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		out := decodeJSON(t, resp)
		assert.Equal(t, "Only .csv files are supported", out["error"])
	})

	t.Run("unparseable csv", func(t *testing.T) {
		resp := uploadCSV(t, c, srv.URL, "bad.csv", "")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestChatValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newClient(t)

	t.Run("empty question", func(t *testing.T) {
		resp := postChat(t, c, srv.URL, "   ")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		out := decodeJSON(t, resp)
		assert.Equal(t, "Question is required", out["error"])
	})

	t.Run("no dataset uploaded", func(t *testing.T) {
		resp := postChat(t, c, srv.URL, "how many rows?")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		out := decodeJSON(t, resp)
		assert.Equal(t, "Please upload a file first.", out["error"])
	})

	t.Run("translator not configured", func(t *testing.T) {
		resp := uploadCSV(t, c, srv.URL, "staff.csv", staffCSV)
		resp.Body.Close()
		resp = postChat(t, c, srv.URL, "how many rows?")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		out := decodeJSON(t, resp)
		assert.Contains(t, out["error"], "ANTHROPIC_API_KEY")
	})
}

func TestChatAnswersQuestion(t *testing.T) {
	tr := &scriptedTranslator{replies: []string{"count(t)"}}
	srv := newTestServer(t, tr)
	c := newClient(t)

	uploadCSV(t, c, srv.URL, "staff.csv", staffCSV).Body.Close()

	resp := postChat(t, c, srv.URL, "how many rows?")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Equal(t, "2", out["answer"])
}

func TestChatRendersTableAsHTML(t *testing.T) {
	tr := &scriptedTranslator{replies: []string{"t.project(name, salary)"}}
	srv := newTestServer(t, tr)
	c := newClient(t)

	uploadCSV(t, c, srv.URL, "staff.csv", staffCSV).Body.Close()

	resp := postChat(t, c, srv.URL, "show everyone")
	out := decodeJSON(t, resp)
	assert.Contains(t, out["answer"], "<pre>")
	assert.Contains(t, out["answer"], "Jane Doe")
}

func TestChatSummaryLiteral(t *testing.T) {
	// Describe-the-data questions come back as a quoted literal echoing the
	// precomputed summary.
	reply := `"This dataset contains 2 records and 4 columns.\nTop department: \"Engineering\".\nSalary range: 50,000.00 to 72,000.00."`
	tr := &scriptedTranslator{replies: []string{reply}}
	srv := newTestServer(t, tr)
	c := newClient(t)

	uploadCSV(t, c, srv.URL, "staff.csv", staffCSV).Body.Close()

	resp := postChat(t, c, srv.URL, "describe the dataset")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Contains(t, out["answer"], "This dataset contains 2 records")
}

func TestChatNoMatchingRecords(t *testing.T) {
	tr := &scriptedTranslator{replies: []string{`t.filter(department == "Marketing")`}}
	srv := newTestServer(t, tr)
	c := newClient(t)

	uploadCSV(t, c, srv.URL, "staff.csv", staffCSV).Body.Close()

	resp := postChat(t, c, srv.URL, "who works in marketing?")
	out := decodeJSON(t, resp)
	assert.Contains(t, out["answer"], "couldn't find any records")
}

func TestChatCorrectiveRetry(t *testing.T) {
	tr := &scriptedTranslator{replies: []string{"t.sum(wage)", "t.sum(salary)"}}
	srv := newTestServer(t, tr)
	c := newClient(t)

	uploadCSV(t, c, srv.URL, "staff.csv", staffCSV).Body.Close()

	resp := postChat(t, c, srv.URL, "total salary?")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Equal(t, "122000", out["answer"])

	require.Len(t, tr.requests, 2)
	assert.Contains(t, tr.requests[1].Question, "t.sum(wage)")
}

func TestChatExhaustedStillAnswers(t *testing.T) {
	tr := &scriptedTranslator{replies: []string{"t.sum(wage)", "t.sum(income)"}}
	srv := newTestServer(t, tr)
	c := newClient(t)

	uploadCSV(t, c, srv.URL, "staff.csv", staffCSV).Body.Close()

	resp := postChat(t, c, srv.URL, "total wage?")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Contains(t, out["answer"], "could not answer")
	assert.Contains(t, out["answer"], "t.sum(income)")
	assert.Contains(t, out["answer"], "unknown column")
}

func TestChatHistoryWindow(t *testing.T) {
	tr := &scriptedTranslator{replies: []string{"count(t)", "t.mean(salary)", "t.max(salary)"}}
	srv := newTestServer(t, tr)
	c := newClient(t)

	uploadCSV(t, c, srv.URL, "staff.csv", staffCSV).Body.Close()

	postChat(t, c, srv.URL, "how many rows?").Body.Close()
	postChat(t, c, srv.URL, "average salary?").Body.Close()
	postChat(t, c, srv.URL, "and the highest?").Body.Close()

	require.Len(t, tr.requests, 3)

	// First question sees no history.
	assert.Empty(t, tr.requests[0].History)

	// Second sees the first exchange.
	require.Len(t, tr.requests[1].History, 2)
	assert.Equal(t, "how many rows?", tr.requests[1].History[0].Content)
	assert.Equal(t, "count(t)", tr.requests[1].History[1].Content)

	// Third is capped at the window of four turns.
	require.Len(t, tr.requests[2].History, 4)
	assert.Equal(t, "how many rows?", tr.requests[2].History[0].Content)
	assert.Equal(t, "t.mean(salary)", tr.requests[2].History[3].Content)
}

func TestSessionsAreIsolated(t *testing.T) {
	tr := &scriptedTranslator{replies: []string{"count(t)"}}
	srv := newTestServer(t, tr)

	alice := newClient(t)
	bob := newClient(t)

	uploadCSV(t, alice, srv.URL, "staff.csv", staffCSV).Body.Close()

	// Bob never uploaded anything.
	resp := postChat(t, bob, srv.URL, "how many rows?")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Equal(t, "Please upload a file first.", out["error"])

	// Alice's session is unaffected.
	resp = postChat(t, alice, srv.URL, "how many rows?")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIndexResetsSession(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newClient(t)

	uploadCSV(t, c, srv.URL, "staff.csv", staffCSV).Body.Close()

	resp, err := c.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	resp = postChat(t, c, srv.URL, "how many rows?")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Equal(t, "Please upload a file first.", out["error"])
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tablechat_http_requests_total")
}
