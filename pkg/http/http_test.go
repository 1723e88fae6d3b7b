package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickerReq struct {
	Ticker string `json:"ticker" validate:"required,max=12"`
	Limit  int    `json:"limit" default:"5"`
}

func newContext(method, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequest(t *testing.T) {
	c, _ := newContext(http.MethodPost, `{"ticker":"AAPL"}`)
	var req tickerReq
	assert.Nil(t, ReadAndValidateRequest(c, &req))
	assert.Equal(t, "AAPL", req.Ticker)
	assert.Equal(t, 5, req.Limit)

	c, _ = newContext(http.MethodPost, `{}`)
	errs := ReadAndValidateRequest(c, &tickerReq{})
	require.IsType(t, []ValidationError{}, errs)
	got := errs.([]ValidationError)
	require.Len(t, got, 1)
	assert.Equal(t, "ERR_REQUIRED", got[0].Code)
	assert.Equal(t, "ticker", got[0].Field)
}

func TestAppErrorResponse(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFoundError("no data"), http.StatusNotFound},
		{BadRequestError("bad"), http.StatusBadRequest},
		{ServiceUnavailableError("models not loaded"), http.StatusServiceUnavailable},
		{ConflictError("busy"), http.StatusConflict},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		c, rec := newContext(http.MethodGet, "")
		require.NoError(t, AppErrorResponse(c, tc.err))
		assert.Equal(t, tc.want, rec.Code)

		var body APIResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.want, body.Status)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	err := InternalError("fetch failed").WithError(context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "fetch failed")
}

func TestClient_SendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "MSFT" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("missing symbol"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"symbol": "MSFT"})
	}))
	defer srv.Close()

	cl := NewClient()
	var out map[string]string
	err := cl.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"symbol": {"MSFT"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "MSFT", out["symbol"])

	err = cl.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &out)
	assert.ErrorContains(t, err, "unexpected status 400")
}

func TestClient_RetriesThrottled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":"yes"}`))
	}))
	defer srv.Close()

	var out map[string]string
	cl := NewClient(WithRetries(2, time.Millisecond))
	require.NoError(t, cl.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &out))
	assert.Equal(t, "yes", out["ok"])
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	err := NewClient().SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestReadAndValidateRequest_Ticker(t *testing.T) {
	type req struct {
		Ticker string `json:"ticker" validate:"required,ticker"`
	}
	for body, ok := range map[string]bool{
		`{"ticker":"BRK.B"}`:         true,
		`{"ticker":" msft "}`:        true,
		`{"ticker":"AAPL; DROP"}`:    false,
		`{"ticker":"ABCDEFGHIJKLM"}`: false,
	} {
		c, _ := newContext(http.MethodPost, body)
		errs := ReadAndValidateRequest(c, &req{})
		if ok {
			assert.Nil(t, errs, body)
			continue
		}
		require.IsType(t, []ValidationError{}, errs, body)
		assert.Equal(t, "ERR_TICKER", errs.([]ValidationError)[0].Code)
	}
}

type echoHandler struct{}

func (echoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/echo", func(c echo.Context) error {
		var req tickerReq
		if verr := ReadAndValidateRequest(c, &req); verr != nil {
			return BadRequestResponse(c, verr)
		}
		return SuccessResponse(c, req)
	})
}

func TestServer_StartServesAndStops(t *testing.T) {
	srv := NewServer(echoHandler{},
		WithHost("127.0.0.1"),
		WithPort(0),
		WithCORSOrigins("https://dash.example"),
		WithBodyLimit("64B"),
		WithMetricsPath(""),
	)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	base := "http://" + srv.Addr()

	req, _ := http.NewRequest(http.MethodPost, base+"/api/echo", strings.NewReader(`{"ticker":"NVDA"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://dash.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://dash.example", resp.Header.Get("Access-Control-Allow-Origin"))

	big := `{"ticker":"NVDA","pad":"` + strings.Repeat("x", 128) + `"}`
	resp, err = http.Post(base+"/api/echo", "application/json", strings.NewReader(big))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestServer_StartReportsBindError(t *testing.T) {
	first := NewServer(nil, WithHost("127.0.0.1"), WithPort(0))
	require.NoError(t, first.Start())
	t.Cleanup(func() { _ = first.Stop(context.Background()) })

	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)
	n, err := strconv.Atoi(port)
	require.NoError(t, err)
	assert.Error(t, NewServer(nil, WithHost("127.0.0.1"), WithPort(n)).Start())
}
