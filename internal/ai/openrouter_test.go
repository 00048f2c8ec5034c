package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv}
	t.Cleanup(s.Close)
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// sequenceServer answers /chat/completions with statuses in order, repeating the last.
func sequenceServer(t *testing.T, statuses []int, headers []http.Header, calls *int32) *ipv4Server {
	t.Helper()
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(calls, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if i < len(headers) {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(statuses[i])
		if statuses[i] < 300 {
			_ = json.NewEncoder(w).Encode(GenerateResponse{Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: " ok "}}}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "slow down"}})
	}))
}

func chatReq() GenerateRequest {
	return GenerateRequest{Model: "test-model", Messages: []Message{{Role: RoleUser, Content: "hi"}}, MaxTokens: 1}
}

func TestGenerateRetriesOn429(t *testing.T) {
	var calls int32
	srv := sequenceServer(t, []int{429, 503, 200}, []http.Header{{"Retry-After": {"0"}}}, &calls)
	c := NewClientWithBaseURL("test", 2*time.Second, 3, 10*time.Millisecond, 50*time.Millisecond, srv.URL)
	resp, err := c.Generate(context.Background(), chatReq())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Text() != "ok" || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("text=%q calls=%d", resp.Text(), calls)
	}
}

func TestRetryAfterHonored(t *testing.T) {
	var calls int32
	srv := sequenceServer(t, []int{429, 200}, []http.Header{{"Retry-After": {"1"}}}, &calls)
	c := NewClientWithBaseURL("test", 5*time.Second, 3, 0, 0, srv.URL)
	start := time.Now()
	if _, err := c.Generate(context.Background(), chatReq()); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("expected about 1s delay from Retry-After, got %v", elapsed)
	}
}

func TestRetryWaitStopsOnCancel(t *testing.T) {
	var calls int32
	srv := sequenceServer(t, []int{429}, []http.Header{{"Retry-After": {"30"}}}, &calls)
	c := NewClientWithBaseURL("test", 5*time.Second, 3, 0, 0, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := c.Generate(ctx, chatReq()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFinalErrorIsClassified(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusUnauthorized, func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{http.StatusTooManyRequests, func(err error) bool { var e *RateLimitError; return errors.As(err, &e) }},
		{http.StatusBadGateway, func(err error) bool { var e *ServerError; return errors.As(err, &e) }},
		{http.StatusBadRequest, func(err error) bool { var e *BadRequestError; return errors.As(err, &e) }},
	}
	for _, tc := range cases {
		var calls int32
		srv := sequenceServer(t, []int{tc.status}, nil, &calls)
		c := NewClientWithBaseURL("test", 2*time.Second, 2, time.Millisecond, 5*time.Millisecond, srv.URL)
		_, err := c.Generate(context.Background(), chatReq())
		if !tc.check(err) {
			t.Fatalf("status %d: unexpected error %T %v", tc.status, err, err)
		}
	}
}

func TestErrorIncludesRequestID(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad req", "code": "bad_request"}})
	}))
	c := NewClientWithBaseURL("test", 2*time.Second, 1, 0, 0, srv.URL)
	_, err := c.Generate(context.Background(), chatReq())
	if err == nil || !strings.Contains(err.Error(), "req_test_123") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
}

func TestMissingKeyAndModel(t *testing.T) {
	if _, err := NewClient("", 0, 0, 0, 0).Generate(context.Background(), chatReq()); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewClient("k", 0, 0, 0, 0).Generate(context.Background(), GenerateRequest{Messages: chatReq().Messages}); err == nil {
		t.Fatalf("expected missing model error")
	}
}

func TestNewRuntime(t *testing.T) {
	for _, p := range []string{ProviderOpenRouter, ProviderOllama} {
		if _, err := New(p, RuntimeConfig{}); err != nil {
			t.Fatalf("%s: %v", p, err)
		}
	}
	if _, err := New("nope", RuntimeConfig{}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
	if ContextTokens("openai/gpt-4o") != 128000 || ContextTokens("unknown") != DefaultContextTokens {
		t.Fatalf("context window lookup")
	}
}
