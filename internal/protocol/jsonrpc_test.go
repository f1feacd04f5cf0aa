package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func pipePair(t *testing.T, serverHandler, clientHandler MethodHandler) (*Connection, *Connection) {
	t.Helper()

	serverR, clientW := io.Pipe()
	clientR, serverW := io.Pipe()

	server := NewConnection(serverHandler, serverW, serverR)
	client := NewConnection(clientHandler, clientW, clientR)

	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return server, client
}

func TestRequestResponseRoundTrip(t *testing.T) {
	_, client := pipePair(t, func(_ context.Context, method string, params json.RawMessage) (any, error) {
		if method == "echo" {
			var m map[string]any
			_ = json.Unmarshal(params, &m)
			return m, nil
		}
		return nil, NewRPCError(ErrMethodNotFound, "unknown method")
	}, nil)

	result, err := client.Request(context.Background(), "echo", map[string]any{"msg": "hello"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(result, &m); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if m["msg"] != "hello" {
		t.Errorf("msg = %v, want hello", m["msg"])
	}
}

func TestNotificationDelivery(t *testing.T) {
	received := make(chan string, 1)
	_, client := pipePair(t, func(_ context.Context, method string, _ json.RawMessage) (any, error) {
		received <- method
		return nil, nil
	}, nil)

	if err := client.Notify(context.Background(), MethodSessionCancel, CancelNotification{SessionID: "s1"}); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	select {
	case method := <-received:
		if method != MethodSessionCancel {
			t.Errorf("method = %v, want %v", method, MethodSessionCancel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received")
	}
}

func TestNotificationsPrecedeResponse(t *testing.T) {
	var serverConn *Connection
	var got []string
	var mu sync.Mutex

	serverR, clientW := io.Pipe()
	clientR, serverW := io.Pipe()

	serverConn = NewConnection(func(_ context.Context, method string, _ json.RawMessage) (any, error) {
		for _, part := range []string{"a", "b", "c"} {
			_ = serverConn.Notify(context.Background(), "tick", map[string]string{"part": part})
		}
		return map[string]string{"done": "yes"}, nil
	}, serverW, serverR)
	defer serverConn.Close()

	client := NewConnection(func(_ context.Context, method string, params json.RawMessage) (any, error) {
		var m map[string]string
		_ = json.Unmarshal(params, &m)
		mu.Lock()
		got = append(got, m["part"])
		mu.Unlock()
		return nil, nil
	}, clientW, clientR)
	defer client.Close()

	if _, err := client.Request(context.Background(), "run", nil); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("notifications = %v, want [a b c] before response", got)
	}
}

func TestIncomingRequestDispatch(t *testing.T) {
	server, _ := pipePair(t, nil, func(_ context.Context, method string, _ json.RawMessage) (any, error) {
		if method == MethodRequestPermission {
			return RequestPermissionResponse{Outcome: PermissionSelected("allow")}, nil
		}
		return nil, nil
	})

	result, err := server.Request(context.Background(), MethodRequestPermission, map[string]any{"sessionId": "s1"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var resp RequestPermissionResponse
	if err := json.Unmarshal(result, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Outcome.Outcome != "selected" || resp.Outcome.OptionID != "allow" {
		t.Errorf("outcome = %+v, want selected allow", resp.Outcome)
	}
}

func TestContextCancellation(t *testing.T) {
	_, client := pipePair(t, func(ctx context.Context, _ string, _ json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := client.Request(ctx, "slow", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestEOFClosesDone(t *testing.T) {
	r, w := io.Pipe()
	conn := NewConnection(nil, io.Discard, r)

	w.Close()

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done() not closed after EOF")
	}
}

func TestPendingRequestFailsOnEOF(t *testing.T) {
	r, w := io.Pipe()
	conn := NewConnection(nil, io.Discard, r)

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Request(context.Background(), "never", nil)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	w.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("err = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request did not return after EOF")
	}
}

func TestMalformedLinesAreSkipped(t *testing.T) {
	r, w := io.Pipe()
	received := make(chan string, 1)
	conn := NewConnection(func(_ context.Context, method string, _ json.RawMessage) (any, error) {
		received <- method
		return nil, nil
	}, io.Discard, r)
	defer conn.Close()

	go func() {
		_, _ = w.Write([]byte("not json\n\n"))
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","method":"ok"}` + "\n"))
	}()

	select {
	case method := <-received:
		if method != "ok" {
			t.Errorf("method = %q, want ok", method)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("valid message after garbage was not delivered")
	}
}

func TestConcurrentRequests(t *testing.T) {
	_, client := pipePair(t, func(_ context.Context, _ string, params json.RawMessage) (any, error) {
		var m map[string]any
		_ = json.Unmarshal(params, &m)
		return map[string]any{"echo": m["n"]}, nil
	}, nil)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			result, err := client.Request(context.Background(), "echo", map[string]any{"n": n})
			if err != nil {
				t.Errorf("request %d failed: %v", n, err)
				return
			}

			var m map[string]any
			_ = json.Unmarshal(result, &m)
			if int(m["echo"].(float64)) != n {
				t.Errorf("echo = %v, want %d", m["echo"], n)
			}
		}(i)
	}
	wg.Wait()
}

func TestErrorResponse(t *testing.T) {
	_, client := pipePair(t, func(_ context.Context, _ string, _ json.RawMessage) (any, error) {
		return nil, NewRPCError(ErrMethodNotFound, "no such method")
	}, nil)

	_, err := client.Request(context.Background(), "nonexistent", nil)

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != int(ErrMethodNotFound) {
		t.Errorf("code = %d, want %d", rpcErr.Code, ErrMethodNotFound)
	}
	if rpcErr.Message != "no such method" {
		t.Errorf("message = %q, want %q", rpcErr.Message, "no such method")
	}
}

func TestOversizedLineEndsConnection(t *testing.T) {
	r, w := io.Pipe()
	conn := NewConnection(nil, io.Discard, r)
	t.Cleanup(func() { r.Close() })

	go func() {
		line := append(bytes.Repeat([]byte("x"), maxMessageSize+1), '\n')
		_, _ = w.Write(line)
	}()

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not end on an oversized line")
	}
	if !errors.Is(conn.Err(), bufio.ErrTooLong) {
		t.Errorf("Err() = %v, want %v", conn.Err(), bufio.ErrTooLong)
	}
}

func TestCleanEOFHasNoError(t *testing.T) {
	r, w := io.Pipe()
	conn := NewConnection(nil, io.Discard, r)

	if conn.Err() != nil {
		t.Errorf("Err() before close = %v, want nil", conn.Err())
	}
	w.Close()

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("connection did not end on EOF")
	}
	if conn.Err() != nil {
		t.Errorf("Err() = %v, want nil", conn.Err())
	}
}
