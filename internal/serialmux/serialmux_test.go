package serialmux

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// localHostRequest makes a request that passes tsweb's loopback check.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestSendCommand_AppendsNewline(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("servo", port)

	require.NoError(t, mux.SendCommand("PITCH 5.417"))
	require.NoError(t, mux.SendCommand("ROLL 7.500\n"))
	assert.Equal(t, "PITCH 5.417\nROLL 7.500\n", port.Written())
	assert.Equal(t, "servo", mux.Name())
}

func TestSendCommand_Errors(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("servo", port)

	port.WriteError = errors.New("unplugged")
	assert.EqualError(t, mux.SendCommand("PUMP 1"), "unplugged")

	port.ShortWrite = true
	assert.ErrorIs(t, mux.SendCommand("PUMP 1"), ErrWriteFailed)

	port.ShortWrite = false
	require.NoError(t, mux.Close())
	assert.ErrorIs(t, mux.SendCommand("PUMP 0"), ErrClosed)
}

func TestSendCommand_ConcurrentWritesStayWhole(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("servo", port)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mux.SendCommand("ROLL 7.900")
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(port.Written(), "\n"), "\n")
	require.Len(t, lines, 50)
	for _, l := range lines {
		assert.Equal(t, "ROLL 7.900", l)
	}
}

func TestInitialise(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("servo", port)

	require.NoError(t, mux.Initialise())
	assert.Equal(t, "HELLO\nSTATUS\n", port.Written())

	port.WriteError = errors.New("busy")
	err := mux.Initialise()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `handshake "HELLO"`)
}

func TestMonitor_FansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("DET 1 320 180 40\r\nPUMP_FULL 1\nOK\ngarbage\n"))
	mux := NewSerialMux("link", port)

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	// The buffer drains to EOF, which ends Monitor cleanly.
	require.NoError(t, mux.Monitor(context.Background()))

	want := []string{"DET 1 320 180 40", "PUMP_FULL 1", "OK", "garbage"}
	for _, ch := range []chan string{a, b} {
		var got []string
		for i := 0; i < len(want); i++ {
			got = append(got, <-ch)
		}
		assert.Equal(t, want, got)
	}

	assert.Equal(t, map[string]int{
		EventTypeDetection: 1,
		EventTypePump:      1,
		EventTypeAck:       1,
		EventTypeUnknown:   1,
	}, mux.Stats())
}

func TestMonitor_ReadError(t *testing.T) {
	port := NewTestableSerialPort()
	port.ReadError = errors.New("framing error")
	mux := NewSerialMux("link", port)

	err := mux.Monitor(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "framing error")
	assert.Contains(t, err.Error(), "link: read")
}

func TestMonitor_Cancel(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux("link", port)
	defer mux.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestClose_ClosesSubscribers(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("link", port)
	id, ch := mux.Subscribe()

	require.NoError(t, mux.Close())
	_, ok := <-ch
	assert.False(t, ok, "subscriber channel should be closed")
	assert.True(t, port.Closed)

	// Both are no-ops once closed.
	mux.Unsubscribe(id)
	require.NoError(t, mux.Close())
}

func TestClassifyPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"DET 1 10 20 30", EventTypeDetection},
		{"  det 0 0 0 0", EventTypeDetection},
		{"PUMP_FULL 0", EventTypePump},
		{"OK", EventTypeAck},
		{"HELLO servo v2", EventTypeAck},
		{"", EventTypeUnknown},
		{"DETX 1", EventTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyPayload(tt.payload), "ClassifyPayload(%q)", tt.payload)
	}
}

func TestPortOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    PortOptions
		want    serial.Mode
		wantErr string
	}{
		{
			name: "defaults",
			want: serial.Mode{BaudRate: DefaultBaudRate, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
		},
		{
			name: "explicit 7E2",
			opts: PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"},
			want: serial.Mode{BaudRate: 9600, DataBits: 7, Parity: serial.EvenParity, StopBits: serial.TwoStopBits},
		},
		{
			name: "odd parity",
			opts: PortOptions{Parity: "o"},
			want: serial.Mode{BaudRate: DefaultBaudRate, DataBits: 8, Parity: serial.OddParity, StopBits: serial.OneStopBit},
		},
		{name: "bad data bits", opts: PortOptions{DataBits: 9}, wantErr: "invalid data bits"},
		{name: "bad stop bits", opts: PortOptions{StopBits: 3}, wantErr: "invalid stop bits"},
		{name: "bad parity", opts: PortOptions{Parity: "mark"}, wantErr: "unsupported parity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := tt.opts.SerialMode()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *mode)
		})
	}
}

func TestAttachAdminRoutes_SendCommandAPI(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("servo", port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	tests := []struct {
		name       string
		method     string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{"valid", http.MethodPost, url.Values{"command": {"LED GREEN"}}, http.StatusOK, "LED GREEN"},
		{"empty", http.MethodPost, url.Values{"command": {"  "}}, http.StatusBadRequest, "Missing command"},
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed, "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.form != nil {
				body = strings.NewReader(tt.form.Encode())
			}
			req := localHostRequest(tt.method, "/debug/servo-send-command-api", body)
			if tt.form != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			rec := httptest.NewRecorder()
			httpMux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}

	assert.Equal(t, "LED GREEN\n", port.Written())
}

func TestAttachAdminRoutes_SendCommandPage(t *testing.T) {
	mux := NewSerialMux("detector", NewTestableSerialPort())
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/detector-send-command", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="detector-send-command-api"`)
	assert.Contains(t, rec.Body.String(), `EventSource("detector-tail")`)
}

func TestAttachAdminRoutes_TailStreamsLines(t *testing.T) {
	mux := NewSerialMux("detector", NewTestableSerialPort())
	srv := httptest.NewServer(localOnly(mux))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/debug/detector-tail", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Wait for the handler to subscribe before publishing.
	buf := make([]byte, len(": ping\n\n"))
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	mux.publish("DET 1 1 2 3")

	want := "data: DET 1 1 2 3\n\n"
	got := make([]byte, len(want))
	_, err = io.ReadFull(resp.Body, got)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
}

func localOnly(m *SerialMux[*TestableSerialPort]) http.Handler {
	httpMux := http.NewServeMux()
	m.AttachAdminRoutes(httpMux)
	return httpMux
}

func TestDisabledSerialMux(t *testing.T) {
	d := NewDisabledSerialMux("servo")
	var _ SerialMuxInterface = d
	var _ SerialMuxInterface = NewSerialMux("servo", NewTestableSerialPort())

	require.NoError(t, d.Initialise())
	require.NoError(t, d.SendCommand("PUMP 1"))

	_, ch := d.Subscribe()
	require.NoError(t, d.Close())
	_, ok := <-ch
	assert.False(t, ok)

	_, late := d.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribe after close returns a closed channel")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Monitor(ctx), context.Canceled)

	httpMux := http.NewServeMux()
	d.AttachAdminRoutes(httpMux)
	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/servo-disabled", nil))
	assert.Equal(t, "servo link disabled", rec.Body.String())
}

func TestReplayPort(t *testing.T) {
	mux := NewMockSerialMux("detector", []string{"DET 1 320 180 40", "DET 0 0 0 0"}, time.Millisecond)
	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	assert.Equal(t, "DET 1 320 180 40", <-ch)
	assert.Equal(t, "DET 0 0 0 0", <-ch)
	assert.Equal(t, "DET 1 320 180 40", <-ch, "replay wraps around")

	require.NoError(t, mux.SendCommand("HELLO"))
	assert.Equal(t, "HELLO\n", mux.port.Written())
	require.NoError(t, mux.Close())
}
