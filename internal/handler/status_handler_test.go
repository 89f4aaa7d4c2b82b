package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/seatman/internal/store"
)

// mockStatusReader はStatusReaderのモック。
type mockStatusReader struct {
	status    store.Status
	lastError string
	resyncErr error
	resyncs   int
}

func (m *mockStatusReader) Status() store.Status { return m.status }

func (m *mockStatusReader) LastError() string { return m.lastError }

func (m *mockStatusReader) Resync(ctx context.Context) error {
	m.resyncs++
	if m.resyncErr != nil {
		return m.resyncErr
	}
	m.status = store.StatusOnline
	m.lastError = ""
	return nil
}

func TestStatusHandlerGet(t *testing.T) {
	tests := []struct {
		name       string
		status     store.Status
		lastError  string
		wantMode   string
		wantStatus string
	}{
		{"接続モードでオンライン", store.StatusOnline, "", "connected", "online"},
		{"オフラインモード", store.StatusOffline, "", "offline", "offline"},
		{"エラー状態", store.StatusError, "connection refused", "connected", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStatusHandler(&mockStatusReader{status: tt.status, lastError: tt.lastError})

			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			rec := httptest.NewRecorder()
			h.Get(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var resp statusResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("レスポンスの解析に失敗: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Mode != tt.wantMode {
				t.Errorf("mode = %q, want %q", resp.Mode, tt.wantMode)
			}
			if resp.LastError != tt.lastError {
				t.Errorf("last_error = %q, want %q", resp.LastError, tt.lastError)
			}
		})
	}
}

func TestStatusHandlerGetOmitsEmptyLastError(t *testing.T) {
	h := NewStatusHandler(&mockStatusReader{status: store.StatusOnline})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if strings.Contains(rec.Body.String(), "last_error") {
		t.Errorf("エラーなしの場合last_errorフィールドは省略されるべき: %s", rec.Body.String())
	}
}

func TestStatusHandlerResync(t *testing.T) {
	reader := &mockStatusReader{status: store.StatusError, lastError: "timeout"}
	h := NewStatusHandler(reader)

	req := httptest.NewRequest(http.MethodPost, "/api/resync", nil)
	rec := httptest.NewRecorder()
	h.Resync(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if reader.resyncs != 1 {
		t.Errorf("resyncの実行回数 = %d, want 1", reader.resyncs)
	}

	var resp statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if resp.Status != "online" {
		t.Errorf("再同期成功後のstatus = %q, want online", resp.Status)
	}
}

func TestStatusHandlerResyncFailure(t *testing.T) {
	reader := &mockStatusReader{status: store.StatusError, resyncErr: errors.New("connection refused")}
	h := NewStatusHandler(reader)

	req := httptest.NewRequest(http.MethodPost, "/api/resync", nil)
	rec := httptest.NewRecorder()
	h.Resync(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("再同期失敗時のstatus = %d, want 503", rec.Code)
	}
}
