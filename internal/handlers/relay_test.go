package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/visrodeck/relaygo/internal/envelope"
	"github.com/visrodeck/relaygo/internal/models"
	"github.com/visrodeck/relaygo/internal/relay"
)

const (
	keyA = "1111111111111111"
	keyB = "2222222222222222"
)

type stubMessages struct {
	rows    []models.Message
	nextID  uint
	pingErr error
}

func (s *stubMessages) Append(ctx context.Context, senderKey, recipientKey, env, noise string, ts time.Time) (uint, error) {
	s.nextID++
	s.rows = append(s.rows, models.Message{
		ID: s.nextID, SenderKey: senderKey, RecipientKey: recipientKey,
		EncryptedData: env, GarbageNoise: noise, Timestamp: ts,
	})
	return s.nextID, nil
}

func (s *stubMessages) RecentFor(ctx context.Context, key string, limit int) ([]models.Message, error) {
	var out []models.Message
	for i := len(s.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if s.rows[i].SenderKey == key || s.rows[i].RecipientKey == key {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}

func (s *stubMessages) DeleteFor(ctx context.Context, key string) (int64, error) {
	var kept []models.Message
	var deleted int64
	for _, row := range s.rows {
		if row.SenderKey == key || row.RecipientKey == key {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	s.rows = kept
	return deleted, nil
}

func (s *stubMessages) Ping(ctx context.Context) error { return s.pingErr }

type stubDevices struct {
	count int64
}

func (s *stubDevices) Touch(ctx context.Context, key string) error { return nil }

func (s *stubDevices) CountActiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.count, nil
}

type noopMaintainer struct{}

func (noopMaintainer) MaybeTrim(ctx context.Context) {}

func newTestRouter() (*Router, *stubMessages, *stubDevices) {
	messages := &stubMessages{}
	devices := &stubDevices{}
	svc := relay.NewService(messages, devices, noopMaintainer{})
	return NewRouter(svc), messages, devices
}

func doRequest(r *Router, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router, messages, _ := newTestRouter()

	rec := doRequest(router, "GET", "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if body["status"] != "online" {
		t.Errorf("Expected status online, got %q", body["status"])
	}
	if body["timestamp"] == "" {
		t.Error("Expected a timestamp in the health response")
	}

	messages.pingErr = errors.New("connection refused")
	rec = doRequest(router, "GET", "/api/health", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 when the storage probe fails, got %d", rec.Code)
	}
}

func TestSendMessage(t *testing.T) {
	router, messages, _ := newTestRouter()

	body := `{"senderKey":"1111111111111111","recipientKey":"2222222222222222","encryptedData":"hello","timestamp":"2024-02-15T09:02:46.206Z"}`
	rec := doRequest(router, "POST", "/api/message", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if resp["success"] != true {
		t.Errorf("Expected success true, got %v", resp["success"])
	}
	if resp["messageId"] != float64(1) {
		t.Errorf("Expected messageId 1, got %v", resp["messageId"])
	}

	if len(messages.rows) != 1 {
		t.Fatalf("Expected 1 stored row, got %d", len(messages.rows))
	}
	if messages.rows[0].EncryptedData == "hello" {
		t.Error("Handler must store the sealed envelope, not the raw payload")
	}
}

func TestSendMessageValidation(t *testing.T) {
	router, messages, _ := newTestRouter()

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing fields", `{"senderKey":"1111111111111111"}`, "Missing required fields"},
		{"short key", `{"senderKey":"111111111111111","recipientKey":"2222222222222222","encryptedData":"x","timestamp":"2024-02-15T09:02:46Z"}`, "Invalid key format"},
		{"non-digit key", `{"senderKey":"11111111111111ab","recipientKey":"2222222222222222","encryptedData":"x","timestamp":"2024-02-15T09:02:46Z"}`, "Invalid key format"},
		{"bad timestamp", `{"senderKey":"1111111111111111","recipientKey":"2222222222222222","encryptedData":"x","timestamp":"noon"}`, "Invalid timestamp"},
		{"malformed json", `{"senderKey":`, "Invalid request payload"},
	}

	for _, c := range cases {
		rec := doRequest(router, "POST", "/api/message", c.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", c.name, rec.Code)
			continue
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Errorf("%s: invalid JSON response: %v", c.name, err)
			continue
		}
		if resp["error"] != c.want {
			t.Errorf("%s: expected error %q, got %q", c.name, c.want, resp["error"])
		}
	}

	if len(messages.rows) != 0 {
		t.Errorf("Rejected submissions must not be stored, found %d rows", len(messages.rows))
	}
}

func TestGetMessages(t *testing.T) {
	router, messages, _ := newTestRouter()

	sealed, err := envelope.Seal("hello", keyA, keyB)
	if err != nil {
		t.Fatalf("Failed to seal fixture: %v", err)
	}
	messages.rows = append(messages.rows, models.Message{
		ID: 7, SenderKey: keyA, RecipientKey: keyB, EncryptedData: sealed,
		Timestamp: time.Date(2024, 2, 15, 9, 2, 46, 0, time.UTC),
	})

	rec := doRequest(router, "GET", "/api/messages/"+keyA, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(resp))
	}
	if resp[0]["encryptedData"] != "hello" {
		t.Errorf("Expected decrypted payload, got %v", resp[0]["encryptedData"])
	}
	if resp[0]["senderKey"] != keyA || resp[0]["recipientKey"] != keyB {
		t.Errorf("Wrong addressing in projection: %v", resp[0])
	}
	if resp[0]["timestamp"] != "2024-02-15T09:02:46" {
		t.Errorf("Expected second-precision timestamp, got %v", resp[0]["timestamp"])
	}
}

func TestGetMessagesEmpty(t *testing.T) {
	router, _, _ := newTestRouter()

	rec := doRequest(router, "GET", "/api/messages/"+keyA, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	// An empty history is an empty array, not null
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("Expected empty array body, got %s", rec.Body.String())
	}
}

func TestGetMessagesInvalidKey(t *testing.T) {
	router, _, _ := newTestRouter()

	rec := doRequest(router, "GET", "/api/messages/tooshort", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if resp["error"] != "Invalid device key" {
		t.Errorf("Expected 'Invalid device key', got %q", resp["error"])
	}
}

func TestDeleteMessages(t *testing.T) {
	router, messages, _ := newTestRouter()
	messages.rows = []models.Message{
		{ID: 1, SenderKey: keyA, RecipientKey: keyB, EncryptedData: "x"},
	}

	rec := doRequest(router, "DELETE", "/api/messages/"+keyA, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if resp["success"] != true || resp["message"] != "Messages deleted" {
		t.Errorf("Unexpected delete response: %v", resp)
	}
	if len(messages.rows) != 0 {
		t.Errorf("Expected the history to be wiped, %d rows remain", len(messages.rows))
	}

	rec = doRequest(router, "DELETE", "/api/messages/bad", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an invalid key, got %d", rec.Code)
	}
}

func TestNodeCount(t *testing.T) {
	router, _, devices := newTestRouter()
	devices.count = 4

	rec := doRequest(router, "GET", "/api/nodes/count", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if resp["activeNodes"] != 4 {
		t.Errorf("Expected activeNodes 4, got %d", resp["activeNodes"])
	}
}
