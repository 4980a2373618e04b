//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prepdesk/examsim-backend/internal/config"
	"github.com/prepdesk/examsim-backend/internal/service"
)

const (
	defaultBaseURL = "http://localhost:8080"
	e2eUserID      = "e2e_user"
)

// Minimal but valid PDF for upload.
var pdfStub = []byte("%PDF-1.4\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\ntrailer<</Root 1 0 R>>\n%%EOF")

var (
	baseURL   string
	userToken string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	// Mint a token directly; the server shares JWT_SECRET via config.
	token, err := service.NewTokenService(config.Load()).Issue(e2eUserID)
	if err != nil {
		fmt.Printf("Token setup failed: %v\n", err)
		os.Exit(1)
	}
	userToken = token

	os.Exit(m.Run())
}

func apiRequest(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+userToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var envelope map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, envelope
}

func uploadPDF(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="doc.pdf"`}
	header["Content-Type"] = []string{"application/pdf"}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(pdfStub)
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/assets", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+userToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}

	var envelope struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatal(err)
	}
	return envelope.Data.URL
}

func TestFullReadingSessionFlow(t *testing.T) {
	docURL := uploadPDF(t)

	// Launch.
	status, envelope := apiRequest(t, http.MethodPost, "/api/v1/sessions", map[string]string{
		"exam_type":     "reading",
		"document_path": docURL,
	})
	if status != http.StatusCreated {
		t.Fatalf("launch status = %d: %v", status, envelope)
	}
	data := envelope["data"].(map[string]interface{})
	sessionID := data["session_id"].(string)

	// Connect the intent stream.
	wsURL := strings.Replace(baseURL, "http", "ws", 1) +
		"/ws/v1/sessions/" + sessionID + "/stream?token=" + url.QueryEscape(userToken)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.Close()

	// First frame is the state snapshot.
	var state map[string]interface{}
	if err := conn.ReadJSON(&state); err != nil {
		t.Fatalf("read state: %v", err)
	}
	if state["event"] != "state" {
		t.Fatalf("first event = %v", state["event"])
	}

	send := func(payload map[string]interface{}) {
		if err := conn.WriteJSON(payload); err != nil {
			t.Fatalf("ws write: %v", err)
		}
	}
	expectEvent := func(want string) map[string]interface{} {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			conn.SetReadDeadline(deadline)
			var msg map[string]interface{}
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("ws read waiting for %q: %v", want, err)
			}
			if msg["event"] == want {
				return msg
			}
			// Ticks interleave with replies; skip everything else.
		}
		t.Fatalf("never saw event %q", want)
		return nil
	}

	send(map[string]interface{}{"action": "start_timer"})
	expectEvent("ack")

	send(map[string]interface{}{"action": "answer", "index": 1, "text": "cat"})
	expectEvent("ack")

	send(map[string]interface{}{"action": "mark", "index": 1})
	marked := expectEvent("marked")
	if marked["marked"] != true {
		t.Errorf("marked = %v", marked["marked"])
	}

	send(map[string]interface{}{"action": "submit"})
	expectEvent("confirm_required")

	send(map[string]interface{}{"action": "submit", "confirmed": true})
	expectEvent("submitted")

	// Result over REST.
	status, envelope = apiRequest(t, http.MethodGet, "/api/v1/sessions/"+sessionID+"/result", nil)
	if status != http.StatusOK {
		t.Fatalf("result status = %d: %v", status, envelope)
	}
	res := envelope["data"].(map[string]interface{})
	answers := res["answers"].([]interface{})
	first := answers[0].(map[string]interface{})
	if first["text"] != "cat" || first["marked"] != true {
		t.Errorf("answers[0] = %v", first)
	}
}

func TestLaunchWithoutDocumentRejected(t *testing.T) {
	status, envelope := apiRequest(t, http.MethodPost, "/api/v1/sessions", map[string]string{
		"exam_type":     "reading",
		"document_path": "/uploads/does-not-exist.pdf",
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %v", status, envelope)
	}
	errBody := envelope["error"].(map[string]interface{})
	if errBody["code"] != "MISSING_REQUIRED_ASSET" {
		t.Errorf("code = %v", errBody["code"])
	}
}

func TestExportRequiresSubmission(t *testing.T) {
	docURL := uploadPDF(t)

	status, envelope := apiRequest(t, http.MethodPost, "/api/v1/sessions", map[string]string{
		"exam_type":     "reading",
		"document_path": docURL,
	})
	if status != http.StatusCreated {
		t.Fatalf("launch status = %d", status)
	}
	sessionID := envelope["data"].(map[string]interface{})["session_id"].(string)

	status, envelope = apiRequest(t, http.MethodGet, "/api/v1/sessions/"+sessionID+"/export?format=txt", nil)
	if status != http.StatusConflict {
		t.Fatalf("export status = %d: %v", status, envelope)
	}
}
