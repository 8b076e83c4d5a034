package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/confide/internal/catalog"
	"github.com/MikeSquared-Agency/confide/internal/detector"
	"github.com/MikeSquared-Agency/confide/internal/processor"
	"github.com/MikeSquared-Agency/confide/internal/recorder"
	"github.com/MikeSquared-Agency/confide/internal/session"
	"github.com/MikeSquared-Agency/confide/internal/survey"
)

const scenarioTranscript = "------------\niteration: 0\nrole: user\ntext: I live alone and feel anxious\npersuasion: none\n\n"

func newTestServer(t *testing.T, opts Options, requireSurvey bool) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat, err := catalog.New([]catalog.KnownPhrase{
		{ID: "1", Text: "I live alone", Category: "living situation", CategoryPriority: 1, SurveyDisplay: "You live alone"},
	})
	if err != nil {
		t.Fatal(err)
	}
	sink, err := recorder.NewFileSink(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	def, err := survey.Load()
	if err != nil {
		t.Fatal(err)
	}
	proc := processor.New(cat, detector.StaticDetector{}, session.NewManager(time.Hour, logger),
		recorder.New(sink, logger), def, nil,
		processor.Options{MaxItems: 6, RequireExperience: requireSurvey}, logger)
	return NewServer(opts, proc, logger)
}

func do(t *testing.T, srv *Server, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

// waitReview polls the review endpoint until detection has finished.
func waitReview(t *testing.T, srv *Server, pid string) *httptest.ResponseRecorder {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		w := do(t, srv, "GET", "/api/v1/sessions/"+pid+"/review", nil)
		if w.Code != http.StatusAccepted {
			return w
		}
		if time.Now().After(deadline) {
			t.Fatal("detection did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{Port: 8760, APIToken: "secret"}, false)

	w := do(t, srv, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{}, false)

	w := do(t, srv, "GET", "/api/v1/confide/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["agent"] != "confide" {
		t.Errorf("expected agent confide, got %v", body["agent"])
	}
	pipeline := body["pipeline"].(map[string]any)
	if pipeline["catalog_phrases"].(float64) != 1 {
		t.Errorf("unexpected pipeline stats %v", pipeline)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{}, false)
	if w := do(t, srv, "GET", "/nonexistent", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer(t, Options{APIToken: "secret"}, false)

	if w := do(t, srv, "GET", "/api/v1/confide/status", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/v1/confide/status", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: expected 401, got %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/v1/confide/status", nil, "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("valid token: expected 200, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Options{CORSOrigins: []string{"https://study.example.org"}}, false)

	w := do(t, srv, "OPTIONS", "/api/v1/sessions", nil,
		"Origin", "https://study.example.org",
		"Access-Control-Request-Method", "POST",
	)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://study.example.org" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestStartSession_InvalidParticipant(t *testing.T) {
	srv := newTestServer(t, Options{}, false)

	w := do(t, srv, "POST", "/api/v1/sessions", map[string]string{"participant_id": "", "transcript": scenarioTranscript})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != processor.ErrInvalidParticipant.Error() {
		t.Errorf("unexpected error %v", body["error"])
	}

	req := httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewBufferString("{"))
	rw := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Errorf("bad json: expected 400, got %d", rw.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t, Options{}, false)
	if w := do(t, srv, "GET", "/api/v1/sessions/nobody", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestFullFlow(t *testing.T) {
	srv := newTestServer(t, Options{}, true)

	w := do(t, srv, "POST", "/api/v1/sessions", map[string]string{"participant_id": "P1", "transcript": scenarioTranscript})
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d: %s", w.Code, w.Body)
	}
	if w := do(t, srv, "POST", "/api/v1/sessions", map[string]string{"participant_id": "P1", "transcript": scenarioTranscript}); w.Code != http.StatusConflict {
		t.Errorf("duplicate start: expected 409, got %d", w.Code)
	}

	// Review is gated on survey part 1.
	if w := do(t, srv, "GET", "/api/v1/sessions/P1/review", nil); w.Code != http.StatusConflict {
		t.Fatalf("review before survey: expected 409, got %d", w.Code)
	}

	w = do(t, srv, "GET", "/api/v1/survey/experience", nil)
	var def survey.Definition
	if err := json.NewDecoder(w.Body).Decode(&def); err != nil {
		t.Fatal(err)
	}
	answers := map[string]string{}
	for _, s := range def.Statements {
		answers[s.ID] = def.Options[0]
	}
	if w := do(t, srv, "POST", "/api/v1/sessions/P1/experience", map[string]any{"answers": map[string]string{"Q1": def.Placeholder}}); w.Code != http.StatusBadRequest {
		t.Errorf("incomplete survey: expected 400, got %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/v1/sessions/P1/experience", map[string]any{"answers": answers}); w.Code != http.StatusOK {
		t.Fatalf("survey: expected 200, got %d: %s", w.Code, w.Body)
	}

	w = waitReview(t, srv, "P1")
	if w.Code != http.StatusOK {
		t.Fatalf("review: expected 200, got %d: %s", w.Code, w.Body)
	}
	var view processor.View
	json.NewDecoder(w.Body).Decode(&view)
	if len(view.Items) != 1 || view.Items[0].Display != "You live alone" {
		t.Fatalf("unexpected review %+v", view)
	}

	if w := do(t, srv, "PUT", "/api/v1/sessions/P1/items/1/selection", map[string]bool{"selected": true}); w.Code != http.StatusOK {
		t.Fatalf("select: %d %s", w.Code, w.Body)
	}
	if w := do(t, srv, "PUT", "/api/v1/sessions/P1/items/99/selection", map[string]bool{"selected": true}); w.Code != http.StatusNotFound {
		t.Errorf("unknown item: expected 404, got %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/v1/sessions/P1/selection/confirm", nil); w.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", w.Code, w.Body)
	}
	if w := do(t, srv, "PUT", "/api/v1/sessions/P1/items/1/selection", map[string]bool{"selected": false}); w.Code != http.StatusConflict {
		t.Errorf("select after confirm: expected 409, got %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/v1/sessions/P1/advance", nil); w.Code != http.StatusConflict {
		t.Errorf("advance without reasoning: expected 409, got %d", w.Code)
	}
	if w := do(t, srv, "PUT", "/api/v1/sessions/P1/items/1/reasoning", map[string]string{"text": "it explained my situation"}); w.Code != http.StatusOK {
		t.Fatalf("reasoning: %d %s", w.Code, w.Body)
	}
	w = do(t, srv, "POST", "/api/v1/sessions/P1/advance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("advance: %d %s", w.Code, w.Body)
	}
	json.NewDecoder(w.Body).Decode(&view)
	if !view.CanSubmit {
		t.Fatalf("submit should be enabled after advancing, view %+v", view)
	}

	w = do(t, srv, "POST", "/api/v1/sessions/P1/submit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", w.Code, w.Body)
	}
	if body := decodeBody(t, w); body["status"] != "submitted" {
		t.Errorf("unexpected submit body %v", body)
	}

	w = do(t, srv, "GET", "/api/v1/sessions/P1", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("after submit: expected 409, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["message"] != alreadySubmittedMessage {
		t.Errorf("expected terminal message, got %v", body)
	}
}
