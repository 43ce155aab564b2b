package extraction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_Extract_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)

		assert.Equal(t, "cv.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
		assert.Equal(t, "%PDF-1.4", string(data))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"extracted_text": "Jane Doe\nGo, SQL"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), zap.NewNop())
	resp, err := c.Extract(context.Background(), File{Name: "cv.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nGo, SQL", resp.Text)
	assert.Equal(t, "Jane Doe\nGo, SQL", resp.Raw["extracted_text"])
}

func TestClient_Extract_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), nil)
	_, err := c.Extract(context.Background(), File{Name: "cv.pdf"})
	require.Error(t, err)

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, http.StatusBadGateway, extractErr.StatusCode)
	assert.Equal(t, "cv.pdf", extractErr.File)
}

func TestClient_Extract_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client(), nil).Extract(context.Background(), File{Name: "x.txt"})
	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "invalid JSON response", extractErr.Message)
}

func TestResolveText_FieldPrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{"text wins", map[string]any{"text": "a", "extracted_text": "b", "content": "c"}, "a"},
		{"extracted_text next", map[string]any{"text": "  ", "extracted_text": "b", "content": "c"}, "b"},
		{"content last", map[string]any{"content": "c"}, "c"},
		{"non-string ignored", map[string]any{"text": 12, "content": "c"}, "c"},
		{"empty object", map[string]any{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveText(tt.raw))
		})
	}
}

func TestResolveText_FlattensStructuredProfile(t *testing.T) {
	raw := map[string]any{
		"personal_info": map[string]any{"name": "Jane Doe", "email": "jane@example.com"},
		"skills":        []any{"Go", "PostgreSQL"},
		"experience": []any{
			map[string]any{"company": "Acme", "title": "Engineer"},
		},
		"languages": []any{"English"},
	}

	got := ResolveText(raw)
	want := "Personal Information:\n" +
		"Email: jane@example.com\n" +
		"Name: Jane Doe\n" +
		"\nSkills:\n" +
		"- Go\n" +
		"- PostgreSQL\n" +
		"\nExperience:\n" +
		"- Acme | Engineer\n" +
		"\nLanguages:\n" +
		"- English"
	assert.Equal(t, want, got)
}

func TestResolveText_StripsHTML(t *testing.T) {
	raw := map[string]any{"content": "<div><p>Jane   Doe</p><script>x()</script><ul><li>Go</li></ul></div>"}

	got := ResolveText(raw)
	assert.Contains(t, got, "Jane Doe")
	assert.Contains(t, got, "Go")
	assert.NotContains(t, got, "<p>")
	assert.NotContains(t, got, "x()")
}

func TestResolveText_PlainTextUntouched(t *testing.T) {
	raw := map[string]any{"text": "C++ & Go: a < b"}
	assert.Equal(t, "C++ & Go: a < b", ResolveText(raw))
}

func TestResolveText_FailurePayloadHasNoText(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"success false with error", map[string]any{"success": false, "error": "could not parse PDF"}},
		{"success false alone", map[string]any{"success": false, "skills": []any{"Go"}}},
		{"error object", map[string]any{"error": map[string]any{"code": 422}}},
		{"status fields only", map[string]any{"status": "done", "message": "ok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, ResolveText(tt.raw))
		})
	}
}

func TestResolveText_IgnoresStatusFields(t *testing.T) {
	raw := map[string]any{"success": true, "status": "done", "skills": []any{"Go"}}
	assert.Equal(t, "Skills:\n- Go", ResolveText(raw))
}

func TestClient_Extract_ReportedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"error":"could not parse PDF"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client(), nil).Extract(context.Background(), File{Name: "cv.pdf"})
	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, http.StatusOK, extractErr.StatusCode)
	assert.Equal(t, "could not parse PDF", extractErr.Message)
}

func TestResolveText_NonASCIIKeys(t *testing.T) {
	raw := map[string]any{"élèves_notes": "très bien"}

	got := ResolveText(raw)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Élèves Notes:\ntrès bien", got)
}
