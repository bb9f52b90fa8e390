package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emrgen/notecache/internal/cache"
	"github.com/emrgen/notecache/internal/model"
	"github.com/emrgen/notecache/internal/service"
	"github.com/emrgen/notecache/internal/store"
	"github.com/emrgen/notecache/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	remote := store.NewGormStore(tester.TestDB(t))
	require.NoError(t, remote.Migrate())

	repo := service.NewRepository(service.Options{
		Gateway: remote,
		Cache:   cache.NewNoteCache(cache.NewMemoryStore(), nil),
	})

	srv := httptest.NewServer(NewServer(repo).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	if out != nil && res.StatusCode < 300 && res.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func TestServer_FlashcardLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var note model.Note
	require.Equal(t, http.StatusCreated, do(t, "POST", srv.URL+"/v1/notes", model.Note{Title: "HSK 1"}, &note))

	var card model.FlashCard
	status := do(t, "POST", srv.URL+"/v1/notes/"+note.ID+"/flashcards",
		addFlashcardRequest{Front: "书", Back: "book", Pinyin: "shū"}, &card)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, note.ID, card.NoteID)

	var cards []model.FlashCard
	require.Equal(t, http.StatusOK, do(t, "GET", srv.URL+"/v1/notes/"+note.ID+"/flashcards", nil, &cards))
	assert.Len(t, cards, 1)

	var reviewed model.FlashCard
	require.Equal(t, http.StatusOK, do(t, "PUT", srv.URL+"/v1/flashcards/"+card.ID, card, &reviewed))
	assert.Equal(t, 1, reviewed.ReviewCount)

	var got model.Note
	require.Equal(t, http.StatusOK, do(t, "GET", srv.URL+"/v1/notes/"+note.ID+"?refresh=true", nil, &got))
	assert.Equal(t, 1, got.FlashcardCount)

	assert.Equal(t, http.StatusNoContent, do(t, "DELETE", srv.URL+"/v1/flashcards/"+card.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, "DELETE", srv.URL+"/v1/flashcards/"+card.ID, nil, nil))
}

func TestServer_Validation(t *testing.T) {
	srv := newTestServer(t)

	status := do(t, "POST", srv.URL+"/v1/notes/n1/flashcards", addFlashcardRequest{Back: "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = do(t, "DELETE", srv.URL+"/v1/notes/n1/pages/p1/segments/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = do(t, "GET", srv.URL+"/v1/notes/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_PagesAndSegments(t *testing.T) {
	srv := newTestServer(t)

	var note model.Note
	require.Equal(t, http.StatusCreated, do(t, "POST", srv.URL+"/v1/notes", model.Note{Title: "Reader"}, &note))

	page := model.Page{ID: "p1", OriginalText: "你好。再见。", TranslatedText: "Hello. Goodbye."}
	require.Equal(t, http.StatusCreated, do(t, "POST", srv.URL+"/v1/notes/"+note.ID+"/pages", page, nil))

	var pages []model.Page
	require.Equal(t, http.StatusOK, do(t, "GET", srv.URL+"/v1/notes/"+note.ID+"/pages", nil, &pages))
	assert.Equal(t, []string{"p1"}, model.PageIDs(pages))

	var pt model.ProcessedText
	require.Equal(t, http.StatusOK, do(t, "GET", srv.URL+"/v1/notes/"+note.ID+"/pages/p1/text", nil, &pt))
	assert.Len(t, pt.Segments, 2)

	require.Equal(t, http.StatusOK, do(t, "DELETE", srv.URL+"/v1/notes/"+note.ID+"/pages/p1/segments/1", nil, &pt))
	assert.Len(t, pt.Segments, 1)
	assert.Equal(t, "你好。", pt.FullOriginalText)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(service.ErrLoad))
	assert.Equal(t, http.StatusInternalServerError, statusOf(assert.AnError))
}
