package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/serroba/linktrail/internal/handlers"
	"github.com/serroba/linktrail/internal/shortener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(body, &out))

	return out
}

func TestCreateLink(t *testing.T) {
	t.Run("creates link with generated code", func(t *testing.T) {
		srv := newTestServer(t)

		w := srv.do(t, http.MethodPost, "/api/links", "owner-1", `{"url":"https://Example.com:443/path"}`)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		body := decode[handlers.LinkBody](t, w.Body.Bytes())
		assert.Len(t, body.Code, 8)
		assert.Equal(t, testBaseURL+"/"+body.Code, body.ShortURL)
		assert.Equal(t, body.ShortURL, w.Header().Get("Location"))
		assert.Equal(t, "https://example.com/path", body.Destination)
		assert.Equal(t, "active", body.Status)
		assert.Equal(t, int64(0), body.Clicks)
		require.Len(t, srv.publisher.created, 1)
		assert.Equal(t, body.ID, srv.publisher.created[0].ID)
	})

	t.Run("accepts custom code and remarks", func(t *testing.T) {
		srv := newTestServer(t)

		w := srv.do(t, http.MethodPost, "/api/links", "owner-1",
			`{"url":"https://example.com","code":"launch-2024","remarks":"spring campaign"}`)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		body := decode[handlers.LinkBody](t, w.Body.Bytes())
		assert.Equal(t, "launch-2024", body.Code)
		assert.Equal(t, "spring campaign", body.Remarks)
	})

	t.Run("taken custom code is 409", func(t *testing.T) {
		srv := newTestServer(t)
		srv.createLink(t, "owner-2", shortener.CreateParams{Destination: "https://example.com", Code: "taken"})

		w := srv.do(t, http.MethodPost, "/api/links", "owner-1", `{"url":"https://example.com","code":"taken"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("reserved custom code is 400", func(t *testing.T) {
		srv := newTestServer(t)

		w := srv.do(t, http.MethodPost, "/api/links", "owner-1", `{"url":"https://example.com","code":"api"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid destination is 400", func(t *testing.T) {
		srv := newTestServer(t)

		w := srv.do(t, http.MethodPost, "/api/links", "owner-1", `{"url":"javascript:alert(1)"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, srv.publisher.created)
	})

	t.Run("requires an owner", func(t *testing.T) {
		srv := newTestServer(t)

		w := srv.do(t, http.MethodPost, "/api/links", "", `{"url":"https://example.com"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestListLinks(t *testing.T) {
	srv := newTestServer(t)
	mine := srv.createLink(t, "owner-1", shortener.CreateParams{Destination: "https://example.com/mine"})
	srv.createLink(t, "owner-2", shortener.CreateParams{Destination: "https://example.com/theirs"})

	srv.do(t, http.MethodGet, "/"+string(mine.Code), "", "", "User-Agent", chromeUA)

	w := srv.do(t, http.MethodGet, "/api/links", "owner-1", "")

	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		Links  []handlers.LinkBody  `json:"links"`
		Visits []handlers.VisitBody `json:"visits"`
	}](t, w.Body.Bytes())

	require.Len(t, body.Links, 1)
	assert.Equal(t, mine.ID, body.Links[0].ID)
	assert.Equal(t, int64(1), body.Links[0].Clicks)
	require.Len(t, body.Visits, 1)
	assert.Equal(t, string(mine.Code), body.Visits[0].Code)
	assert.Equal(t, "https://example.com/mine", body.Visits[0].Destination)
}

func TestGetUpdateDeleteLink(t *testing.T) {
	t.Run("other owners cannot see the link", func(t *testing.T) {
		srv := newTestServer(t)
		link := srv.createLink(t, "owner-1", shortener.CreateParams{Destination: "https://example.com"})

		assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/links/"+link.ID, "owner-1", "").Code)
		assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/links/"+link.ID, "owner-2", "").Code)
	})

	t.Run("extending expiration reactivates", func(t *testing.T) {
		srv := newTestServer(t)
		past := time.Now().Add(-time.Hour)
		link := srv.createLink(t, "owner-1", shortener.CreateParams{Destination: "https://example.com", ExpiresAt: &past})

		future := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
		w := srv.do(t, http.MethodPatch, "/api/links/"+link.ID, "owner-1", `{"expiresAt":"`+future+`"}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "active", decode[handlers.LinkBody](t, w.Body.Bytes()).Status)
		assert.Equal(t, http.StatusFound, srv.do(t, http.MethodGet, "/"+string(link.Code), "", "").Code)
	})

	t.Run("updates destination", func(t *testing.T) {
		srv := newTestServer(t)
		link := srv.createLink(t, "owner-1", shortener.CreateParams{Destination: "https://example.com/old"})

		w := srv.do(t, http.MethodPatch, "/api/links/"+link.ID, "owner-1", `{"url":"https://example.com/new"}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		redirect := srv.do(t, http.MethodGet, "/"+string(link.Code), "", "")
		assert.Equal(t, "https://example.com/new", redirect.Header().Get("Location"))
	})

	t.Run("delete removes link and stops redirects", func(t *testing.T) {
		srv := newTestServer(t)
		link := srv.createLink(t, "owner-1", shortener.CreateParams{Destination: "https://example.com"})

		assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodDelete, "/api/links/"+link.ID, "owner-2", "").Code)
		assert.Equal(t, http.StatusNoContent, srv.do(t, http.MethodDelete, "/api/links/"+link.ID, "owner-1", "").Code)
		assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/"+string(link.Code), "", "").Code)
	})
}

func TestStats(t *testing.T) {
	srv := newTestServer(t)
	link := srv.createLink(t, "owner-1", shortener.CreateParams{Destination: "https://example.com"})

	srv.do(t, http.MethodGet, "/"+string(link.Code), "", "", "User-Agent", chromeUA, "X-Real-IP", "198.51.100.1")
	srv.do(t, http.MethodGet, "/"+string(link.Code), "", "",
		"User-Agent", "Mozilla/5.0 (Linux; Android 14)", "X-Real-IP", "198.51.100.2")

	t.Run("owner sees totals and breakdowns", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/links/"+link.ID+"/stats", "owner-1", "")

		require.Equal(t, http.StatusOK, w.Code)

		body := decode[struct {
			TotalVisits int                        `json:"totalVisits"`
			Devices     []handlers.DeviceCountBody `json:"devices"`
			Daily       []handlers.DayCountBody    `json:"daily"`
		}](t, w.Body.Bytes())

		assert.Equal(t, 2, body.TotalVisits)
		assert.ElementsMatch(t, []handlers.DeviceCountBody{
			{Device: "Android", Count: 1},
			{Device: "Mac", Count: 1},
		}, body.Devices)
		require.Len(t, body.Daily, 1)
		assert.Equal(t, 2, body.Daily[0].Count)
	})

	t.Run("another owner is forbidden", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/links/"+link.ID+"/stats", "owner-2", "")

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown link is 404", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/links/nope/stats", "owner-1", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestQRCode(t *testing.T) {
	srv := newTestServer(t)
	link := srv.createLink(t, "owner-1", shortener.CreateParams{Destination: "https://example.com"})

	w := srv.do(t, http.MethodGet, "/api/links/"+link.ID+"/qr", "owner-1", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/links/"+link.ID+"/qr", "owner-2", "").Code)
}
