package mediahost

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, err := NewClient(ClientOpts{
		BaseURL:   ts.URL,
		CloudName: "evimeria",
		APIKey:    "key",
		APISecret: "secret",
	})
	require.NoError(t, err)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(ClientOpts{CloudName: "evimeria", APIKey: "key"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSign(t *testing.T) {
	// sha1("overwrite=true&public_id=evimeria/x&timestamp=1700000000secret")
	params := map[string]string{
		"timestamp": "1700000000",
		"public_id": "evimeria/x",
		"overwrite": "true",
		"empty":     "",
	}
	got := Sign(params, "secret")
	assert.Len(t, got, 40)
	assert.Equal(t, got, Sign(map[string]string{
		"overwrite": "true",
		"public_id": "evimeria/x",
		"timestamp": "1700000000",
	}, "secret"), "empty values and key order do not change the signature")
	assert.NotEqual(t, got, Sign(params, "other"))
}

func TestUpload(t *testing.T) {
	var req *http.Request
	var form map[string]string
	var body []byte

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req = r
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "cap_12_product.jpg", header.Filename)
		body, _ = io.ReadAll(f)

		writeJSON(w, http.StatusOK, `{"public_id":"evimeria/products/accessoires/casquette/cap_12_product","secure_url":"https://res.example/cap.jpg"}`)
	})

	url, err := c.Upload(context.Background(), "evimeria/products/accessoires/casquette/cap_12_product", []byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "https://res.example/cap.jpg", url)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1_1/evimeria/image/upload", req.URL.Path)
	assert.Equal(t, []byte("jpeg-bytes"), body)
	assert.Equal(t, "key", form["api_key"])
	assert.Equal(t, "1700000000", form["timestamp"])
	assert.Equal(t, "true", form["overwrite"])
	assert.Equal(t, Sign(map[string]string{
		"public_id": "evimeria/products/accessoires/casquette/cap_12_product",
		"overwrite": "true",
		"timestamp": "1700000000",
	}, "secret"), form["signature"])
}

func TestUploadErrors(t *testing.T) {
	t.Run("Host error message is kept", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, `{"error":{"message":"Invalid Signature"}}`)
		})
		_, err := c.Upload(context.Background(), "evimeria/x", []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid Signature")
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("Missing secure url", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"public_id":"evimeria/x"}`)
		})
		_, err := c.Upload(context.Background(), "evimeria/x", []byte("x"))
		assert.ErrorContains(t, err, "secure_url")
	})
}

func TestListByPrefixFollowsCursor(t *testing.T) {
	var cursors []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/v1_1/evimeria/resources/image/upload", r.URL.Path)
		assert.Equal(t, "evimeria/products/hommes", r.URL.Query().Get("prefix"))

		cursor := r.URL.Query().Get("next_cursor")
		cursors = append(cursors, cursor)
		if cursor == "" {
			writeJSON(w, http.StatusOK, `{"resources":[{"public_id":"a","secure_url":"https://res/a.jpg","created_at":"2024-05-01T10:00:00Z"}],"next_cursor":"page2"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"resources":[{"public_id":"b","secure_url":"https://res/b.jpg","created_at":"2024-05-02T10:00:00Z"}]}`)
	})

	resources, err := c.ListByPrefix(context.Background(), "evimeria/products/hommes")
	require.NoError(t, err)

	assert.Equal(t, []string{"", "page2"}, cursors)
	require.Len(t, resources, 2)
	assert.Equal(t, "https://res/a.jpg", resources[0].SecureURL)
	assert.Equal(t, "b", resources[1].PublicID)
	assert.Equal(t, 2024, resources[1].CreatedAt.Year())
}

func TestDeleteByPrefixRepeatsPartial(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "evimeria", r.URL.Query().Get("prefix"))
		if calls == 1 {
			writeJSON(w, http.StatusOK, `{"deleted":{"a":"deleted","b":"deleted"},"partial":true}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"deleted":{"c":"deleted","d":"not_found"},"partial":false}`)
	})

	n, err := c.DeleteByPrefix(context.Background(), "evimeria")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 3, n)
}

func TestSubFolders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/evimeria/folders/evimeria/products", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"folders":[{"name":"hommes","path":"evimeria/products/hommes"},{"name":"femmes","path":"evimeria/products/femmes"}]}`)
	})

	folders, err := c.SubFolders(context.Background(), "/evimeria/products/")
	require.NoError(t, err)
	assert.Equal(t, []Folder{
		{Name: "hommes", Path: "evimeria/products/hommes"},
		{Name: "femmes", Path: "evimeria/products/femmes"},
	}, folders)
}

func TestSubFoldersNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":{"message":"Can't find folder with path evimeria/products"}}`)
	})

	_, err := c.SubFolders(context.Background(), "evimeria/products")
	assert.ErrorContains(t, err, "Can't find folder")
}
