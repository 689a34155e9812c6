package media

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/abduss/filehub/internal/quota"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), svc)
	return router
}

func multipartUpload(t *testing.T, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/files/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadHandlerReturnsKey(t *testing.T) {
	f := newFixture(t, Options{})
	router := newTestRouter(f.service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "photo.jpg", "image/jpeg", []byte("jpeg")))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Key  string `json:"key"`
		Size int    `json:"size"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tok_photo.jpg", resp.Key)
	assert.Equal(t, 4, resp.Size)
}

func TestUploadHandlerMapsErrors(t *testing.T) {
	f := newFixture(t, Options{AllowedContentTypes: []string{"image/png"}, MaxUploadBytes: 8})
	router := newTestRouter(f.service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "doc.pdf", "application/pdf", []byte("%PDF")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "big.png", "image/png", bytes.Repeat([]byte{1}, 9)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	require.NoError(t, f.store.Put(context.Background(), "existing", bytes.Repeat([]byte{1}, 2*mb), ""))
	f.service.guard = quota.NewGuard(f.store, 1)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "ok.png", "image/png", []byte("png")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestDownloadAndDeleteHandlers(t *testing.T) {
	f := newFixture(t, Options{})
	router := newTestRouter(f.service)
	require.NoError(t, f.store.Put(context.Background(), "abc_photo.jpg", []byte("bytes"), "image/jpeg"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/download/abc_photo.jpg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="photo.jpg"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/files/delete/abc_photo.jpg", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/download/abc_photo.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewURLHandlerValidatesTTL(t *testing.T) {
	f := newFixture(t, Options{})
	router := newTestRouter(f.service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/preview-url/abc_photo.jpg?ttl=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/preview-url/abc_photo.jpg?ttl=30s", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "memory://media/abc_photo.jpg")
}

func TestPresignUploadHandlerRequiresFilename(t *testing.T) {
	f := newFixture(t, Options{})
	router := newTestRouter(f.service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/files/presign-upload?type=image/png", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
