package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	mid "github.com/grapat/backend/internal/server/middleware"
	"github.com/grapat/backend/internal/storage"
	"github.com/grapat/backend/pkg/arggraph"
	"github.com/grapat/backend/pkg/export"
	"github.com/grapat/backend/pkg/leaselock"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExporter struct {
	docs      map[string][]byte
	docErr    error
	report    export.Report
	reportErr error
	allCalls  int
}

func (f *fakeExporter) ExportDocument(_ context.Context, id string) ([]byte, error) {
	if f.docErr != nil {
		return nil, f.docErr
	}
	return f.docs[id], nil
}

func (f *fakeExporter) ExportAll(context.Context) (export.Report, error) {
	f.allCalls++
	return f.report, f.reportErr
}

type fakeChannel struct {
	published []string
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp091.Table) (amqp091.Queue, error) {
	return amqp091.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, _ amqp091.Publishing) error {
	f.published = append(f.published, key)
	return nil
}

func do(t *testing.T, app *mid.App, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	New(app).ServeHTTP(rec, req)
	return rec
}

func TestHealthAndUsers(t *testing.T) {
	app := &mid.App{Username: "alice"}

	rec := do(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = do(t, app, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"username":"alice"}]`, rec.Body.String())
}

func TestSegmentText(t *testing.T) {
	rec := do(t, &mid.App{}, http.MethodPost, "/api/edu/segment", url.Values{
		"text": {"Cats are mammals. Dogs\nare too.\n\nNew paragraph"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "Cats are mammals.\nDogs are too.\nNew paragraph", res["text"])
}

func TestSchema(t *testing.T) {
	rec := do(t, &mid.App{}, http.MethodGet, "/api/grapat/schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "nodes")
	assert.Contains(t, props, "edges")
}

func TestGetExport(t *testing.T) {
	exp := &fakeExporter{docs: map[string][]byte{"d1": []byte("<arggraph id=\"d1\"></arggraph>\n")}}
	app := &mid.App{Exporter: exp}

	rec := do(t, app, http.MethodGet, "/api/grapat/export?fileId=d1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, rec.Body.String(), `<arggraph id="d1">`)

	rec = do(t, app, http.MethodGet, "/api/grapat/export?fileId=missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, app, http.MethodGet, "/api/grapat/export", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	exp.docErr = fmt.Errorf("export d1: %w", &arggraph.MappingError{Key: "n", Value: "x", Err: arggraph.ErrUnknownNodeType})
	rec = do(t, app, http.MethodGet, "/api/grapat/export?fileId=d1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	exp.docErr = errors.New("pool closed")
	rec = do(t, app, http.MethodGet, "/api/grapat/export?fileId=d1", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPostExportInline(t *testing.T) {
	exp := &fakeExporter{report: export.Report{Run: "20240101-000000", Written: []string{"d1-s1-alice.xml"}}}
	app := &mid.App{Exporter: exp}

	rec := do(t, app, http.MethodPost, "/api/grapat/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, exp.allCalls)
	assert.Contains(t, rec.Body.String(), "d1-s1-alice.xml")

	exp.reportErr = leaselock.ErrBusy
	rec = do(t, app, http.MethodPost, "/api/grapat/export", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPostExportQueued(t *testing.T) {
	exp := &fakeExporter{}
	ch := &fakeChannel{}
	app := &mid.App{Exporter: exp, Queue: ch, Username: "alice"}

	rec := do(t, app, http.MethodPost, "/api/grapat/export", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Zero(t, exp.allCalls)
	assert.Equal(t, []string{"export_queue"}, ch.published)

	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res["job_id"])
}

func TestExportStatusWithoutLocks(t *testing.T) {
	rec := do(t, &mid.App{}, http.MethodGet, "/api/grapat/export/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"export:batch","held":false}`, rec.Body.String())
}

func TestSaveGraphValidation(t *testing.T) {
	app := &mid.App{}

	rec := do(t, app, http.MethodPost, "/api/grapat", url.Values{
		"annotation_bundle": {"d1"}, "sentence": {"d1"}, "graph": {""},
	})
	assert.Equal(t, http.StatusOK, rec.Code, "empty graph is ignored")

	rec = do(t, app, http.MethodPost, "/api/grapat", url.Values{
		"annotation_bundle": {"d1"}, "sentence": {"d1"}, "graph": {"{not json"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodPost, "/api/grapat", url.Values{
		"sentence": {"d1"}, "graph": {`{"nodes":{}}`},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type mapObjects map[string][]byte

func (m mapObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (m mapObjects) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return &s3.PutObjectOutput{}, nil
}

func (m mapObjects) DeleteObjects(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	return &s3.DeleteObjectsOutput{}, nil
}

func (m mapObjects) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range m {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestGetUploads(t *testing.T) {
	objects := mapObjects{
		"uploads/d1/abc.txt": []byte("Cats are mammals."),
		"uploads/d2/xyz.txt": []byte("other"),
	}

	rec := do(t, &mid.App{}, http.MethodGet, "/api/grapat/file?textId=d1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no bucket configured")

	app := &mid.App{Bucket: &storage.Bucket{Client: objects, Name: "grapat"}}

	rec = do(t, app, http.MethodGet, "/api/grapat/file?textId=d1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"keys":["uploads/d1/abc.txt"]}`, rec.Body.String())

	rec = do(t, app, http.MethodGet, "/api/grapat/file?textId=d1&key=uploads/d1/abc.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cats are mammals.", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = do(t, app, http.MethodGet, "/api/grapat/file?textId=d1&key=uploads/d2/xyz.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "key of another document")

	rec = do(t, app, http.MethodGet, "/api/grapat/file?textId=d3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"keys":[]}`, rec.Body.String())
}

func TestFileIngestionRejectsUnexportableText(t *testing.T) {
	app := &mid.App{}

	rec := do(t, app, http.MethodPut, "/api/grapat/file", url.Values{
		"textId": {"d1"}, "segments": {`["fine", "bad ]]> text"]`},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "segment 1")

	body := new(strings.Builder)
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("files", "essay.txt")
	require.NoError(t, err)
	_, err = io.WriteString(fw, "first line\nbell \x07 line\n")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/grapat/file", strings.NewReader(body.String()))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	New(app).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "segment 1")
}
