package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caiomeira/extractd/internal/core/domain"
)

type fakeExtractor struct {
	result  domain.ExtractionResult
	err     error
	lastReq domain.ExtractionRequest
}

func (f *fakeExtractor) Extract(_ context.Context, req domain.ExtractionRequest) (domain.ExtractionResult, error) {
	f.lastReq = req
	return f.result, f.err
}

type fakeQueue struct {
	published []domain.ExtractionJob
	err       error
}

func (f *fakeQueue) PublishExtractionJob(_ context.Context, job domain.ExtractionJob) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, job)
	return nil
}

func (f *fakeQueue) SubscribeExtractionJobs(context.Context, func(context.Context, domain.ExtractionJob) error) error {
	return nil
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "doc.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("%PDF-1.4 fake"))
	for k, v := range fields {
		_ = writer.WriteField(k, v)
	}
	_ = writer.Close()
	return body, writer.FormDataContentType()
}

func TestExtractReturnsValuesWithoutDebugByDefault(t *testing.T) {
	extractor := &fakeExtractor{
		result: domain.ExtractionResult{
			Label:  domain.LabelCarteiraOAB,
			Keys:   []string{"nome", "inscricao"},
			Values: map[string]string{"nome": "MARIA SILVA", "inscricao": "123456"},
			Debug:  domain.Debug{LayoutFinal: domain.LayoutV1},
		},
	}
	router := NewRouter(extractor, nil, nil, "api")

	body, contentType := multipartBody(t, map[string]string{
		"label":  "carteira_oab",
		"fields": `["nome","inscricao"]`,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp extractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Values["nome"] != "MARIA SILVA" {
		t.Fatalf("unexpected values: %v", resp.Values)
	}
	if resp.Debug != nil {
		t.Fatalf("debug must be omitted unless requested")
	}
	if len(extractor.lastReq.Fields) != 2 || extractor.lastReq.Fields[0] != "nome" {
		t.Fatalf("unexpected parsed fields: %v", extractor.lastReq.Fields)
	}
}

func TestExtractIncludesDebugWhenRequested(t *testing.T) {
	extractor := &fakeExtractor{
		result: domain.ExtractionResult{
			Label: domain.LabelTelaSistema,
			Debug: domain.Debug{LayoutFinal: domain.LayoutV2, LLMRequested: true},
		},
	}
	router := NewRouter(extractor, nil, nil, "api")

	body, contentType := multipartBody(t, map[string]string{
		"label": "tela_sistema",
		"debug": "true",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	var resp extractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Debug == nil || resp.Debug.LayoutFinal != domain.LayoutV2 || !resp.Debug.LLMRequested {
		t.Fatalf("unexpected debug: %+v", resp.Debug)
	}
}

func TestExtractMapsUnsupportedLabelToBadRequest(t *testing.T) {
	extractor := &fakeExtractor{
		err: domain.WrapError(domain.ErrUnsupportedLabel, "canonicalize schema", errors.New(`label "nota_fiscal"`)),
	}
	router := NewRouter(extractor, nil, nil, "api")

	body, contentType := multipartBody(t, map[string]string{"label": "nota_fiscal"})
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExtractUnreadableDocumentKeepsKeyShape(t *testing.T) {
	extractor := &fakeExtractor{
		result: domain.ExtractionResult{
			Label:  domain.LabelCarteiraOAB,
			Keys:   []string{"nome", "inscricao"},
			Values: map[string]string{"nome": "", "inscricao": ""},
		},
		err: domain.WrapError(domain.ErrDocumentUnreadable, "load document", errors.New("no text on page")),
	}
	router := NewRouter(extractor, nil, nil, "api")

	body, contentType := multipartBody(t, map[string]string{"label": "carteira_oab"})
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp extractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Keys) != 2 || resp.Values["nome"] != "" {
		t.Fatalf("expected empty-field result, got %+v", resp)
	}
	if resp.Error == "" {
		t.Fatalf("expected error message in response")
	}
}

func TestSubmitBatchPublishesJob(t *testing.T) {
	queue := &fakeQueue{}
	router := NewRouter(&fakeExtractor{}, queue, nil, "api")

	payload := `{"path":"/in/doc.pdf","label":"tela_sistema","fields":["produto"],"use_llm":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/extract/batch", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(queue.published) != 1 || queue.published[0].Path != "/in/doc.pdf" || !queue.published[0].UseLLM {
		t.Fatalf("unexpected published jobs: %+v", queue.published)
	}
	if queue.published[0].SubmittedAt.IsZero() {
		t.Fatalf("expected submission time stamped on the job")
	}
}

func TestSubmitBatchRequiresPath(t *testing.T) {
	router := NewRouter(&fakeExtractor{}, &fakeQueue{}, nil, "api")

	req := httptest.NewRequest(http.MethodPost, "/v1/extract/batch", bytes.NewBufferString(`{"label":"tela_sistema"}`))
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCommaSeparatedFieldListIsAccepted(t *testing.T) {
	extractor := &fakeExtractor{}
	router := NewRouter(extractor, nil, nil, "api")

	body, contentType := multipartBody(t, map[string]string{
		"label":  "tela_sistema",
		"fields": "produto, sistema ,cidade",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	want := []string{"produto", "sistema", "cidade"}
	if len(extractor.lastReq.Fields) != len(want) {
		t.Fatalf("unexpected fields: %v", extractor.lastReq.Fields)
	}
	for i, f := range want {
		if extractor.lastReq.Fields[i] != f {
			t.Fatalf("field %d: expected %q, got %q", i, f, extractor.lastReq.Fields[i])
		}
	}
}
