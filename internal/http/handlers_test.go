package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"reconboard/internal/domain"
	"reconboard/internal/logger"
	"reconboard/internal/mockdata"
	"reconboard/internal/service"
	"reconboard/internal/session"
)

const (
	taobaoCSV = "订单编号,店铺名称,商品名称,成本价,买家实际支付金额,付款时间\n" +
		"TB1,淘宝旗舰店,耳机,60,100,2025-06-01\n" +
		"TB2,淘宝旗舰店,耳机,30,50,2025-06-01\n"
	jdCSV = "订单号,店铺名称,商品名称,成本价,订单金额,下单时间\n" +
		"JD1,京东自营店,键盘,80,120,2025-06-02\n"
	bankCSV = "商户订单号,交易金额\n" +
		"TB1,100\n" +
		"TB2,45\n"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(session.NewStore(), mockdata.New(), nil, nil)
	return NewRouter(NewHandler(svc, nil, 0, 10), RouterOptions{})
}

func multipartBody(t *testing.T, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, file := range files {
		part, err := mw.CreateFormFile(field, file[0])
		require.NoError(t, err)
		_, err = part.Write([]byte(file[1]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, router http.Handler, files map[string][2]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRootAndHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := get(router, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["message"])

	assert.Equal(t, http.StatusOK, get(router, "/healthz").Code)
}

func TestUpload_Success(t *testing.T) {
	router := newTestRouter(t)

	rec := upload(t, router, map[string][2]string{
		fieldTaobao: {"taobao.csv", taobaoCSV},
		fieldJD:     {"jd.csv", jdCSV},
		fieldBank:   {"bank.csv", bankCSV},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.ImportStats{Taobao: 2, JD: 1, Flow: 2}, resp.Stats)
	require.Len(t, resp.Records, 3)
	assert.Equal(t, domain.StatusMismatch, resp.Records[1].Status)
	assert.Len(t, resp.Metrics.Insights, 4)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw, "records")
	assert.Contains(t, raw, "metrics")
	assert.Contains(t, raw, "stats")

	sessionRec := get(router, "/api/v1/session")
	var view sessionView
	require.NoError(t, json.Unmarshal(sessionRec.Body.Bytes(), &view))
	assert.True(t, view.Loaded)
	assert.Equal(t, domain.SourceBackend, view.Source)
	assert.Equal(t, 3, view.RecordCount)
	assert.Equal(t, 2, view.ReviewCount)
}

func TestUpload_NoFiles(t *testing.T) {
	router := newTestRouter(t)

	rec := upload(t, router, map[string][2]string{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Records)
	assert.Empty(t, resp.Records)
	assert.Equal(t, domain.ImportStats{}, resp.Stats)
	assert.Len(t, resp.Metrics.Insights, 4)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.JSONEq(t, `[]`, string(raw["records"]))
}

func TestUpload_Errors(t *testing.T) {
	router := newTestRouter(t)

	rec := upload(t, router, map[string][2]string{fieldBank: {"bank.pdf", "x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, router, map[string][2]string{fieldJD: {"jd.csv", "店铺\nx\n"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsAndExport_NoSession(t *testing.T) {
	router := newTestRouter(t)

	assert.Equal(t, http.StatusNotFound, get(router, "/api/v1/metrics").Code)
	assert.Equal(t, http.StatusNotFound, get(router, "/api/v1/records/export").Code)

	rec := get(router, "/api/v1/records")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"total":0}`, rec.Body.String())

	rec = get(router, "/api/v1/session")
	assert.JSONEq(t, `{"loaded":false,"stats":{"taobao":0,"jd":0,"flow":0},"recordCount":0,"reviewCount":0}`, rec.Body.String())
}

func TestRecords_Filters(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusOK, upload(t, router, map[string][2]string{
		fieldTaobao: {"taobao.csv", taobaoCSV},
		fieldJD:     {"jd.csv", jdCSV},
		fieldBank:   {"bank.csv", bankCSV},
	}).Code)

	var body struct {
		Items []domain.OrderRecord `json:"items"`
		Total int                  `json:"total"`
	}
	rec := get(router, "/api/v1/records?platform=JD")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "JD1", body.Items[0].OrderID)

	rec = get(router, "/api/v1/records?status=MISSING_PAYMENT")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)

	rec = get(router, "/api/v1/records?q=tb2")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)

	assert.Equal(t, http.StatusBadRequest, get(router, "/api/v1/records?platform=pdd").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/api/v1/records?status=late").Code)
}

func TestExport(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusOK, upload(t, router, map[string][2]string{
		fieldTaobao: {"taobao.csv", taobaoCSV},
		fieldBank:   {"bank.csv", bankCSV},
	}).Code)

	rec := get(router, "/api/v1/records/export?platform=TB&status=MISMATCH")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "TB2", rows[1][0])
	assert.Equal(t, "-5", rows[1][6])

	rec = get(router, "/api/v1/records/export?format=xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	sheetRows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	assert.Len(t, sheetRows, 3)

	assert.Equal(t, http.StatusBadRequest, get(router, "/api/v1/records/export?format=pdf").Code)
}

type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestExport_WriteFailureIsLogged(t *testing.T) {
	for _, format := range []string{"csv", "xlsx"} {
		t.Run(format, func(t *testing.T) {
			var logs bytes.Buffer
			svc := service.New(session.NewStore(), mockdata.New(), nil, nil)
			svc.LoadDemo(context.Background(), 5)
			h := NewHandler(svc, logger.New(logger.Config{Level: "info", Out: &logs}), 0, 10)

			w := brokenWriter{httptest.NewRecorder()}
			h.ExportRecords(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/export?format="+format, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			var entry map[string]any
			require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
			assert.Equal(t, "error", entry["level"])
			assert.Equal(t, "write export", entry["message"])
			assert.Equal(t, format, entry["format"])
			assert.Contains(t, entry["error"], "connection reset")
		})
	}
}

func TestLoadDemo(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/demo", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 10)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/demo?count=25", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 25)

	metricsRec := get(router, "/api/v1/metrics")
	require.Equal(t, http.StatusOK, metricsRec.Code)
	var m domain.DashboardMetrics
	require.NoError(t, json.Unmarshal(metricsRec.Body.Bytes(), &m))
	assert.Len(t, m.Insights, 4)

	for _, bad := range []string{"0", "-3", "abc", "1000000"} {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/demo?count="+bad, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestListRuns_WithoutHistory(t *testing.T) {
	router := newTestRouter(t)
	rec := get(router, "/api/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(router, "/api/v1/runs?limit=x").Code)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovererReturnsJSON(t *testing.T) {
	h := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}
