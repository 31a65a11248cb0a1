package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reconboard/internal/domain"
	"reconboard/internal/excel"
	"reconboard/internal/logger"
	"reconboard/internal/metrics"
	"reconboard/internal/mockdata"
	"reconboard/internal/service"
)

const (
	fieldTaobao = "taobao_file"
	fieldJD     = "jd_file"
	fieldBank   = "bank_file"

	maxDemoCount = 100_000
	multipartMem = 32 << 20
)

type Handler struct {
	svc       *service.Service
	log       *logger.Logger
	maxUpload int64
	demoCount int
}

type sessionView struct {
	Loaded      bool               `json:"loaded"`
	RunID       string             `json:"runId,omitempty"`
	Source      domain.DataSource  `json:"source,omitempty"`
	ImportedAt  *time.Time         `json:"importedAt,omitempty"`
	Stats       domain.ImportStats `json:"stats"`
	RecordCount int                `json:"recordCount"`
	ReviewCount int                `json:"reviewCount"`
}

// NewHandler builds the API handlers. maxUpload is the per-file byte limit
// and demoCount the default size of a synthetic data set.
func NewHandler(svc *service.Service, log *logger.Logger, maxUpload int64, demoCount int) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if maxUpload <= 0 || maxUpload > excel.MaxFileSize {
		maxUpload = excel.MaxFileSize
	}
	if demoCount <= 0 {
		demoCount = mockdata.DefaultCount
	}
	return &Handler{svc: svc, log: log, maxUpload: maxUpload, demoCount: demoCount}
}

func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "message": "电商财务通后端服务运行中"})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 3*h.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(multipartMem); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, domain.ErrFileTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var input service.UploadInput
	for _, field := range []struct {
		name   string
		target **service.UploadFile
	}{
		{fieldTaobao, &input.Taobao},
		{fieldJD, &input.JD},
		{fieldBank, &input.Bank},
	} {
		file, header, err := r.FormFile(field.name)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", field.name, err))
			return
		}
		defer file.Close()

		if header.Size > h.maxUpload {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", header.Filename, domain.ErrFileTooLarge))
			return
		}
		*field.target = uploadFile(header, file)
	}

	resp, err := h.svc.Import(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Session(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.svc.Snapshot()
	if !ok {
		writeJSON(w, http.StatusOK, sessionView{Loaded: false})
		return
	}
	importedAt := snap.ImportedAt
	writeJSON(w, http.StatusOK, sessionView{
		Loaded:      true,
		RunID:       snap.RunID,
		Source:      snap.Source,
		ImportedAt:  &importedAt,
		Stats:       snap.Stats,
		RecordCount: len(snap.Records),
		ReviewCount: metrics.CountNeedingReview(snap.Records),
	})
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRecordFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records := h.svc.Records(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"items": records,
		"total": len(records),
	})
}

func (h *Handler) ExportRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter, err := parseRecordFilter(query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := h.svc.Snapshot(); !ok {
		writeError(w, http.StatusNotFound, service.ErrNoSnapshot.Error())
		return
	}

	format := strings.ToLower(strings.TrimSpace(query.Get("format")))
	if format == "" {
		format = "csv"
	}
	records := h.svc.Records(filter)

	// Headers are already sent when a write fails, so the error can only be logged.
	switch format {
	case "csv":
		setAttachment(w, "text/csv; charset=utf-8", excel.ExportFileName+".csv")
		w.WriteHeader(http.StatusOK)
		err = excel.WriteCSV(w, records)
	case "xlsx":
		setAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", excel.ExportFileName+".xlsx")
		w.WriteHeader(http.StatusOK)
		err = excel.WriteXLSX(w, records)
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}
	if err != nil {
		h.log.Error().
			Err(err).
			Str("format", format).
			Int("records", len(records)).
			Msg("write export")
	}
}

func (h *Handler) Metrics(w http.ResponseWriter, _ *http.Request) {
	m, err := h.svc.Metrics()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	count, err := parseOptionalInt(r.URL.Query().Get("count"), h.demoCount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if count == 0 || count > maxDemoCount {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("count must be between 1 and %d", maxDemoCount))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.LoadDemo(r.Context(), count))
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": runs})
}

func uploadFile(header *multipart.FileHeader, file multipart.File) *service.UploadFile {
	return &service.UploadFile{Name: header.Filename, Size: header.Size, Reader: file}
}

func parseRecordFilter(query url.Values) (domain.RecordFilter, error) {
	platform, ok := domain.ParsePlatform(query.Get("platform"))
	if !ok {
		return domain.RecordFilter{}, fmt.Errorf("invalid platform: %s", query.Get("platform"))
	}
	status, ok := domain.ParseStatus(query.Get("status"))
	if !ok {
		return domain.RecordFilter{}, fmt.Errorf("invalid status: %s", query.Get("status"))
	}
	return domain.RecordFilter{
		Platform: platform,
		Status:   status,
		Search:   query.Get("q"),
	}, nil
}

func setAttachment(w http.ResponseWriter, contentType, fileName string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(
		"attachment; filename=\"export%s\"; filename*=UTF-8''%s",
		fileExt(fileName),
		url.PathEscape(fileName),
	))
}

func fileExt(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx:]
	}
	return ""
}

func writeServiceError(w http.ResponseWriter, err error) {
	var parseErr *service.ParseError
	switch {
	case errors.As(err, &parseErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrFileTooLarge),
		errors.Is(err, domain.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNoSnapshot):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseOptionalInt(raw string, defaultValue int) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %s", raw)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("value cannot be negative")
	}
	return parsed, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
