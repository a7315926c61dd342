// Package handler exposes the case lifecycle operations over HTTP. It only
// translates: decode, call the service, map the business code to a status.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"kyc-core/internal/auth"
	"kyc-core/internal/kyc/models"
	"kyc-core/internal/kyc/service"
	"kyc-core/internal/platform/middleware"
	dErrors "kyc-core/pkg/domain-errors"
)

// Service is the operation surface the transport needs.
type Service interface {
	SaveData(ctx context.Context, cred auth.Credential, req *models.SaveRequest) (*service.SaveResult, error)
	SaveFormsData(ctx context.Context, formToken, formID string, req *models.SaveRequest) (*service.SaveResult, error)
	SaveDocuments(ctx context.Context, cred auth.Credential, uploads []models.DocumentUpload) ([]models.DocumentResult, error)
	SaveFormsDocuments(ctx context.Context, formToken, formID string, uploads []models.DocumentUpload) ([]models.DocumentResult, error)
	Fetch(ctx context.Context, cred auth.Credential, collection string, uid int64, page models.Page) ([]service.View, error)
	Delete(ctx context.Context, cred auth.Credential, collection, recordID string, uid int64) error
	Process(ctx context.Context, cred auth.Credential, recordID, status, notes string, notify *bool) (*service.ProcessResult, error)
	FindByType(ctx context.Context, cred auth.Credential, typeStr, search string, page models.Page) (*service.FindResult, error)
	AdminCheckEdit(ctx context.Context, cred auth.Credential, caseID string) (*service.CheckEditResult, error)
	StatusLogs(ctx context.Context, cred auth.Credential, filter models.LogFilter, unique bool, page models.Page) ([]models.StatusLogEntry, error)
	Analytics(ctx context.Context, cred auth.Credential, reportType string, filter models.LogFilter, precision float64, timeFrame string) (any, error)
	FetchAdmins(ctx context.Context, cred auth.Credential) ([]service.AdminInfo, error)
	VerifiedUser(ctx context.Context, uid int64, email string) (bool, error)
	LoginAdmin(ctx context.Context, email, password, ip, userAgent string) (*auth.Session, error)
	LogoutAdmin(ctx context.Context, token string) error
}

type Handler struct {
	svc     Service
	log     *slog.Logger
	timeout time.Duration
}

func New(svc Service, log *slog.Logger, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{svc: svc, log: log, timeout: timeout}
}

// Register mounts the operation routes with the cross-cutting middleware.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.RequestLogger(h.log))
	router.Use(middleware.Recovery(h.log))
	router.Use(chimiddleware.Timeout(h.timeout))

	router.Route("/kyc", func(r chi.Router) {
		r.Post("/data", h.handleSaveData)
		r.Post("/forms/data", h.handleSaveFormsData)
		r.Post("/documents", h.handleSaveDocuments)
		r.Post("/forms/documents", h.handleSaveFormsDocuments)
		r.Post("/process", h.handleProcess)
		r.Post("/check-edit/{caseID}", h.handleAdminCheckEdit)
		r.Post("/logs", h.handleStatusLogs)
		r.Post("/analytics", h.handleAnalytics)
		r.Get("/find", h.handleFindByType)
		r.Get("/admins", h.handleFetchAdmins)
		r.Get("/verified", h.handleVerifiedUser)
		r.Get("/{collection}", h.handleFetch)
		r.Delete("/{collection}/{recordID}", h.handleDelete)
	})
	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
	})

	r.Mount("/", router)
}

// credential assembles the opaque pair every operation carries: the bearer
// token plus the client IP pinned by the metadata middleware.
func credential(r *http.Request) auth.Credential {
	token := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(token, "Bearer "); ok {
		token = after
	}
	return auth.Credential{Token: token, IP: middleware.GetClientIP(r.Context())}
}

func (h *Handler) handleSaveData(w http.ResponseWriter, r *http.Request) {
	var req saveDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "SAVE_DATA", badBody(err))
		return
	}
	res, err := h.svc.SaveData(r.Context(), credential(r), req.toModel())
	if err != nil {
		h.writeError(w, r, "SAVE_DATA", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSaveFormsData(w http.ResponseWriter, r *http.Request) {
	var req formsDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "SAVE_FORMS_DATA", badBody(err))
		return
	}
	res, err := h.svc.SaveFormsData(r.Context(), req.Token, req.FormID, req.Data.toModel())
	if err != nil {
		h.writeError(w, r, "SAVE_FORMS_DATA", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSaveDocuments(w http.ResponseWriter, r *http.Request) {
	uploads, err := decodeUploads(r.Body)
	if err != nil {
		h.writeError(w, r, "SAVE_DOCUMENTS", err)
		return
	}
	res, err := h.svc.SaveDocuments(r.Context(), credential(r), uploads)
	if err != nil {
		h.writeError(w, r, "SAVE_DOCUMENTS", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSaveFormsDocuments(w http.ResponseWriter, r *http.Request) {
	var req formsDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "SAVE_FORMS_DOCUMENTS", badBody(err))
		return
	}
	res, err := h.svc.SaveFormsDocuments(r.Context(), req.Token, req.FormID, toUploads(req.Documents))
	if err != nil {
		h.writeError(w, r, "SAVE_FORMS_DOCUMENTS", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// decodeUploads enforces that the documents payload is a JSON array before
// decoding its elements.
func decodeUploads(body io.Reader) ([]models.DocumentUpload, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, badBody(err)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, dErrors.New(dErrors.CodeDocumentsMustBeArray, "")
	}
	var uploads []documentUpload
	if err := json.Unmarshal(trimmed, &uploads); err != nil {
		return nil, badBody(err)
	}
	return toUploads(uploads), nil
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	uid, _ := strconv.ParseInt(r.URL.Query().Get("uid"), 10, 64)
	views, err := h.svc.Fetch(r.Context(), credential(r), chi.URLParam(r, "collection"), uid, pageFromQuery(r))
	if err != nil {
		h.writeError(w, r, "FETCH", err)
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	uid, _ := strconv.ParseInt(r.URL.Query().Get("uid"), 10, 64)
	err := h.svc.Delete(r.Context(), credential(r),
		chi.URLParam(r, "collection"), chi.URLParam(r, "recordID"), uid)
	if err != nil {
		h.writeError(w, r, "DELETE", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "EDIT_PROCESS", badBody(err))
		return
	}
	res, err := h.svc.Process(r.Context(), credential(r), req.ID, req.Status, req.Notes, req.Notify)
	if err != nil {
		h.writeError(w, r, "EDIT_PROCESS", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleFindByType(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.FindByType(r.Context(), credential(r), q.Get("type"), q.Get("search"), pageFromQuery(r))
	if err != nil {
		h.writeError(w, r, "FIND", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAdminCheckEdit(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AdminCheckEdit(r.Context(), credential(r), chi.URLParam(r, "caseID"))
	if err != nil {
		h.writeError(w, r, "CHECK_EDIT", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCheckEditResponse(res))
}

func (h *Handler) handleStatusLogs(w http.ResponseWriter, r *http.Request) {
	var req statusLogsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "STATUS_LOGS", badBody(err))
		return
	}
	entries, err := h.svc.StatusLogs(r.Context(), credential(r), req.Filter.toModel(), req.Unique, req.Page.toModel())
	if err != nil {
		h.writeError(w, r, "STATUS_LOGS", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toLogResponses(entries))
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	var req analyticsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "ANALYTICS", badBody(err))
		return
	}
	report, err := h.svc.Analytics(r.Context(), credential(r),
		req.Type, req.Filter.toModel(), req.Precision, req.TimeFrame)
	if err != nil {
		h.writeError(w, r, "ANALYTICS", err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleFetchAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.svc.FetchAdmins(r.Context(), credential(r))
	if err != nil {
		h.writeError(w, r, "FETCH_ADMINS", err)
		return
	}
	h.writeJSON(w, http.StatusOK, admins)
}

func (h *Handler) handleVerifiedUser(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uid, _ := strconv.ParseInt(q.Get("uid"), 10, 64)
	ok, err := h.svc.VerifiedUser(r.Context(), uid, q.Get("email"))
	if err != nil {
		h.writeError(w, r, "VERIFIED_USER", err)
		return
	}
	h.writeJSON(w, http.StatusOK, verifiedResponse{Verified: ok})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "LOGIN", badBody(err))
		return
	}
	ctx := r.Context()
	session, err := h.svc.LoginAdmin(ctx, req.Email, req.Password,
		middleware.GetClientIP(ctx), middleware.GetUserAgent(ctx))
	if err != nil {
		h.writeError(w, r, "LOGIN", err)
		return
	}
	h.writeJSON(w, http.StatusOK, loginResponse{
		Token: session.Token,
		Email: session.Email,
		Level: int(session.Level),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.LogoutAdmin(r.Context(), credential(r).Token); err != nil {
		h.writeError(w, r, "LOGOUT", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func badBody(err error) error {
	return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", "error", err)
	}
}

// writeError maps the business code to an HTTP status. The wire carries the
// bare code; the op-scoped wrapping goes to the log.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		h.log.Error("operation failed", "op", op, "path", r.URL.Path,
			"error", dErrors.WrapOp(op, err))
	} else {
		h.log.Warn("operation rejected", "op", op, "path", r.URL.Path,
			"error", dErrors.WrapOp(op, err))
	}
	h.writeJSON(w, status, errorResponse{Error: string(code)})
}
