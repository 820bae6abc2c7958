package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"invoice-engine/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestSize(1 << 20)) // 1 MB

		// ── Stateless engine ─────────────────────────────────────────────────
		r.Post("/api/calc/line", h.calculateLine)
		r.Post("/api/calc/totals", h.calculateTotals)
		r.Post("/api/calc/due-date", h.dueDate)
		r.Post("/api/format", h.formatAmount)
		r.Post("/api/references", h.generateReference)
		r.Post("/api/references/validate", h.validateReference)
		r.Post("/api/invoice-numbers/next", h.nextInvoiceNumber)
		r.Get("/api/schemas", h.listSchemas)
		r.Get("/api/schemas/{name}", h.schema)

		// ── Tenants and invoices ─────────────────────────────────────────────
		r.Post("/api/tenants", h.createTenant)
		r.Get("/api/tenants/{id}", h.getTenant)
		r.Put("/api/tenants/{id}/banking", h.configureBanking)
		r.Get("/api/tenants/{id}/invoices", h.listInvoices)
		r.Post("/api/tenants/{id}/invoices", h.createInvoice)
		r.Get("/api/tenants/{id}/invoices/{invoiceID}", h.getInvoice)
		r.Delete("/api/tenants/{id}/invoices/{invoiceID}", h.deleteInvoice)
		r.Put("/api/tenants/{id}/invoices/{invoiceID}/items", h.replaceItems)
		r.Get("/api/references/{reference}/invoice", h.invoiceByReference)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// decodeJSON decodes the request body into v. On failure it writes 413 when
// the body went over the RequestSize limit and 400 otherwise, and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// idParam parses a positive integer URL parameter.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// ── Engine handlers ──────────────────────────────────────────────────────────

// calculateLine handles POST /api/calc/line.
func (h *Handler) calculateLine(w http.ResponseWriter, r *http.Request) {
	var req app.CalculateLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CalculateLine(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// calculateTotals handles POST /api/calc/totals.
func (h *Handler) calculateTotals(w http.ResponseWriter, r *http.Request) {
	var req app.CalculateTotalsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CalculateTotals(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// dueDate handles POST /api/calc/due-date.
func (h *Handler) dueDate(w http.ResponseWriter, r *http.Request) {
	var req app.DueDateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.DueDate(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// formatAmount handles POST /api/format.
func (h *Handler) formatAmount(w http.ResponseWriter, r *http.Request) {
	var req app.FormatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.FormatAmount(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// generateReference handles POST /api/references.
func (h *Handler) generateReference(w http.ResponseWriter, r *http.Request) {
	var req app.ReferenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.GenerateReference(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// validateReference handles POST /api/references/validate.
func (h *Handler) validateReference(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reference string `json:"reference"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, h.svc.ValidateReference(r.Context(), req.Reference))
}

// nextInvoiceNumber handles POST /api/invoice-numbers/next.
func (h *Handler) nextInvoiceNumber(w http.ResponseWriter, r *http.Request) {
	var req app.InvoiceNumberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.NextInvoiceNumber(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// listSchemas handles GET /api/schemas.
func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string][]string{"schemas": app.SchemaNames()})
}

// schema handles GET /api/schemas/{name}.
func (h *Handler) schema(w http.ResponseWriter, r *http.Request) {
	s, err := app.RequestSchema(chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, s)
}

// ── Tenant and invoice handlers ──────────────────────────────────────────────

// createTenant handles POST /api/tenants.
func (h *Handler) createTenant(w http.ResponseWriter, r *http.Request) {
	var req app.CreateTenantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CreateTenant(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

// getTenant handles GET /api/tenants/{id}.
func (h *Handler) getTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.GetTenant(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// configureBanking handles PUT /api/tenants/{id}/banking.
func (h *Handler) configureBanking(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.BankingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ConfigureBanking(r.Context(), tenantID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// listInvoices handles GET /api/tenants/{id}/invoices.
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.ListInvoices(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// createInvoice handles POST /api/tenants/{id}/invoices.
func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.CreateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = tenantID
	res, err := h.svc.CreateInvoice(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

// getInvoice handles GET /api/tenants/{id}/invoices/{invoiceID}.
func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	invoiceID, ok := idParam(w, r, "invoiceID")
	if !ok {
		return
	}
	res, err := h.svc.GetInvoice(r.Context(), tenantID, invoiceID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// deleteInvoice handles DELETE /api/tenants/{id}/invoices/{invoiceID}.
func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	invoiceID, ok := idParam(w, r, "invoiceID")
	if !ok {
		return
	}
	if err := h.svc.DeleteInvoice(r.Context(), tenantID, invoiceID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// replaceItems handles PUT /api/tenants/{id}/invoices/{invoiceID}/items.
func (h *Handler) replaceItems(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	invoiceID, ok := idParam(w, r, "invoiceID")
	if !ok {
		return
	}
	var req app.ReplaceItemsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = tenantID
	req.InvoiceID = invoiceID
	res, err := h.svc.ReplaceInvoiceItems(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// invoiceByReference handles GET /api/references/{reference}/invoice.
func (h *Handler) invoiceByReference(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.FindInvoiceByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
