package promo

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/promolabs/promo-api/internal/cart"
	"github.com/promolabs/promo-api/internal/common"
	"github.com/promolabs/promo-api/internal/obs"
	"github.com/promolabs/promo-api/internal/rule"
)

// Handler exposes rule management and cart pricing endpoints.
type Handler struct {
	Store    *rule.Store
	Engine   rule.Engine
	Validate *validator.Validate
}

type createRulePayload struct {
	Family  string       `json:"family" validate:"required,oneof=cart_wise product_wise bxgy"`
	Details rule.Details `json:"details"`
}

type updateRulePayload struct {
	Family  string       `json:"family" validate:"omitempty,oneof=cart_wise product_wise bxgy"`
	Details rule.Details `json:"details"`
}

type evaluatePayload struct {
	Cart *cart.Cart `json:"cart" validate:"required"`
}

// Create registers a new rule.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createRulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	created, err := h.Store.Create(rule.Family(payload.Family), payload.Details)
	if err != nil {
		countMutation("create", rule.Family(payload.Family), "error")
		h.writeError(w, err)
		return
	}
	countMutation("create", created.Family, "ok")
	h.syncActiveGauge()
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// List returns rules filtered by their effective active flag. The default is
// active rules; pass active=false for the inactive set.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	active := common.ParseBoolDefault(strings.TrimSpace(r.URL.Query().Get("active")), true)
	rules := h.Store.List(active)
	common.JSON(w, http.StatusOK, map[string]any{"data": rules})
}

// Get returns a single rule by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ruleID(w, r)
	if !ok {
		return
	}
	found, err := h.Store.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": found})
}

// Update applies a sparse overlay to an existing rule. Fields present in the
// payload replace the stored values; absent fields are kept.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ruleID(w, r)
	if !ok {
		return
	}
	var payload updateRulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	updated, err := h.Store.Update(id, rule.Family(payload.Family), payload.Details)
	if err != nil {
		countMutation("update", rule.Family(payload.Family), "error")
		h.writeError(w, err)
		return
	}
	countMutation("update", updated.Family, "ok")
	h.syncActiveGauge()
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete removes a rule and its index entries.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ruleID(w, r)
	if !ok {
		return
	}
	deleted, err := h.Store.Delete(id)
	if err != nil {
		countMutation("delete", "", "error")
		h.writeError(w, err)
		return
	}
	countMutation("delete", deleted.Family, "ok")
	h.syncActiveGauge()
	common.JSON(w, http.StatusOK, map[string]any{"data": deleted})
}

// Evaluate returns every rule that would grant a discount on the submitted
// cart, sorted by discount descending.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var payload evaluatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	results, err := h.Engine.Evaluate(payload.Cart)
	if err != nil {
		countEvaluation("error")
		h.writeError(w, err)
		return
	}
	countEvaluation("ok")
	common.JSON(w, http.StatusOK, map[string]any{"data": results})
}

// Apply prices the cart under a single named rule.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ruleID(w, r)
	if !ok {
		return
	}
	var payload evaluatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	applied, err := h.Engine.Apply(id, payload.Cart)
	if err != nil {
		countApplication("", "error")
		h.writeError(w, err)
		return
	}
	found, _ := h.Store.Get(id)
	countApplication(found.Family, "ok")
	common.JSON(w, http.StatusOK, map[string]any{"data": applied})
}

// SweepExpired deactivates every active rule whose expiry date has passed.
// The expiry worker calls it on a schedule; it is safe to call concurrently.
func (h *Handler) SweepExpired(w http.ResponseWriter, r *http.Request) {
	swept := h.Store.DeactivateExpired(time.Now())
	if swept > 0 && obs.ExpiredRulesSwept != nil {
		obs.ExpiredRulesSwept.Add(float64(swept))
	}
	h.syncActiveGauge()
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]int{"swept": swept}})
}

func (h *Handler) ruleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "ruleId"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "ruleId must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func (h *Handler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	app := toAppError(err)
	common.JSONError(w, app.HTTPStatus, app.Code, app.Message, app.Details)
}

// toAppError translates domain errors into the wire-level taxonomy.
func toAppError(err error) *common.AppError {
	var verr *rule.ValidationError
	switch {
	case errors.As(err, &verr):
		return common.NewAppError("VALIDATION", verr.Reason, http.StatusBadRequest, err)
	case errors.Is(err, rule.ErrNotFound):
		return common.NewAppError("NOT_FOUND", "rule not found", http.StatusNotFound, err)
	case errors.Is(err, rule.ErrInactive):
		return common.NewAppError("INACTIVE", "rule is not active", http.StatusConflict, err)
	case errors.Is(err, cart.ErrInvalidCart):
		return common.NewAppError("INVALID_CART", "cart is missing, empty, or has invalid items", http.StatusBadRequest, err)
	default:
		return common.NewAppError("INTERNAL", "unexpected error", http.StatusInternalServerError, err)
	}
}

// syncActiveGauge refreshes the per-family active rule gauges after a
// mutation. Metrics are optional at runtime so every access is nil guarded.
func (h *Handler) syncActiveGauge() {
	if obs.ActiveRules == nil {
		return
	}
	counts := h.Store.ActiveCounts()
	for _, f := range []rule.Family{rule.FamilyCartWise, rule.FamilyProductWise, rule.FamilyBxGy} {
		obs.ActiveRules.WithLabelValues(string(f)).Set(float64(counts[f]))
	}
}

func countMutation(op string, family rule.Family, result string) {
	if obs.RuleMutationsTotal != nil {
		obs.RuleMutationsTotal.WithLabelValues(op, string(family), result).Inc()
	}
}

func countEvaluation(result string) {
	if obs.CartEvaluationsTotal != nil {
		obs.CartEvaluationsTotal.WithLabelValues(result).Inc()
	}
}

func countApplication(family rule.Family, result string) {
	if obs.RuleApplicationsTotal != nil {
		obs.RuleApplicationsTotal.WithLabelValues(string(family), result).Inc()
	}
}
