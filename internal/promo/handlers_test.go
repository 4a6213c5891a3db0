package promo_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/promolabs/promo-api/internal/promo"
	"github.com/promolabs/promo-api/internal/rule"
)

type ruleResponse struct {
	Data rule.Rule `json:"data"`
}

type rulesResponse struct {
	Data []rule.Rule `json:"data"`
}

type evaluateResponse struct {
	Data []rule.Applicable `json:"data"`
}

type applyResponse struct {
	Data rule.Application `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestHandler(t *testing.T) *promo.Handler {
	t.Helper()
	store := rule.NewStore(rule.StoreConfig{})
	return &promo.Handler{
		Store:    store,
		Engine:   rule.Engine{S: store},
		Validate: validator.New(),
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func withRuleID(req *http.Request, id string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("ruleId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestRuleHandlers(t *testing.T) {
	handler := newTestHandler(t)

	t.Run("create cart-wise", func(t *testing.T) {
		rec := postJSON(t, handler.Create, "/api/v1/rules",
			`{"family":"cart_wise","details":{"threshold":100,"discount":10}}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		var resp ruleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, int64(1), resp.Data.ID)
		require.Equal(t, rule.FamilyCartWise, resp.Data.Family)
		require.NotNil(t, resp.Data.Details.StartDate)
		require.NotNil(t, resp.Data.Details.ExpiryDate)
	})

	t.Run("create rejects unknown family", func(t *testing.T) {
		rec := postJSON(t, handler.Create, "/api/v1/rules",
			`{"family":"loyalty","details":{}}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "VALIDATION", resp.Error.Code)
	})

	t.Run("create rejects duplicate threshold", func(t *testing.T) {
		rec := postJSON(t, handler.Create, "/api/v1/rules",
			`{"family":"cart_wise","details":{"threshold":100,"discount":15}}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "VALIDATION", resp.Error.Code)
		require.Contains(t, resp.Error.Message, "threshold 100")
	})

	t.Run("get and list", func(t *testing.T) {
		req := withRuleID(httptest.NewRequest(http.MethodGet, "/api/v1/rules/1", nil), "1")
		rec := httptest.NewRecorder()
		handler.Get(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		lreq := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
		lrec := httptest.NewRecorder()
		handler.List(lrec, lreq)
		require.Equal(t, http.StatusOK, lrec.Code)
		var resp rulesResponse
		require.NoError(t, json.Unmarshal(lrec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)

		ireq := httptest.NewRequest(http.MethodGet, "/api/v1/rules?active=false", nil)
		irec := httptest.NewRecorder()
		handler.List(irec, ireq)
		var inactive rulesResponse
		require.NoError(t, json.Unmarshal(irec.Body.Bytes(), &inactive))
		require.Empty(t, inactive.Data)
	})

	t.Run("get unknown id", func(t *testing.T) {
		req := withRuleID(httptest.NewRequest(http.MethodGet, "/api/v1/rules/99", nil), "99")
		rec := httptest.NewRecorder()
		handler.Get(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "NOT_FOUND", resp.Error.Code)
	})

	t.Run("update threshold", func(t *testing.T) {
		body := `{"details":{"threshold":250}}`
		req := withRuleID(httptest.NewRequest(http.MethodPatch, "/api/v1/rules/1", strings.NewReader(body)), "1")
		rec := httptest.NewRecorder()
		handler.Update(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp ruleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 250, *resp.Data.Details.Threshold)
		// unset fields carried over from the stored rule
		require.Equal(t, float64(10), *resp.Data.Details.Discount)
	})

	t.Run("update rejects family change", func(t *testing.T) {
		body := `{"family":"bxgy","details":{}}`
		req := withRuleID(httptest.NewRequest(http.MethodPatch, "/api/v1/rules/1", strings.NewReader(body)), "1")
		rec := httptest.NewRecorder()
		handler.Update(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "VALIDATION", resp.Error.Code)
		require.Contains(t, resp.Error.Message, "family")
	})

	t.Run("delete", func(t *testing.T) {
		req := withRuleID(httptest.NewRequest(http.MethodDelete, "/api/v1/rules/1", nil), "1")
		rec := httptest.NewRecorder()
		handler.Delete(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 0, handler.Store.Len())
	})

	t.Run("bad rule id", func(t *testing.T) {
		req := withRuleID(httptest.NewRequest(http.MethodGet, "/api/v1/rules/abc", nil), "abc")
		rec := httptest.NewRecorder()
		handler.Get(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCartHandlers(t *testing.T) {
	handler := newTestHandler(t)

	seed := func(body string) int64 {
		rec := postJSON(t, handler.Create, "/api/v1/rules", body)
		require.Equal(t, http.StatusCreated, rec.Code)
		var resp ruleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Data.ID
	}

	seed(`{"family":"cart_wise","details":{"threshold":100,"discount":10}}`)
	productRuleID := seed(`{"family":"product_wise","details":{"productId":1,"discount":20}}`)
	bxgyRuleID := seed(`{"family":"bxgy","details":{"buyProducts":[1,2],"buyQuantity":3,"getProducts":[3],"getQuantity":1,"repetitionLimit":2}}`)

	cartBody := `{"cart":{"items":[
		{"productId":1,"price":50,"quantity":6},
		{"productId":3,"price":25,"quantity":2}
	]}}`

	t.Run("evaluate ranks by discount", func(t *testing.T) {
		rec := postJSON(t, handler.Evaluate, "/api/v1/carts/evaluate", cartBody)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp evaluateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 3)
		for i := 1; i < len(resp.Data); i++ {
			require.GreaterOrEqual(t, resp.Data[i-1].Discount, resp.Data[i].Discount)
		}
		// product-wise: 50*6*20% = 60 beats cart-wise 350*10% = 35 and bxgy 2*25 = 50
		require.Equal(t, rule.FamilyProductWise, resp.Data[0].Family)
		require.Equal(t, float64(60), resp.Data[0].Discount)
	})

	t.Run("evaluate rejects empty cart", func(t *testing.T) {
		rec := postJSON(t, handler.Evaluate, "/api/v1/carts/evaluate", `{"cart":{"items":[]}}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "INVALID_CART", resp.Error.Code)
	})

	t.Run("apply product-wise", func(t *testing.T) {
		target := fmt.Sprintf("/api/v1/rules/%d/apply", productRuleID)
		req := withRuleID(httptest.NewRequest(http.MethodPost, target, strings.NewReader(cartBody)), fmt.Sprint(productRuleID))
		rec := httptest.NewRecorder()
		handler.Apply(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp applyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, float64(350), resp.Data.TotalPrice)
		require.Equal(t, float64(60), resp.Data.TotalDiscount)
		require.Equal(t, float64(290), resp.Data.FinalPrice)
		require.Equal(t, float64(60), resp.Data.Items[0].TotalDiscount)
		require.Zero(t, resp.Data.Items[1].TotalDiscount)
	})

	t.Run("apply bxgy attributes freed units", func(t *testing.T) {
		target := fmt.Sprintf("/api/v1/rules/%d/apply", bxgyRuleID)
		req := withRuleID(httptest.NewRequest(http.MethodPost, target, strings.NewReader(cartBody)), fmt.Sprint(bxgyRuleID))
		rec := httptest.NewRecorder()
		handler.Apply(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp applyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		// 6 buy units fill 2 sets; both free units land on product 3
		require.Equal(t, float64(50), resp.Data.TotalDiscount)
		require.Equal(t, float64(50), resp.Data.Items[1].TotalDiscount)
	})

	t.Run("apply inactive rule conflicts", func(t *testing.T) {
		body := `{"details":{"isActive":false}}`
		ureq := withRuleID(httptest.NewRequest(http.MethodPatch, "/api/v1/rules/2", strings.NewReader(body)), fmt.Sprint(productRuleID))
		urec := httptest.NewRecorder()
		handler.Update(urec, ureq)
		require.Equal(t, http.StatusOK, urec.Code)

		target := fmt.Sprintf("/api/v1/rules/%d/apply", productRuleID)
		req := withRuleID(httptest.NewRequest(http.MethodPost, target, strings.NewReader(cartBody)), fmt.Sprint(productRuleID))
		rec := httptest.NewRecorder()
		handler.Apply(rec, req)
		require.Equal(t, http.StatusConflict, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "INACTIVE", resp.Error.Code)
	})

	t.Run("apply unknown rule", func(t *testing.T) {
		req := withRuleID(httptest.NewRequest(http.MethodPost, "/api/v1/rules/99/apply", strings.NewReader(cartBody)), "99")
		rec := httptest.NewRecorder()
		handler.Apply(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
