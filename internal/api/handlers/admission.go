package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/xzzpig/graph-gateway/internal/core/admission"
	"github.com/xzzpig/graph-gateway/internal/core/ports"
	"github.com/xzzpig/graph-gateway/internal/i18n"
)

// AdmissionHandler exposes the current gate configuration and dry-run cost
// estimates.
type AdmissionHandler struct {
	gates ports.GateProvider
}

// NewAdmissionHandler creates an AdmissionHandler.
func NewAdmissionHandler(gates ports.GateProvider) *AdmissionHandler {
	return &AdmissionHandler{gates: gates}
}

// AdmissionConfig is the response of GET /api/admission/config.
type AdmissionConfig struct {
	MaximumCost      int                        `json:"maximumCost"`
	DefaultCost      int                        `json:"defaultCost"`
	MultiplierPolicy admission.MultiplierPolicy `json:"multiplierPolicy"`
	Rules            []admission.CostRule       `json:"rules"`
}

// EstimateRequest is the body of POST /api/admission/estimate.
type EstimateRequest struct {
	Query         string         `json:"query" binding:"required"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// Config returns the configuration of the current gate.
func (h *AdmissionHandler) Config(c *gin.Context) {
	gate := h.gates.Load()
	c.JSON(http.StatusOK, AdmissionConfig{
		MaximumCost:      gate.Budget(),
		DefaultCost:      gate.DefaultCost(),
		MultiplierPolicy: gate.Policy(),
		Rules:            gate.Rules(),
	})
}

// Estimate costs a query without executing it. Over-budget queries are not
// an error here: the report says whether the gateway would admit them.
func (h *AdmissionHandler) Estimate(c *gin.Context) {
	var req EstimateRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil || req.Query == "" {
		HandleError(c, i18n.ErrBadRequestI18n(i18n.ErrInvalidRequestBody).WithCause(err))
		return
	}

	doc, err := parser.ParseQuery(&ast.Source{Name: "estimate", Input: req.Query})
	if err != nil {
		HandleError(c, i18n.NewI18nErrorWithData(i18n.ErrQueryParseFailed, map[string]interface{}{
			"Detail": err.Error(),
		}).WithStatus(http.StatusBadRequest).WithCause(err))
		return
	}

	report, err := h.gates.Load().WithoutObservers().Evaluate(admission.NewRequest(doc, req.OperationName, req.Variables))
	if err != nil && !errors.Is(err, admission.ErrQueryTooExpensive) {
		HandleError(c, estimateError(err))
		return
	}
	c.JSON(http.StatusOK, report)
}

func estimateError(err error) error {
	var malformed *admission.MalformedVariableBindingError
	switch {
	case errors.As(err, &malformed):
		return i18n.NewI18nErrorWithData(i18n.ErrMalformedVariableBinding, map[string]interface{}{
			"Field":    malformed.Field,
			"Argument": malformed.Argument,
		}).WithStatus(http.StatusBadRequest).WithCause(err)
	case errors.Is(err, admission.ErrOperationNotFound):
		return i18n.ErrBadRequestI18n(i18n.ErrOperationNotFound).WithCause(err)
	}
	return err
}
