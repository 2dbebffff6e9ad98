package handler

import (
	"encoding/json"
	"net/http"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/damoang/campaign-chronicle/internal/domain"
	"github.com/damoang/campaign-chronicle/internal/service"
	"github.com/gin-gonic/gin"
)

// MutationSourceHeader lets trusted callers tag a write as ai-processing
const MutationSourceHeader = "X-Mutation-Source"

// EntityHandler serves CRUD for one entity kind through the mutation gateway
type EntityHandler struct {
	gateway *service.Gateway
	kind    domain.EntityType
}

// NewEntityHandler creates a new EntityHandler
func NewEntityHandler(gateway *service.Gateway, kind domain.EntityType) *EntityHandler {
	return &EntityHandler{gateway: gateway, kind: kind}
}

// List handles GET /api/campaigns/:id/<kind> (and GET /api/campaigns for campaigns)
func (h *EntityHandler) List(c *gin.Context) {
	campaignID := c.Param("id")
	if campaignID != "" {
		if _, err := h.gateway.Get(c.Request.Context(), domain.EntityCampaign, campaignID); err != nil {
			respondError(c, err)
			return
		}
	}

	items, err := h.gateway.List(c.Request.Context(), h.kind, campaignID)
	if err != nil {
		respondError(c, err)
		return
	}
	common.SuccessWithMeta(c, items, &common.Meta{Count: len(items)})
}

// Get handles GET /api/<kind>/:id
func (h *EntityHandler) Get(c *gin.Context) {
	item, err := h.gateway.Get(c.Request.Context(), h.kind, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	common.Success(c, item)
}

// Create handles POST /api/campaigns/:id/<kind> (and POST /api/campaigns)
func (h *EntityHandler) Create(c *gin.Context) {
	var fields map[string]json.RawMessage
	if err := c.ShouldBindJSON(&fields); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "request body must be a JSON object", err)
		return
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	if h.kind != domain.EntityCampaign {
		campaignID := c.Param("id")
		if _, err := h.gateway.Get(c.Request.Context(), domain.EntityCampaign, campaignID); err != nil {
			respondError(c, err)
			return
		}
		encoded, err := json.Marshal(campaignID)
		if err != nil {
			respondError(c, err)
			return
		}
		fields["campaignId"] = encoded
	}

	body, err := json.Marshal(fields)
	if err != nil {
		respondError(c, err)
		return
	}
	entity, err := h.gateway.Decode(h.kind, body)
	if err != nil {
		respondError(c, err)
		return
	}

	mc, err := mutationContext(c)
	if err != nil {
		respondError(c, err)
		return
	}
	created, err := h.gateway.Create(c.Request.Context(), entity, mc)
	if err != nil {
		respondError(c, err)
		return
	}
	common.Created(c, created)
}

// Update handles PATCH /api/<kind>/:id
func (h *EntityHandler) Update(c *gin.Context) {
	var changes map[string]any
	if err := c.ShouldBindJSON(&changes); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "request body must be a JSON object", err)
		return
	}

	mc, err := mutationContext(c)
	if err != nil {
		respondError(c, err)
		return
	}
	updated, err := h.gateway.Update(c.Request.Context(), h.kind, c.Param("id"), changes, mc)
	if err != nil {
		respondError(c, err)
		return
	}
	common.Success(c, updated)
}

// Delete handles DELETE /api/<kind>/:id
func (h *EntityHandler) Delete(c *gin.Context) {
	mc, err := mutationContext(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.gateway.Delete(c.Request.Context(), h.kind, c.Param("id"), mc); err != nil {
		respondError(c, err)
		return
	}
	common.NoContent(c)
}

func mutationContext(c *gin.Context) (domain.MutationContext, error) {
	mc := domain.Manual()
	if source := c.GetHeader(MutationSourceHeader); source != "" {
		mc.Source = domain.AuditSource(source)
	}
	return mc, mc.Validate()
}
