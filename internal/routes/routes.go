package routes

import (
	"github.com/damoang/campaign-chronicle/internal/domain"
	"github.com/damoang/campaign-chronicle/internal/handler"
	"github.com/gin-gonic/gin"
)

// childKinds maps URL segments to the campaign-owned entity kinds
var childKinds = []struct {
	segment string
	kind    domain.EntityType
}{
	{"timeline", domain.EntityTimelineEvent},
	{"characters", domain.EntityCharacter},
	{"plots", domain.EntityPlot},
	{"lore", domain.EntityLore},
	{"documents", domain.EntityDocument},
}

// Handlers bundles everything Setup registers
type Handlers struct {
	Entities map[domain.EntityType]*handler.EntityHandler
	Audit    *handler.AuditHandler
	Import   *handler.ImportHandler
}

// Setup configures all API routes.
// writeLimit guards the expensive endpoints (rollback, import); nil means no limit.
func Setup(router *gin.Engine, h Handlers, writeLimit gin.HandlerFunc) {
	if writeLimit == nil {
		writeLimit = func(c *gin.Context) { c.Next() }
	}

	api := router.Group("/api")

	// Campaigns
	campaignHandler := h.Entities[domain.EntityCampaign]
	campaigns := api.Group("/campaigns")
	campaigns.GET("", campaignHandler.List)
	campaigns.POST("", campaignHandler.Create)
	campaigns.GET("/:id", campaignHandler.Get)
	campaigns.PATCH("/:id", campaignHandler.Update)
	campaigns.DELETE("/:id", campaignHandler.Delete)

	// Campaign 하위 엔티티 (timeline, characters, plots, lore, documents)
	for _, child := range childKinds {
		kindHandler := h.Entities[child.kind]
		campaigns.GET("/:id/"+child.segment, kindHandler.List)
		campaigns.POST("/:id/"+child.segment, kindHandler.Create)

		single := api.Group("/" + child.segment)
		single.GET("/:id", kindHandler.Get)
		single.PATCH("/:id", kindHandler.Update)
		single.DELETE("/:id", kindHandler.Delete)
	}

	// Document import (AI extraction)
	campaigns.POST("/:id/import", writeLimit, h.Import.Upload)

	// Audit log
	campaigns.GET("/:id/audit-log", h.Audit.CampaignLog)
	auditLog := api.Group("/audit-log")
	auditLog.GET("/entity/:entityId", h.Audit.EntityLog)
	auditLog.GET("/import/:batchId", h.Audit.ImportBatchLog)

	// Rollback
	rollback := api.Group("/rollback", writeLimit)
	rollback.POST("/import/:batchId", h.Audit.RollbackImport)
	rollback.POST("/timestamp/:campaignId", h.Audit.RollbackTimestamp)
}
