package controller

import (
	"levelup_backend/internal/service"
	"levelup_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	Reconcile *service.ReconcileService
}

func NewAdminController(reconcile *service.ReconcileService) *AdminController {
	return &AdminController{Reconcile: reconcile}
}

// @Summary 全量对账
// @Description 回放完成台账，重建全部用户的连续天数并补发缺失徽章
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /admin/reconcile [post]
func (c *AdminController) ReconcileAll(ctx *gin.Context) {
	if err := c.Reconcile.RebuildAll(ctx.Request.Context()); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"status": "reconciled"})
}

// @Summary 单用户对账
// @Description 回放指定用户的完成台账，重建派生状态
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param userId path string true "用户ID"
// @Success 200 {object} util.Response
// @Router /admin/reconcile/{userId} [post]
func (c *AdminController) ReconcileUser(ctx *gin.Context) {
	userID := ctx.Param("userId")
	if userID == "" {
		util.BadRequest(ctx, "userId is required")
		return
	}

	if err := c.Reconcile.RebuildUser(ctx.Request.Context(), userID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"status": "reconciled", "userId": userID})
}
