package controller

import (
	"errors"
	"levelup_backend/internal/service"
	"levelup_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	Engine *service.EngineService
}

func NewProgressController(engine *service.EngineService) *ProgressController {
	return &ProgressController{Engine: engine}
}

// @Summary 获取个人进度
// @Description 当前用户的完成率、积分、连续天数与徽章
// @Tags 进度引擎
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /progress [get]
func (c *ProgressController) GetMyProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.Engine.GetUserProgress(ctx.Request.Context(), user.UserID)
	if err != nil {
		if errors.Is(err, util.ErrProfileNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}
