package controller

import (
	"errors"
	"levelup_backend/internal/model"
	"levelup_backend/internal/service"
	"levelup_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ExamController struct {
	Engine *service.EngineService
}

func NewExamController(engine *service.EngineService) *ExamController {
	return &ExamController{Engine: engine}
}

// ExamSubmission 客户端答卷；即便带了分数也会被服务端重新判分覆盖
type ExamSubmission struct {
	Answers map[string]string `json:"answers" binding:"required"`
}

// @Summary 提交流程测验
// @Description 服务端判分，首次通过时写完成记录并推进连续天数/积分/徽章
// @Tags 进度引擎
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "流程ID"
// @Param submission body ExamSubmission true "题目ID到所选选项(A/B/C)的映射"
// @Success 200 {object} util.Response
// @Router /processes/{id}/exam [post]
func (c *ExamController) SubmitExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	processID := ctx.Param("id")

	var submission ExamSubmission
	if err := ctx.ShouldBindJSON(&submission); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	answers := make(service.AnswerSheet, len(submission.Answers))
	for questionID, option := range submission.Answers {
		switch model.QuestionOption(option) {
		case model.OptionA, model.OptionB, model.OptionC:
			answers[questionID] = model.QuestionOption(option)
		default:
			util.BadRequest(ctx, util.ErrInvalidOption.Error())
			return
		}
	}

	result, err := c.Engine.SubmitExam(ctx.Request.Context(), user.UserID, processID, answers)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrProcessNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrProcessNotPublished), errors.Is(err, util.ErrNoQuestions):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}

// @Summary 获取流程测验题目
// @Description 返回题目与选项，不含正确答案
// @Tags 进度引擎
// @Produce json
// @Security BearerAuth
// @Param id path string true "流程ID"
// @Success 200 {object} util.Response
// @Router /processes/{id}/questions [get]
func (c *ExamController) GetQuestions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	processID := ctx.Param("id")

	process, err := c.Engine.Processes.FindByID(processID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.NotFound(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if !process.Published {
		util.BadRequest(ctx, util.ErrProcessNotPublished.Error())
		return
	}

	questions, err := c.Engine.Questions.FindByProcessID(processID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	// CorrectOption 的 json:"-" 保证正确答案不出服务端
	util.Success(ctx, questions)
}
