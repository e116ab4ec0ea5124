package controller

import (
	"context"
	"cyberlearn_backend/internal/service"
	"cyberlearn_backend/internal/util"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LearningController struct {
	LearningService *service.LearningService
}

func NewLearningController(learningService *service.LearningService) *LearningController {
	return &LearningController{LearningService: learningService}
}

type SelectAnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

type VideoProgressRequest struct {
	Seconds *int `json:"seconds" binding:"required"`
}

func identityOf(ctx *gin.Context) service.Identity {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		return service.Identity{}
	}
	return service.Identity{UserID: user.UserID, Email: user.Email}
}

// quizSessionID 匿名答题会话 id，请求头里没有合法 id 时签发新的并写回响应头
func quizSessionID(ctx *gin.Context) string {
	id := ctx.GetHeader(util.HeaderQuizSession)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	ctx.Header(util.HeaderQuizSession, id)
	return id
}

func lessonParam(ctx *gin.Context) (int, bool) {
	lessonIndex, ok := util.ParseLessonIndex(ctx.Param("lesson"))
	if !ok {
		util.BadRequest(ctx, "Invalid lesson index")
	}
	return lessonIndex, ok
}

// handleError 业务错误映射为对应状态码，其余记录日志后返回 500
func handleError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrModuleNotFound), errors.Is(err, util.ErrLessonNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrUnknownOption):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrTransitionNotAllowed):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// ListModules 模块列表
func (c *LearningController) ListModules(ctx *gin.Context) {
	modules, err := c.LearningService.ListModules(ctx.Request.Context())
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, modules)
}

// GetModule 模块详情及课时进度
func (c *LearningController) GetModule(ctx *gin.Context) {
	notices := service.NewNoticeBuffer()
	detail, err := c.LearningService.GetModule(ctx.Request.Context(), identityOf(ctx), ctx.Param("moduleId"), notices)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"module": detail, "notices": notices.Notices()})
}

// GetProgress 模块学习进度
func (c *LearningController) GetProgress(ctx *gin.Context) {
	notices := service.NewNoticeBuffer()
	progress, err := c.LearningService.GetModuleProgress(ctx.Request.Context(), identityOf(ctx), ctx.Param("moduleId"), notices)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"progress": progress, "notices": notices.Notices()})
}

// CompleteLesson 标记课时完成
func (c *LearningController) CompleteLesson(ctx *gin.Context) {
	lessonIndex, ok := lessonParam(ctx)
	if !ok {
		return
	}

	notices := service.NewNoticeBuffer()
	saved, err := c.LearningService.MarkLessonComplete(ctx.Request.Context(), identityOf(ctx), ctx.Param("moduleId"), lessonIndex, notices)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"success": saved, "notices": notices.Notices()})
}

// UpdateVideoProgress 保存视频播放位置
func (c *LearningController) UpdateVideoProgress(ctx *gin.Context) {
	lessonIndex, ok := lessonParam(ctx)
	if !ok {
		return
	}

	var req VideoProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	notices := service.NewNoticeBuffer()
	err := c.LearningService.UpdateVideoProgress(ctx.Request.Context(), identityOf(ctx), ctx.Param("moduleId"), lessonIndex, *req.Seconds, notices)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"notices": notices.Notices()})
}

// GetVideoProgress 获取视频播放位置
func (c *LearningController) GetVideoProgress(ctx *gin.Context) {
	lessonIndex, ok := lessonParam(ctx)
	if !ok {
		return
	}

	notices := service.NewNoticeBuffer()
	seconds, err := c.LearningService.GetVideoProgress(ctx.Request.Context(), identityOf(ctx), ctx.Param("moduleId"), lessonIndex, notices)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"seconds": seconds, "notices": notices.Notices()})
}

func (c *LearningController) runQuiz(ctx *gin.Context, action service.QuizAction) {
	lessonIndex, ok := lessonParam(ctx)
	if !ok {
		return
	}

	identity := identityOf(ctx)
	if !identity.Authenticated() {
		identity.SessionID = quizSessionID(ctx)
	}

	notices := service.NewNoticeBuffer()
	view, err := c.LearningService.RunQuiz(ctx.Request.Context(), identity, ctx.Param("moduleId"), lessonIndex, notices, action)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"quiz": view, "notices": notices.Notices()})
}

// GetQuiz 当前答题状态
func (c *LearningController) GetQuiz(ctx *gin.Context) {
	c.runQuiz(ctx, nil)
}

// SelectAnswer 选择答案
func (c *LearningController) SelectAnswer(ctx *gin.Context) {
	var req SelectAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	c.runQuiz(ctx, func(_ context.Context, s *service.QuizSession) error {
		_, err := s.Select(req.Answer)
		return err
	})
}

// NextQuestion 下一题
func (c *LearningController) NextQuestion(ctx *gin.Context) {
	c.runQuiz(ctx, func(_ context.Context, s *service.QuizSession) error {
		return s.Next()
	})
}

// PreviousQuestion 上一题
func (c *LearningController) PreviousQuestion(ctx *gin.Context) {
	c.runQuiz(ctx, func(_ context.Context, s *service.QuizSession) error {
		return s.Previous()
	})
}

// SubmitQuiz 提交测验
func (c *LearningController) SubmitQuiz(ctx *gin.Context) {
	c.runQuiz(ctx, func(rctx context.Context, s *service.QuizSession) error {
		_, err := s.Submit(rctx)
		return err
	})
}

// RetryQuiz 重新答题
func (c *LearningController) RetryQuiz(ctx *gin.Context) {
	c.runQuiz(ctx, func(_ context.Context, s *service.QuizSession) error {
		return s.Retry()
	})
}

// ContinueQuiz 通过后继续，标记课时完成
func (c *LearningController) ContinueQuiz(ctx *gin.Context) {
	c.runQuiz(ctx, func(rctx context.Context, s *service.QuizSession) error {
		return s.Continue(rctx)
	})
}

// ListAttempts 历史测验记录
func (c *LearningController) ListAttempts(ctx *gin.Context) {
	lessonIndex, ok := lessonParam(ctx)
	if !ok {
		return
	}

	notices := service.NewNoticeBuffer()
	attempts, err := c.LearningService.PreviousAttempts(ctx.Request.Context(), identityOf(ctx), ctx.Param("moduleId"), lessonIndex, notices)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"attempts": attempts, "notices": notices.Notices()})
}
