package controller

import (
	"cyberlearn_backend/internal/service"
	"cyberlearn_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LeaderboardController struct {
	LeaderboardService *service.LeaderboardService
}

func NewLeaderboardController(leaderboardService *service.LeaderboardService) *LeaderboardController {
	return &LeaderboardController{LeaderboardService: leaderboardService}
}

// GetLeaderboard 排行榜
func (c *LeaderboardController) GetLeaderboard(ctx *gin.Context) {
	entries, err := c.LeaderboardService.LoadTop(ctx.Request.Context(), util.ParseLimit(ctx.Query("limit")))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"entries": entries})
}

// GetMyRank 当前用户排名，未登录或没有积分记录时 entry 为 null
func (c *LeaderboardController) GetMyRank(ctx *gin.Context) {
	identity := identityOf(ctx)
	if !identity.Authenticated() {
		util.Success(ctx, gin.H{"entry": nil, "notices": []service.Notice{{Level: service.NoticeInfo, Message: util.MsgSignInRequired}}})
		return
	}

	rctx := ctx.Request.Context()
	top, err := c.LeaderboardService.LoadTop(rctx, util.ParseLimit(ctx.Query("limit")))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	entry, err := c.LeaderboardService.LoadCurrentUserRank(rctx, identity, top)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"entry": entry, "notices": []service.Notice{}})
}
