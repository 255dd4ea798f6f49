package handler

import (
	"github.com/gin-gonic/gin"

	"scratch-edu-server/internal/service"
	"scratch-edu-server/pkg/response"
)

// ShareHandler 公开分享请求处理器
// 无需登录即可访问
type ShareHandler struct {
	projectService *service.ProjectService
}

// NewShareHandler 创建 ShareHandler 实例
func NewShareHandler(projectService *service.ProjectService) *ShareHandler {
	return &ShareHandler{
		projectService: projectService,
	}
}

// Get 通过分享令牌获取公开项目
// @Summary 查看分享项目
// @Description 无需登录，每次访问浏览次数加一
// @Tags 分享
// @Produce json
// @Param token path string true "分享令牌"
// @Success 200 {object} response.Response{data=service.ProjectDetail}
// @Router /api/share/{token} [get]
func (h *ShareHandler) Get(c *gin.Context) {
	detail, err := h.projectService.GetSharedProject(c.Request.Context(), c.Param("token"))
	if err != nil {
		handleServiceError(c, err, "获取分享项目失败")
		return
	}

	response.Success(c, detail)
}
