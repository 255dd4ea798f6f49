package handler

import (
	"github.com/gin-gonic/gin"

	"scratch-edu-server/internal/middleware"
	"scratch-edu-server/internal/service"
	"scratch-edu-server/pkg/response"
)

// ProjectHandler 项目请求处理器
// 处理项目的增删改查和分享
type ProjectHandler struct {
	projectService *service.ProjectService
}

// NewProjectHandler 创建 ProjectHandler 实例
func NewProjectHandler(projectService *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
	}
}

// List 获取项目列表
// @Summary 项目列表
// @Description 获取当前用户的所有项目，按更新时间倒序
// @Tags 项目
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=[]model.Project}
// @Router /api/projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)

	projects, err := h.projectService.ListProjects(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err, "获取项目列表失败")
		return
	}

	response.Success(c, projects)
}

// Create 创建项目
// @Summary 创建项目
// @Description 创建新项目，可以同时上传项目数据
// @Tags 项目
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.ProjectCreateRequest true "项目信息"
// @Success 201 {object} response.Response{data=service.ProjectDetail}
// @Router /api/projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.ProjectCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	detail, err := h.projectService.CreateProject(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		handleServiceError(c, err, "创建项目失败")
		return
	}

	response.Created(c, detail)
}

// Get 获取项目详情
// @Summary 项目详情
// @Description 获取项目元数据和项目包数据
// @Tags 项目
// @Security Bearer
// @Produce json
// @Param id path string true "项目ID"
// @Success 200 {object} response.Response{data=service.ProjectDetail}
// @Router /api/projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	detail, err := h.projectService.GetProject(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "获取项目失败")
		return
	}

	response.Success(c, detail)
}

// Update 更新项目
// @Summary 更新项目
// @Description 部分更新项目，缺省字段保持不变
// @Tags 项目
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "项目ID"
// @Param body body service.ProjectUpdateRequest true "更新内容"
// @Success 200 {object} response.Response{data=service.ProjectDetail}
// @Router /api/projects/{id} [put]
func (h *ProjectHandler) Update(c *gin.Context) {
	var req service.ProjectUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	detail, err := h.projectService.UpdateProject(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		handleServiceError(c, err, "更新项目失败")
		return
	}

	response.Success(c, detail)
}

// Delete 删除项目
// @Summary 删除项目
// @Description 删除项目及其存储的项目包
// @Tags 项目
// @Security Bearer
// @Param id path string true "项目ID"
// @Success 204
// @Router /api/projects/{id} [delete]
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projectService.DeleteProject(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		handleServiceError(c, err, "删除项目失败")
		return
	}

	response.NoContent(c)
}

// Share 开启项目分享
// @Summary 分享项目
// @Description 生成分享令牌和分享链接，重复调用返回同一令牌
// @Tags 项目
// @Security Bearer
// @Produce json
// @Param id path string true "项目ID"
// @Success 200 {object} response.Response
// @Router /api/projects/{id}/share [post]
func (h *ProjectHandler) Share(c *gin.Context) {
	token, err := h.projectService.ShareProject(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "分享项目失败")
		return
	}

	response.Success(c, gin.H{
		"share_token": token,
		"share_url":   "/share/" + token,
	})
}

// Unshare 取消项目分享
// @Summary 取消分享
// @Description 清空分享令牌，原链接立即失效
// @Tags 项目
// @Security Bearer
// @Produce json
// @Param id path string true "项目ID"
// @Success 200 {object} response.Response
// @Router /api/projects/{id}/share [delete]
func (h *ProjectHandler) Unshare(c *gin.Context) {
	if err := h.projectService.UnshareProject(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		handleServiceError(c, err, "取消分享失败")
		return
	}

	response.SuccessWithMessage(c, "已取消分享", nil)
}
