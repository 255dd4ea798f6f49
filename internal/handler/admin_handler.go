package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"scratch-edu-server/internal/middleware"
	"scratch-edu-server/internal/service"
	"scratch-edu-server/pkg/response"
)

// AdminHandler 管理后台请求处理器
// 所有接口要求管理员角色，由 AdminMiddleware 保证
type AdminHandler struct {
	adminService *service.AdminService
}

// NewAdminHandler 创建 AdminHandler 实例
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// parsePagination 从查询参数解析分页参数
// 页码从 1 开始，每页数量限制在 1-100 之间
func parsePagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// Stats 获取系统统计
// @Summary 系统统计
// @Description 用户/项目/错题的总数和今日新增数
// @Tags 管理后台
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=service.AdminStats}
// @Router /api/admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminService.GetStats(c.Request.Context())
	if err != nil {
		handleServiceError(c, err, "获取统计失败")
		return
	}

	response.Success(c, stats)
}

// ListUsers 获取用户列表
// @Summary 用户列表
// @Description 分页获取用户，支持用户名搜索
// @Tags 管理后台
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param search query string false "用户名搜索"
// @Success 200 {object} response.Response{data=service.PagedUsers}
// @Router /api/admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, pageSize := parsePagination(c)

	result, err := h.adminService.ListUsers(c.Request.Context(), page, pageSize, c.Query("search"))
	if err != nil {
		handleServiceError(c, err, "获取用户列表失败")
		return
	}

	response.Success(c, result)
}

// CreateUser 创建用户
// @Summary 创建用户
// @Tags 管理后台
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.AdminUserCreateRequest true "用户信息"
// @Success 201 {object} response.Response{data=model.User}
// @Router /api/admin/users [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req service.AdminUserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.adminService.CreateUser(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "创建用户失败")
		return
	}

	response.Created(c, user)
}

// GetUser 获取用户详情
// @Summary 用户详情
// @Description 用户信息及其项目、错题数量
// @Tags 管理后台
// @Security Bearer
// @Produce json
// @Param id path string true "用户ID"
// @Success 200 {object} response.Response{data=service.AdminUserItem}
// @Router /api/admin/users/{id} [get]
func (h *AdminHandler) GetUser(c *gin.Context) {
	item, err := h.adminService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "获取用户失败")
		return
	}

	response.Success(c, item)
}

// UpdateUser 更新用户
// @Summary 更新用户
// @Description 修改用户名、角色或启用状态
// @Tags 管理后台
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "用户ID"
// @Param body body service.AdminUserUpdateRequest true "更新内容"
// @Success 200 {object} response.Response{data=model.User}
// @Router /api/admin/users/{id} [put]
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var req service.AdminUserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.adminService.UpdateUser(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleServiceError(c, err, "更新用户失败")
		return
	}

	response.Success(c, user)
}

// DeleteUser 删除用户
// @Summary 删除用户
// @Description 级联删除用户的所有项目和错题，禁止删除自己
// @Tags 管理后台
// @Security Bearer
// @Param id path string true "用户ID"
// @Success 204
// @Router /api/admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	adminID := middleware.GetUserID(c)

	if err := h.adminService.DeleteUser(c.Request.Context(), adminID, c.Param("id")); err != nil {
		handleServiceError(c, err, "删除用户失败")
		return
	}

	response.NoContent(c)
}

// ResetPassword 重置用户密码
// @Summary 重置密码
// @Tags 管理后台
// @Security Bearer
// @Accept json
// @Param id path string true "用户ID"
// @Success 204
// @Router /api/admin/users/{id}/reset-password [post]
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	var req struct {
		NewPassword string `json:"new_password" binding:"required,min=6,max=50"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.adminService.ResetPassword(c.Request.Context(), c.Param("id"), req.NewPassword); err != nil {
		handleServiceError(c, err, "重置密码失败")
		return
	}

	response.NoContent(c)
}

// ListProjects 获取所有项目
// @Summary 项目列表
// @Description 分页获取全部项目，支持标题搜索和排序
// @Tags 管理后台
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param search query string false "标题搜索"
// @Param sort_by query string false "排序字段: title/createdAt/updatedAt/viewCount"
// @Param sort_order query string false "排序顺序: asc/desc"
// @Success 200 {object} response.Response{data=service.PagedProjects}
// @Router /api/admin/projects [get]
func (h *AdminHandler) ListProjects(c *gin.Context) {
	page, pageSize := parsePagination(c)

	result, err := h.adminService.ListProjects(
		c.Request.Context(),
		page, pageSize,
		c.Query("search"),
		c.DefaultQuery("sort_by", "updatedAt"),
		c.DefaultQuery("sort_order", "desc"),
	)
	if err != nil {
		handleServiceError(c, err, "获取项目列表失败")
		return
	}

	response.Success(c, result)
}

// DeleteProject 删除项目
// @Summary 删除项目
// @Description 删除任意用户的项目及其存储文件
// @Tags 管理后台
// @Security Bearer
// @Param id path string true "项目ID"
// @Success 204
// @Router /api/admin/projects/{id} [delete]
func (h *AdminHandler) DeleteProject(c *gin.Context) {
	if err := h.adminService.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		handleServiceError(c, err, "删除项目失败")
		return
	}

	response.NoContent(c)
}
