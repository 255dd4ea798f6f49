package handler

import (
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"scratch-edu-server/internal/middleware"
	"scratch-edu-server/internal/repository"
	"scratch-edu-server/internal/service"
	"scratch-edu-server/pkg/response"
)

// MistakeHandler 错题请求处理器
// 处理错题的增删改查、图片附件、AI 识别和 PDF 导出
type MistakeHandler struct {
	mistakeService *service.MistakeService
}

// NewMistakeHandler 创建 MistakeHandler 实例
func NewMistakeHandler(mistakeService *service.MistakeService) *MistakeHandler {
	return &MistakeHandler{
		mistakeService: mistakeService,
	}
}

// parseFilter 从查询参数解析筛选条件
// subject/tag/is_mastered 三个条件 AND 组合
func parseFilter(c *gin.Context) repository.MistakeFilter {
	filter := repository.MistakeFilter{
		Subject: c.Query("subject"),
		Tag:     c.Query("tag"),
	}
	if raw := c.Query("is_mastered"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filter.IsMastered = &v
		}
	}
	return filter
}

// List 获取错题列表
// @Summary 错题列表
// @Description 获取当前用户的错题，支持学科/标签/掌握状态筛选
// @Tags 错题
// @Security Bearer
// @Produce json
// @Param subject query string false "学科"
// @Param tag query string false "知识点标签"
// @Param is_mastered query bool false "是否已掌握"
// @Success 200 {object} response.Response{data=[]model.MistakeQuestion}
// @Router /api/mistakes [get]
func (h *MistakeHandler) List(c *gin.Context) {
	mistakes, err := h.mistakeService.ListMistakes(c.Request.Context(), middleware.GetUserID(c), parseFilter(c))
	if err != nil {
		handleServiceError(c, err, "获取错题列表失败")
		return
	}

	response.Success(c, mistakes)
}

// Stats 获取错题统计
// @Summary 错题统计
// @Description 总数、已掌握、待复习和按学科分布
// @Tags 错题
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=service.MistakeStats}
// @Router /api/mistakes/stats [get]
func (h *MistakeHandler) Stats(c *gin.Context) {
	stats, err := h.mistakeService.GetStats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		handleServiceError(c, err, "获取统计失败")
		return
	}

	response.Success(c, stats)
}

// Create 创建错题
// @Summary 创建错题
// @Tags 错题
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.MistakeCreateRequest true "错题信息"
// @Success 201 {object} response.Response{data=model.MistakeQuestion}
// @Router /api/mistakes [post]
func (h *MistakeHandler) Create(c *gin.Context) {
	var req service.MistakeCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	mistake, err := h.mistakeService.CreateMistake(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		handleServiceError(c, err, "创建错题失败")
		return
	}

	response.Created(c, mistake)
}

// Get 获取错题详情
// @Summary 错题详情
// @Tags 错题
// @Security Bearer
// @Produce json
// @Param id path string true "错题ID"
// @Success 200 {object} response.Response{data=model.MistakeQuestion}
// @Router /api/mistakes/{id} [get]
func (h *MistakeHandler) Get(c *gin.Context) {
	mistake, err := h.mistakeService.GetMistake(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "获取错题失败")
		return
	}

	response.Success(c, mistake)
}

// Update 更新错题
// @Summary 更新错题
// @Description 部分更新，缺省字段保持不变
// @Tags 错题
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "错题ID"
// @Param body body service.MistakeUpdateRequest true "更新内容"
// @Success 200 {object} response.Response{data=model.MistakeQuestion}
// @Router /api/mistakes/{id} [put]
func (h *MistakeHandler) Update(c *gin.Context) {
	var req service.MistakeUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	mistake, err := h.mistakeService.UpdateMistake(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		handleServiceError(c, err, "更新错题失败")
		return
	}

	response.Success(c, mistake)
}

// Delete 删除错题
// @Summary 删除错题
// @Description 删除错题及其所有图片
// @Tags 错题
// @Security Bearer
// @Param id path string true "错题ID"
// @Success 204
// @Router /api/mistakes/{id} [delete]
func (h *MistakeHandler) Delete(c *gin.Context) {
	if err := h.mistakeService.DeleteMistake(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		handleServiceError(c, err, "删除错题失败")
		return
	}

	response.NoContent(c)
}

// UploadImage 上传错题图片
// @Summary 上传图片
// @Description 追加一张题目图片，只接受 image/* 类型且不超过 10MB
// @Tags 错题
// @Security Bearer
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "错题ID"
// @Param file formData file true "图片文件"
// @Success 200 {object} response.Response{data=model.MistakeQuestion}
// @Router /api/mistakes/{id}/images [post]
func (h *MistakeHandler) UploadImage(c *gin.Context) {
	// 1. 解析 multipart 表单中的文件
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "请上传图片文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, "读取上传文件失败")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.InternalError(c, "读取上传文件失败")
		return
	}

	// 2. 交给服务层校验并存储
	mistake, err := h.mistakeService.AttachImage(
		c.Request.Context(),
		middleware.GetUserID(c),
		c.Param("id"),
		data,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		handleServiceError(c, err, "上传图片失败")
		return
	}

	response.Success(c, mistake)
}

// GetImage 获取错题图片
// 直接返回图片二进制，不使用统一响应格式
// @Summary 获取图片
// @Tags 错题
// @Security Bearer
// @Produce image/jpeg
// @Param id path string true "错题ID"
// @Param index path int true "图片下标"
// @Success 200 {file} binary
// @Router /api/mistakes/{id}/images/{index} [get]
func (h *MistakeHandler) GetImage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.BadRequest(c, "图片下标必须是整数")
		return
	}

	data, contentType, err := h.mistakeService.GetImage(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), index)
	if err != nil {
		handleServiceError(c, err, "获取图片失败")
		return
	}

	c.Data(200, contentType, data)
}

// Extract AI 识别错题
// @Summary AI 识别
// @Description 识别第一张图片中的错题，一张试卷可能识别出多道题
// @Tags 错题
// @Security Bearer
// @Produce json
// @Param id path string true "错题ID"
// @Success 200 {object} response.Response{data=service.ExtractResult}
// @Router /api/mistakes/{id}/extract [post]
func (h *MistakeHandler) Extract(c *gin.Context) {
	result, err := h.mistakeService.ExtractFromImage(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "AI 识别失败，请稍后重试")
		return
	}

	response.Success(c, result)
}

// Review 标记已复习
// @Summary 标记复习
// @Description 复习次数加一并更新复习时间
// @Tags 错题
// @Security Bearer
// @Produce json
// @Param id path string true "错题ID"
// @Success 200 {object} response.Response{data=model.MistakeQuestion}
// @Router /api/mistakes/{id}/review [post]
func (h *MistakeHandler) Review(c *gin.Context) {
	mistake, err := h.mistakeService.MarkReviewed(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "标记复习失败")
		return
	}

	response.Success(c, mistake)
}

// ExportPDF 导出错题本
// @Summary 导出 PDF
// @Description 按筛选条件导出错题本，无符合条件的错题返回 404
// @Tags 错题
// @Security Bearer
// @Produce application/pdf
// @Param subject query string false "学科"
// @Param tag query string false "知识点标签"
// @Param is_mastered query bool false "是否已掌握"
// @Param include_images query bool false "是否包含题目图片，默认 true"
// @Success 200 {file} binary
// @Router /api/mistakes/export/pdf [get]
func (h *MistakeHandler) ExportPDF(c *gin.Context) {
	includeImages := true
	if v, err := strconv.ParseBool(c.DefaultQuery("include_images", "true")); err == nil {
		includeImages = v
	}

	data, err := h.mistakeService.ExportPDF(c.Request.Context(), middleware.GetUserID(c), parseFilter(c), includeImages)
	if err != nil {
		handleServiceError(c, err, "导出 PDF 失败")
		return
	}

	filename := "mistakes_" + time.Now().Format("20060102") + ".pdf"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(200, "application/pdf", data)
}
