package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"

	"scratch-edu-server/internal/model"
	"scratch-edu-server/internal/repository"
	"scratch-edu-server/internal/storage"
	"scratch-edu-server/pkg/util"
)

// maxImageSize 单张错题图片的大小上限（10 MiB）
const maxImageSize = 10 << 20

// MistakeService 错题服务
// 处理错题的增删改查、图片附件、AI 提取和 PDF 导出
type MistakeService struct {
	mistakeRepo *repository.MistakeRepository // 错题数据访问层
	store       storage.ObjectStore           // 对象存储
	aiService   *AIService                    // AI 提取服务（可能未配置）
	pdfService  *PDFService                   // PDF 导出服务
}

// NewMistakeService 创建 MistakeService 实例
func NewMistakeService(
	mistakeRepo *repository.MistakeRepository,
	store storage.ObjectStore,
	aiService *AIService,
	pdfService *PDFService,
) *MistakeService {
	return &MistakeService{
		mistakeRepo: mistakeRepo,
		store:       store,
		aiService:   aiService,
		pdfService:  pdfService,
	}
}

// MistakeCreateRequest 创建错题请求
type MistakeCreateRequest struct {
	Title           string   `json:"title" binding:"required,max=200"` // 标题
	Subject         string   `json:"subject" binding:"required"`       // 学科
	Difficulty      string   `json:"difficulty"`                       // 难度，缺省为 medium
	QuestionContent string   `json:"question_content"`                 // 题目内容
	AnswerContent   string   `json:"answer_content"`                   // 正确答案
	MyAnswer        string   `json:"my_answer"`                        // 我的答案
	Analysis        string   `json:"analysis"`                         // 解析
	Tags            []string `json:"tags"`                             // 知识点标签
	Source          string   `json:"source"`                           // 来源
	Notes           string   `json:"notes"`                            // 笔记
}

// MistakeUpdateRequest 更新错题请求
// 部分更新：nil 字段保持不变
type MistakeUpdateRequest struct {
	Title           *string   `json:"title"`
	Subject         *string   `json:"subject"`
	Difficulty      *string   `json:"difficulty"`
	QuestionContent *string   `json:"question_content"`
	AnswerContent   *string   `json:"answer_content"`
	MyAnswer        *string   `json:"my_answer"`
	Analysis        *string   `json:"analysis"`
	Tags            *[]string `json:"tags"`
	Source          *string   `json:"source"`
	Notes           *string   `json:"notes"`
	IsMastered      *bool     `json:"is_mastered"`
}

// MistakeStats 错题统计
type MistakeStats struct {
	Total      int64            `json:"total"`       // 错题总数
	Mastered   int64            `json:"mastered"`    // 已掌握数量
	NeedReview int64            `json:"need_review"` // 待复习数量
	BySubject  map[string]int64 `json:"by_subject"`  // 按学科统计，无错题的学科不出现
}

// ListMistakes 获取用户的错题列表，支持学科/标签/掌握状态筛选
func (s *MistakeService) ListMistakes(ctx context.Context, ownerID int64, filter repository.MistakeFilter) ([]model.MistakeQuestion, error) {
	if filter.Subject != "" && !model.IsValidSubject(filter.Subject) {
		return nil, fmt.Errorf("未知的学科 %q: %w", filter.Subject, ErrInvalidInput)
	}
	return s.mistakeRepo.ListByOwner(ctx, ownerID, filter)
}

// GetStats 获取用户的错题统计
func (s *MistakeService) GetStats(ctx context.Context, ownerID int64) (*MistakeStats, error) {
	total, err := s.mistakeRepo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	mastered, err := s.mistakeRepo.CountMasteredByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	bySubject, err := s.mistakeRepo.CountBySubject(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return &MistakeStats{
		Total:      total,
		Mastered:   mastered,
		NeedReview: total - mastered,
		BySubject:  bySubject,
	}, nil
}

// CreateMistake 创建错题
func (s *MistakeService) CreateMistake(ctx context.Context, ownerID int64, req *MistakeCreateRequest) (*model.MistakeQuestion, error) {
	if !model.IsValidSubject(req.Subject) {
		return nil, fmt.Errorf("未知的学科 %q: %w", req.Subject, ErrInvalidInput)
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = model.DifficultyMedium
	}
	if !model.IsValidDifficulty(difficulty) {
		return nil, fmt.Errorf("未知的难度 %q: %w", req.Difficulty, ErrInvalidInput)
	}

	mistake := &model.MistakeQuestion{
		OwnerID:         ownerID,
		Title:           req.Title,
		Subject:         req.Subject,
		Difficulty:      difficulty,
		QuestionContent: req.QuestionContent,
		AnswerContent:   req.AnswerContent,
		MyAnswer:        req.MyAnswer,
		Analysis:        req.Analysis,
		Tags:            datatypes.NewJSONSlice(req.Tags),
		Source:          req.Source,
		Notes:           req.Notes,
		ImagePaths:      datatypes.NewJSONSlice([]string{}),
	}
	if err := s.mistakeRepo.Create(ctx, mistake); err != nil {
		return nil, err
	}
	return mistake, nil
}

// GetMistake 获取错题详情
func (s *MistakeService) GetMistake(ctx context.Context, userID int64, rawID string) (*model.MistakeQuestion, error) {
	return s.resolveOwned(ctx, userID, rawID)
}

// UpdateMistake 更新错题
// 部分更新语义：nil 字段保持不变
func (s *MistakeService) UpdateMistake(ctx context.Context, userID int64, rawID string, req *MistakeUpdateRequest) (*model.MistakeQuestion, error) {
	mistake, err := s.resolveOwned(ctx, userID, rawID)
	if err != nil {
		return nil, err
	}

	if req.Subject != nil && !model.IsValidSubject(*req.Subject) {
		return nil, fmt.Errorf("未知的学科 %q: %w", *req.Subject, ErrInvalidInput)
	}
	if req.Difficulty != nil && !model.IsValidDifficulty(*req.Difficulty) {
		return nil, fmt.Errorf("未知的难度 %q: %w", *req.Difficulty, ErrInvalidInput)
	}

	if req.Title != nil {
		mistake.Title = *req.Title
	}
	if req.Subject != nil {
		mistake.Subject = *req.Subject
	}
	if req.Difficulty != nil {
		mistake.Difficulty = *req.Difficulty
	}
	if req.QuestionContent != nil {
		mistake.QuestionContent = *req.QuestionContent
	}
	if req.AnswerContent != nil {
		mistake.AnswerContent = *req.AnswerContent
	}
	if req.MyAnswer != nil {
		mistake.MyAnswer = *req.MyAnswer
	}
	if req.Analysis != nil {
		mistake.Analysis = *req.Analysis
	}
	if req.Tags != nil {
		mistake.Tags = datatypes.NewJSONSlice(*req.Tags)
	}
	if req.Source != nil {
		mistake.Source = *req.Source
	}
	if req.Notes != nil {
		mistake.Notes = *req.Notes
	}
	if req.IsMastered != nil {
		mistake.IsMastered = *req.IsMastered
	}

	if err := s.mistakeRepo.Update(ctx, mistake); err != nil {
		return nil, err
	}
	return mistake, nil
}

// DeleteMistake 删除错题
// 先按前缀清理图片再删除记录；清理失败只记日志不中断
func (s *MistakeService) DeleteMistake(ctx context.Context, userID int64, rawID string) error {
	mistake, err := s.resolveOwned(ctx, userID, rawID)
	if err != nil {
		return err
	}
	return s.deleteMistakeRow(ctx, mistake)
}

// AttachImage 为错题追加一张图片
// 图片按追加顺序编号，路径中嵌入下标，顺序即上传顺序
// 参数:
//   - ctx: 上下文
//   - userID: 当前用户ID
//   - rawID: 路径中的错题ID
//   - data: 图片二进制数据
//   - contentType: 图片 MIME 类型
//
// 返回:
//   - *model.MistakeQuestion: 更新后的错题
//   - error: ErrInvalidInput（非图片或超限）/ 归属错误 / 存储错误
func (s *MistakeService) AttachImage(ctx context.Context, userID int64, rawID string, data []byte, contentType string) (*model.MistakeQuestion, error) {
	mistake, err := s.resolveOwned(ctx, userID, rawID)
	if err != nil {
		return nil, err
	}

	// 1. 校验类型和大小
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("只允许上传图片文件: %w", ErrInvalidInput)
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("图片大小超过 10MB 限制: %w", ErrInvalidInput)
	}

	// 2. 下标取当前列表长度，保证路径与位置一一对应
	index := len(mistake.ImagePaths)
	ext := util.ImageExtFromMIME(contentType)
	objectName := mistake.ImageObjectName(index, ext)

	if err := s.store.Put(ctx, objectName, data, contentType); err != nil {
		return nil, err
	}

	// 3. 追加路径并落库
	mistake.ImagePaths = append(mistake.ImagePaths, objectName)
	if err := s.mistakeRepo.UpdateFields(ctx, mistake.ID, map[string]interface{}{
		"image_paths": mistake.ImagePaths,
	}); err != nil {
		return nil, err
	}
	return mistake, nil
}

// GetImage 获取错题的指定位置图片
// 参数:
//   - ctx: 上下文
//   - userID: 当前用户ID
//   - rawID: 路径中的错题ID
//   - index: 图片下标，从 0 开始
//
// 返回:
//   - []byte: 图片数据
//   - string: MIME 类型，由存储路径的扩展名推断
//   - error: 下标越界或对象缺失返回 ErrNotFound
func (s *MistakeService) GetImage(ctx context.Context, userID int64, rawID string, index int) ([]byte, string, error) {
	mistake, err := s.resolveOwned(ctx, userID, rawID)
	if err != nil {
		return nil, "", err
	}

	if index < 0 || index >= len(mistake.ImagePaths) {
		return nil, "", fmt.Errorf("图片下标 %d 越界: %w", index, ErrNotFound)
	}

	path := mistake.ImagePaths[index]
	data, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, "", err
	}
	if data == nil {
		return nil, "", fmt.Errorf("图片对象 %s 缺失: %w", path, ErrNotFound)
	}
	return data, util.ImageMIMEFromPath(path), nil
}

// ExtractFromImage 用 AI 识别第一张图片中的错题
// 识别结果直接返回给调用方，由用户确认后再决定如何录入，
// 不会自动修改错题内容
// 参数:
//   - ctx: 上下文
//   - userID: 当前用户ID
//   - rawID: 路径中的错题ID
//
// 返回:
//   - *ExtractResult: 识别结果（可能包含多道题）
//   - error: 未上传图片返回 ErrInvalidInput，AI 未配置返回 ErrAIUnavailable
func (s *MistakeService) ExtractFromImage(ctx context.Context, userID int64, rawID string) (*ExtractResult, error) {
	mistake, err := s.resolveOwned(ctx, userID, rawID)
	if err != nil {
		return nil, err
	}

	if len(mistake.ImagePaths) == 0 {
		return nil, fmt.Errorf("请先上传题目图片: %w", ErrInvalidInput)
	}
	if s.aiService == nil || !s.aiService.Available() {
		return nil, ErrAIUnavailable
	}

	// 1. 读取第一张图片
	path := mistake.ImagePaths[0]
	data, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("图片对象 %s 缺失: %w", path, ErrNotFound)
	}

	// 2. 调用 AI 识别
	return s.aiService.ExtractMistakes(ctx, data)
}

// MarkReviewed 记录一次复习
// 复习次数加一并更新复习时间
func (s *MistakeService) MarkReviewed(ctx context.Context, userID int64, rawID string) (*model.MistakeQuestion, error) {
	mistake, err := s.resolveOwned(ctx, userID, rawID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	mistake.ReviewCount++
	mistake.LastReviewAt = &now

	if err := s.mistakeRepo.Update(ctx, mistake); err != nil {
		return nil, err
	}
	return mistake, nil
}

// ExportPDF 导出错题本为 PDF
// 筛选条件与列表接口一致；筛选结果为空时返回 ErrNotFound
// 参数:
//   - ctx: 上下文
//   - ownerID: 所有者用户ID
//   - filter: 筛选条件
//   - includeImages: 是否在 PDF 中渲染题目图片
//
// 返回:
//   - []byte: PDF 文件内容
//   - error: 业务或渲染错误
func (s *MistakeService) ExportPDF(ctx context.Context, ownerID int64, filter repository.MistakeFilter, includeImages bool) ([]byte, error) {
	mistakes, err := s.ListMistakes(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	if len(mistakes) == 0 {
		return nil, fmt.Errorf("没有符合条件的错题: %w", ErrNotFound)
	}
	return s.pdfService.Render(ctx, mistakes, includeImages)
}

// resolveOwned 解析错题 ID 并校验归属
func (s *MistakeService) resolveOwned(ctx context.Context, userID int64, rawID string) (*model.MistakeQuestion, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	mistake, err := s.mistakeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if mistake == nil {
		return nil, fmt.Errorf("错题 %d 不存在: %w", id, ErrNotFound)
	}
	if err := checkOwnership(mistake.OwnerID, userID); err != nil {
		return nil, err
	}
	return mistake, nil
}

// deleteMistakeRow 清理错题图片并删除记录
// 管理后台级联删除复用此逻辑
func (s *MistakeService) deleteMistakeRow(ctx context.Context, mistake *model.MistakeQuestion) error {
	if _, err := s.store.DeleteByPrefix(ctx, mistake.ImagePrefix()); err != nil {
		// 存储清理失败不阻塞删除，遗留对象由清扫任务回收
		log.Printf("[WARN] delete mistake images %s failed: %v", mistake.ImagePrefix(), err)
	}
	return s.mistakeRepo.Delete(ctx, mistake.ID)
}
