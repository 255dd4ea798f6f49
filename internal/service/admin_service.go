package service

import (
	"context"
	"fmt"
	"time"

	"scratch-edu-server/internal/model"
	"scratch-edu-server/internal/repository"
	"scratch-edu-server/pkg/util"
)

// AdminService 管理后台服务
// 提供系统统计、用户管理和项目管理能力
// 所有操作要求管理员角色，由中间件保证
type AdminService struct {
	userRepo       *repository.UserRepository
	projectRepo    *repository.ProjectRepository
	mistakeRepo    *repository.MistakeRepository
	projectService *ProjectService // 复用项目删除的存储清理逻辑
	mistakeService *MistakeService // 复用错题删除的存储清理逻辑
}

// NewAdminService 创建 AdminService 实例
func NewAdminService(
	userRepo *repository.UserRepository,
	projectRepo *repository.ProjectRepository,
	mistakeRepo *repository.MistakeRepository,
	projectService *ProjectService,
	mistakeService *MistakeService,
) *AdminService {
	return &AdminService{
		userRepo:       userRepo,
		projectRepo:    projectRepo,
		mistakeRepo:    mistakeRepo,
		projectService: projectService,
		mistakeService: mistakeService,
	}
}

// AdminStats 系统统计数据
type AdminStats struct {
	TotalUsers    int64 `json:"total_users"`    // 用户总数
	TotalProjects int64 `json:"total_projects"` // 项目总数
	TotalMistakes int64 `json:"total_mistakes"` // 错题总数
	TodayUsers    int64 `json:"today_users"`    // 今日新增用户
	TodayProjects int64 `json:"today_projects"` // 今日新增项目
	TodayMistakes int64 `json:"today_mistakes"` // 今日新增错题
}

// AdminUserItem 用户列表项，附带资源数量
type AdminUserItem struct {
	*model.User
	ProjectCount int64 `json:"project_count"` // 项目数量
	MistakeCount int64 `json:"mistake_count"` // 错题数量
}

// PagedUsers 分页用户列表
type PagedUsers struct {
	Items      []AdminUserItem `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int64           `json:"total_pages"`
}

// AdminProjectItem 项目列表项，附带所有者信息
type AdminProjectItem struct {
	*model.Project
	OwnerName string `json:"owner_name"` // 所有者用户名，用户已删除时为"未知用户"
}

// PagedProjects 分页项目列表
type PagedProjects struct {
	Items      []AdminProjectItem `json:"items"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int64              `json:"total_pages"`
}

// AdminUserCreateRequest 创建用户请求
type AdminUserCreateRequest struct {
	Username string `json:"username" binding:"required,min=2,max=50"` // 用户名
	Password string `json:"password" binding:"required,min=6,max=50"` // 密码
	Role     string `json:"role"`                                     // 角色，缺省为 user
	IsActive *bool  `json:"is_active"`                                // 是否启用，缺省为 true
}

// AdminUserUpdateRequest 更新用户请求
// 部分更新：nil 字段保持不变
type AdminUserUpdateRequest struct {
	Username *string `json:"username"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// GetStats 获取系统统计数据
// 今日统计的起点是服务器本地时区的当天零点
func (s *AdminService) GetStats(ctx context.Context) (*AdminStats, error) {
	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := &AdminStats{}
	var err error

	if stats.TotalUsers, err = s.userRepo.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalProjects, err = s.projectRepo.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalMistakes, err = s.mistakeRepo.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TodayUsers, err = s.userRepo.CountCreatedSince(ctx, todayStart); err != nil {
		return nil, err
	}
	if stats.TodayProjects, err = s.projectRepo.CountCreatedSince(ctx, todayStart); err != nil {
		return nil, err
	}
	if stats.TodayMistakes, err = s.mistakeRepo.CountCreatedSince(ctx, todayStart); err != nil {
		return nil, err
	}
	return stats, nil
}

// ListUsers 分页获取用户列表，附带每个用户的资源数量
func (s *AdminService) ListUsers(ctx context.Context, page, pageSize int, search string) (*PagedUsers, error) {
	users, total, err := s.userRepo.ListWithPagination(ctx, page, pageSize, search)
	if err != nil {
		return nil, err
	}

	items := make([]AdminUserItem, 0, len(users))
	for i := range users {
		user := &users[i]
		projectCount, err := s.projectRepo.CountByOwner(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		mistakeCount, err := s.mistakeRepo.CountByOwner(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, AdminUserItem{
			User:         user,
			ProjectCount: projectCount,
			MistakeCount: mistakeCount,
		})
	}

	return &PagedUsers{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// CreateUser 创建用户
func (s *AdminService) CreateUser(ctx context.Context, req *AdminUserCreateRequest) (*model.User, error) {
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, fmt.Errorf("未知的角色 %q: %w", req.Role, ErrInvalidInput)
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	user := &model.User{
		Username:     req.Username,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     isActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser 获取用户详情，附带资源数量
func (s *AdminService) GetUser(ctx context.Context, rawID string) (*AdminUserItem, error) {
	user, err := s.resolveUser(ctx, rawID)
	if err != nil {
		return nil, err
	}

	projectCount, err := s.projectRepo.CountByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	mistakeCount, err := s.mistakeRepo.CountByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &AdminUserItem{
		User:         user,
		ProjectCount: projectCount,
		MistakeCount: mistakeCount,
	}, nil
}

// UpdateUser 更新用户信息
// 改名时检查新用户名的唯一性
func (s *AdminService) UpdateUser(ctx context.Context, rawID string, req *AdminUserUpdateRequest) (*model.User, error) {
	user, err := s.resolveUser(ctx, rawID)
	if err != nil {
		return nil, err
	}

	if req.Role != nil && *req.Role != model.RoleUser && *req.Role != model.RoleAdmin {
		return nil, fmt.Errorf("未知的角色 %q: %w", *req.Role, ErrInvalidInput)
	}

	if req.Username != nil && *req.Username != user.Username {
		exists, err := s.userRepo.ExistsByUsername(ctx, *req.Username)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrUserExists
		}
		user.Username = *req.Username
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser 删除用户及其所有项目和错题
// 项目文件和错题图片会一并从对象存储清理
// 参数:
//   - ctx: 上下文
//   - adminID: 当前管理员的用户ID，禁止删除自己
//   - rawID: 待删除的用户ID
//
// 返回:
//   - error: ErrNotFound / ErrInvalidInput（删除自己）/ 数据库错误
func (s *AdminService) DeleteUser(ctx context.Context, adminID int64, rawID string) error {
	user, err := s.resolveUser(ctx, rawID)
	if err != nil {
		return err
	}

	if user.ID == adminID {
		return fmt.Errorf("不能删除自己: %w", ErrInvalidInput)
	}

	// 1. 级联删除项目（含存储文件）
	projects, err := s.projectRepo.ListByOwner(ctx, user.ID)
	if err != nil {
		return err
	}
	for i := range projects {
		if err := s.projectService.deleteProjectRow(ctx, &projects[i]); err != nil {
			return err
		}
	}

	// 2. 级联删除错题（含图片）
	mistakes, err := s.mistakeRepo.ListByOwnerID(ctx, user.ID)
	if err != nil {
		return err
	}
	for i := range mistakes {
		if err := s.mistakeService.deleteMistakeRow(ctx, &mistakes[i]); err != nil {
			return err
		}
	}

	// 3. 删除用户记录
	return s.userRepo.Delete(ctx, user.ID)
}

// ResetPassword 重置用户密码
func (s *AdminService) ResetPassword(ctx context.Context, rawID, newPassword string) error {
	user, err := s.resolveUser(ctx, rawID)
	if err != nil {
		return err
	}

	passwordHash, err := util.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{
		"password_hash": passwordHash,
	})
}

// ListProjects 分页获取所有项目，支持标题搜索和排序
// 排序字段使用接口层的驼峰命名，未知字段回退到更新时间
func (s *AdminService) ListProjects(ctx context.Context, page, pageSize int, search, sortBy, sortOrder string) (*PagedProjects, error) {
	// 接口字段到数据库列的映射
	columnMap := map[string]string{
		"title":     "title",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
		"viewCount": "view_count",
	}
	column, ok := columnMap[sortBy]
	if !ok {
		column = "updated_at"
	}
	sortDesc := sortOrder != "asc"

	projects, total, err := s.projectRepo.ListWithPagination(ctx, page, pageSize, search, column, sortDesc)
	if err != nil {
		return nil, err
	}

	// 批量加载所有者用户名
	ownerNames := make(map[int64]string)
	items := make([]AdminProjectItem, 0, len(projects))
	for i := range projects {
		project := &projects[i]
		name, ok := ownerNames[project.OwnerID]
		if !ok {
			owner, err := s.userRepo.GetByID(ctx, project.OwnerID)
			if err != nil {
				return nil, err
			}
			name = "未知用户"
			if owner != nil {
				name = owner.Username
			}
			ownerNames[project.OwnerID] = name
		}
		items = append(items, AdminProjectItem{
			Project:   project,
			OwnerName: name,
		})
	}

	return &PagedProjects{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// DeleteProject 删除任意用户的项目（含存储文件）
func (s *AdminService) DeleteProject(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if project == nil {
		return fmt.Errorf("项目 %d 不存在: %w", id, ErrNotFound)
	}
	return s.projectService.deleteProjectRow(ctx, project)
}

// resolveUser 解析用户 ID 并加载用户
func (s *AdminService) resolveUser(ctx context.Context, rawID string) (*model.User, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("用户 %d 不存在: %w", id, ErrNotFound)
	}
	return user, nil
}

// totalPages 计算总页数，没有数据时为 1
func totalPages(total int64, pageSize int) int64 {
	if total <= 0 {
		return 1
	}
	pages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		pages++
	}
	return pages
}
