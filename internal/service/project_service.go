package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"scratch-edu-server/internal/model"
	"scratch-edu-server/internal/repository"
	"scratch-edu-server/internal/storage"
	"scratch-edu-server/pkg/util"
)

// sb3ContentType Scratch 项目包的 MIME 类型
const sb3ContentType = "application/x.scratch.sb3"

// ProjectService 项目服务
// 处理项目的增删改查、分享和文件存储
type ProjectService struct {
	projectRepo *repository.ProjectRepository // 项目数据访问层
	store       storage.ObjectStore           // 对象存储
}

// NewProjectService 创建 ProjectService 实例
func NewProjectService(projectRepo *repository.ProjectRepository, store storage.ObjectStore) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		store:       store,
	}
}

// ProjectCreateRequest 创建项目请求
type ProjectCreateRequest struct {
	Title       string            `json:"title"`       // 标题，为空使用默认值
	Description *string           `json:"description"` // 描述（可选）
	Thumbnail   *string           `json:"thumbnail"`   // 缩略图 data URL（可选）
	Data        map[string]string `json:"data"`        // 项目数据，键 sb3 为项目包的 data URI
}

// ProjectUpdateRequest 更新项目请求
// 部分更新：缺省的字段保持不变，显式传 null 的可空字段会被清空
type ProjectUpdateRequest struct {
	Title       *string           // 标题
	Description *string           // 描述，nil 且 DescriptionSet 为 true 表示清空
	Thumbnail   *string           // 缩略图
	Data        map[string]string // 项目数据

	// 记录请求体中实际出现过的键，用于区分"缺省"和"显式 null"
	DescriptionSet bool
	ThumbnailSet   bool
}

// UnmarshalJSON 自定义反序列化，记录每个键是否在请求体中出现
func (r *ProjectUpdateRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["title"]; ok {
		if err := json.Unmarshal(v, &r.Title); err != nil {
			return err
		}
	}
	if v, ok := raw["description"]; ok {
		r.DescriptionSet = true
		if err := json.Unmarshal(v, &r.Description); err != nil {
			return err
		}
	}
	if v, ok := raw["thumbnail"]; ok {
		r.ThumbnailSet = true
		if err := json.Unmarshal(v, &r.Thumbnail); err != nil {
			return err
		}
	}
	if v, ok := raw["data"]; ok {
		if err := json.Unmarshal(v, &r.Data); err != nil {
			return err
		}
	}
	return nil
}

// ProjectDetail 项目详情
// 在元数据基础上附带项目包数据（data URI 形式）
type ProjectDetail struct {
	*model.Project
	Data map[string]string `json:"data,omitempty"` // 键 sb3 为项目包的 data URI
}

// ListProjects 获取用户的项目列表（不含项目包数据）
func (s *ProjectService) ListProjects(ctx context.Context, ownerID int64) ([]model.Project, error) {
	return s.projectRepo.ListByOwner(ctx, ownerID)
}

// CreateProject 创建项目
// 先落库获得项目 ID，再用 ID 派生存储路径写入项目包
// 参数:
//   - ctx: 上下文
//   - ownerID: 所有者用户ID
//   - req: 创建请求
//
// 返回:
//   - *ProjectDetail: 新建的项目
//   - error: 业务或存储错误
func (s *ProjectService) CreateProject(ctx context.Context, ownerID int64, req *ProjectCreateRequest) (*ProjectDetail, error) {
	project := &model.Project{
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Thumbnail:   req.Thumbnail,
	}
	if project.Title == "" {
		project.Title = "未命名项目"
	}

	// 1. 创建元数据记录，获得项目 ID
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	// 2. 如果带了项目数据，写入对象存储并回填路径
	if sb3, ok := req.Data["sb3"]; ok && sb3 != "" {
		if err := s.saveProjectData(ctx, project, sb3); err != nil {
			return nil, err
		}
	}

	return &ProjectDetail{Project: project}, nil
}

// GetProject 获取项目详情，包含项目包数据
// 参数:
//   - ctx: 上下文
//   - userID: 当前用户ID
//   - rawID: 路径中的项目ID
//
// 返回:
//   - *ProjectDetail: 项目详情
//   - error: ErrNotFound / ErrForbidden / 存储错误
func (s *ProjectService) GetProject(ctx context.Context, userID int64, rawID string) (*ProjectDetail, error) {
	project, err := s.resolveOwned(ctx, userID, rawID)
	if err != nil {
		return nil, err
	}

	detail := &ProjectDetail{Project: project}
	if project.StoragePath != nil {
		data, err := s.store.Get(ctx, *project.StoragePath)
		if err != nil {
			return nil, err
		}
		if data != nil {
			detail.Data = map[string]string{"sb3": util.EncodeDataURI(sb3ContentType, data)}
		}
	}
	return detail, nil
}

// UpdateProject 更新项目
// 部分更新语义：缺省字段不变，可空字段显式传 null 表示清空
// 并发保存采用后写覆盖，不做乐观锁
func (s *ProjectService) UpdateProject(ctx context.Context, userID int64, rawID string, req *ProjectUpdateRequest) (*ProjectDetail, error) {
	project, err := s.resolveOwned(ctx, userID, rawID)
	if err != nil {
		return nil, err
	}

	// 1. 元数据字段
	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = *req.Title
		project.Title = *req.Title
	}
	if req.DescriptionSet {
		fields["description"] = req.Description
		project.Description = req.Description
	}
	if req.ThumbnailSet {
		fields["thumbnail"] = req.Thumbnail
		project.Thumbnail = req.Thumbnail
	}
	if len(fields) > 0 {
		if err := s.projectRepo.UpdateFields(ctx, project.ID, fields); err != nil {
			return nil, err
		}
	}

	// 2. 项目包数据，直接覆盖同一路径
	if sb3, ok := req.Data["sb3"]; ok && sb3 != "" {
		if err := s.saveProjectData(ctx, project, sb3); err != nil {
			return nil, err
		}
	}

	// 3. 重新加载，返回数据库刷新后的更新时间
	project, err = s.projectRepo.GetByID(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return &ProjectDetail{Project: project}, nil
}

// DeleteProject 删除项目
// 先清理对象存储再删除记录；存储清理失败只记日志不中断，
// 遗留对象由后台清扫任务回收
func (s *ProjectService) DeleteProject(ctx context.Context, userID int64, rawID string) error {
	project, err := s.resolveOwned(ctx, userID, rawID)
	if err != nil {
		return err
	}
	return s.deleteProjectRow(ctx, project)
}

// ShareProject 开启项目分享
// 幂等：已分享的项目直接返回现有令牌
// 返回:
//   - string: 分享令牌
//   - error: 业务错误
func (s *ProjectService) ShareProject(ctx context.Context, userID int64, rawID string) (string, error) {
	project, err := s.resolveOwned(ctx, userID, rawID)
	if err != nil {
		return "", err
	}

	if project.IsPublic && project.ShareToken != nil {
		return *project.ShareToken, nil
	}

	token := util.GenerateShareToken()

	// 令牌和公开标记一起写入，保证不变式
	err = s.projectRepo.UpdateFields(ctx, project.ID, map[string]interface{}{
		"is_public":   true,
		"share_token": token,
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// UnshareProject 取消项目分享
// 令牌和公开标记一起清空；旧令牌立即失效且不会复用
func (s *ProjectService) UnshareProject(ctx context.Context, userID int64, rawID string) error {
	project, err := s.resolveOwned(ctx, userID, rawID)
	if err != nil {
		return err
	}
	return s.projectRepo.UpdateFields(ctx, project.ID, map[string]interface{}{
		"is_public":   false,
		"share_token": nil,
	})
}

// GetSharedProject 通过分享令牌获取公开项目
// 无需登录；每次成功读取都会累加浏览次数
func (s *ProjectService) GetSharedProject(ctx context.Context, token string) (*ProjectDetail, error) {
	project, err := s.projectRepo.GetByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("分享不存在或已取消: %w", ErrNotFound)
	}

	if err := s.projectRepo.IncrementViewCount(ctx, project.ID); err != nil {
		return nil, err
	}
	project.ViewCount++

	detail := &ProjectDetail{Project: project}
	if project.StoragePath != nil {
		data, err := s.store.Get(ctx, *project.StoragePath)
		if err != nil {
			return nil, err
		}
		if data != nil {
			detail.Data = map[string]string{"sb3": util.EncodeDataURI(sb3ContentType, data)}
		}
	}
	return detail, nil
}

// resolveOwned 解析项目 ID 并校验归属
// 非法 ID 和不存在统一返回 ErrNotFound，归属他人返回 ErrForbidden
func (s *ProjectService) resolveOwned(ctx context.Context, userID int64, rawID string) (*model.Project, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("项目 %d 不存在: %w", id, ErrNotFound)
	}
	if err := checkOwnership(project.OwnerID, userID); err != nil {
		return nil, err
	}
	return project, nil
}

// saveProjectData 解码 data URI 并写入对象存储，回填存储路径
// 路径未变化时也执行一次落库，保证每次成功保存都刷新更新时间
func (s *ProjectService) saveProjectData(ctx context.Context, project *model.Project, sb3 string) error {
	_, payload, err := util.DecodeDataURI(sb3)
	if err != nil {
		return fmt.Errorf("项目数据不是合法的 data URI: %w", ErrInvalidInput)
	}

	objectName := project.StorageObjectName()
	if err := s.store.Put(ctx, objectName, payload, sb3ContentType); err != nil {
		return err
	}

	if err := s.projectRepo.UpdateFields(ctx, project.ID, map[string]interface{}{
		"storage_path": objectName,
	}); err != nil {
		return err
	}
	project.StoragePath = &objectName
	return nil
}

// deleteProjectRow 清理项目文件并删除记录
// 管理后台级联删除复用此逻辑
func (s *ProjectService) deleteProjectRow(ctx context.Context, project *model.Project) error {
	if project.StoragePath != nil {
		if err := s.store.Delete(ctx, *project.StoragePath); err != nil {
			// 存储清理失败不阻塞删除，遗留对象由清扫任务回收
			log.Printf("[WARN] delete project object %s failed: %v", *project.StoragePath, err)
		}
	}
	return s.projectRepo.Delete(ctx, project.ID)
}
