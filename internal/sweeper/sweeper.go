// Package sweeper 提供对象存储孤儿文件的定时清理
// 元数据和对象存储不在同一事务中写入，进程崩溃或删除失败
// 可能留下没有对应记录的文件，由这里的定时任务回收
package sweeper

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"scratch-edu-server/internal/config"
	"scratch-edu-server/internal/repository"
	"scratch-edu-server/internal/storage"
)

// Sweeper 孤儿文件清理器
type Sweeper struct {
	store       storage.ObjectStore
	projectRepo *repository.ProjectRepository
	mistakeRepo *repository.MistakeRepository
	spec        string // cron 表达式
	cron        *cron.Cron
}

// New 创建 Sweeper 实例
func New(
	cfg *config.SweepConfig,
	store storage.ObjectStore,
	projectRepo *repository.ProjectRepository,
	mistakeRepo *repository.MistakeRepository,
) *Sweeper {
	return &Sweeper{
		store:       store,
		projectRepo: projectRepo,
		mistakeRepo: mistakeRepo,
		spec:        cfg.Cron,
	}
}

// Start 按配置的 cron 表达式启动定时清理
// 返回:
//   - error: cron 表达式非法
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.spec, func() {
		// 单次清理限时 10 分钟
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[INFO] orphan sweeper started, cron %q", s.spec)
	return nil
}

// Stop 停止定时清理，等待正在运行的任务结束
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep 执行一轮清理，返回删除的对象数量
// 清理过程中的单个错误只记日志，不中断整轮扫描
func (s *Sweeper) Sweep(ctx context.Context) int {
	deleted := s.sweepProjects(ctx) + s.sweepMistakes(ctx)
	log.Printf("[INFO] orphan sweep finished, %d objects deleted", deleted)
	return deleted
}

// sweepProjects 清理没有对应项目记录的项目文件
// 对象路径形如 projects/{id}/project.sb3
func (s *Sweeper) sweepProjects(ctx context.Context) int {
	names, err := s.store.ListByPrefix(ctx, "projects/")
	if err != nil {
		log.Printf("[WARN] sweep list projects failed: %v", err)
		return 0
	}

	deleted := 0
	// 同一项目的多个对象只查一次库
	checked := make(map[int64]bool)
	for _, name := range names {
		id, ok := pathSegmentID(name, 1)
		if !ok {
			log.Printf("[WARN] sweep skip unrecognized key %s", name)
			continue
		}

		exists, seen := checked[id]
		if !seen {
			project, err := s.projectRepo.GetByID(ctx, id)
			if err != nil {
				log.Printf("[WARN] sweep check project %d failed: %v", id, err)
				continue
			}
			exists = project != nil
			checked[id] = exists
		}
		if exists {
			continue
		}

		if err := s.store.Delete(ctx, name); err != nil {
			log.Printf("[WARN] sweep delete %s failed: %v", name, err)
			continue
		}
		log.Printf("[INFO] sweep deleted orphan object %s", name)
		deleted++
	}
	return deleted
}

// sweepMistakes 清理没有对应错题记录的图片
// 对象路径形如 mistakes/{owner}/{mistake}/image_0.jpg
func (s *Sweeper) sweepMistakes(ctx context.Context) int {
	names, err := s.store.ListByPrefix(ctx, "mistakes/")
	if err != nil {
		log.Printf("[WARN] sweep list mistakes failed: %v", err)
		return 0
	}

	deleted := 0
	checked := make(map[int64]bool)
	for _, name := range names {
		id, ok := pathSegmentID(name, 2)
		if !ok {
			log.Printf("[WARN] sweep skip unrecognized key %s", name)
			continue
		}

		exists, seen := checked[id]
		if !seen {
			mistake, err := s.mistakeRepo.GetByID(ctx, id)
			if err != nil {
				log.Printf("[WARN] sweep check mistake %d failed: %v", id, err)
				continue
			}
			exists = mistake != nil
			checked[id] = exists
		}
		if exists {
			continue
		}

		if err := s.store.Delete(ctx, name); err != nil {
			log.Printf("[WARN] sweep delete %s failed: %v", name, err)
			continue
		}
		log.Printf("[INFO] sweep deleted orphan object %s", name)
		deleted++
	}
	return deleted
}

// pathSegmentID 解析对象路径中指定段的数字 ID
func pathSegmentID(name string, segment int) (int64, bool) {
	parts := strings.Split(name, "/")
	if len(parts) <= segment {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[segment], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
