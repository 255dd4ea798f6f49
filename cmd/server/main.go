// Package main 是服务端的入口点
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"scratch-edu-server/internal/cache"
	"scratch-edu-server/internal/config"
	"scratch-edu-server/internal/handler"
	"scratch-edu-server/internal/middleware"
	"scratch-edu-server/internal/model"
	"scratch-edu-server/internal/repository"
	"scratch-edu-server/internal/service"
	"scratch-edu-server/internal/storage"
	"scratch-edu-server/internal/sweeper"
	"scratch-edu-server/pkg/jwt"
	"scratch-edu-server/pkg/util"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 默认管理员账号，首次启动时创建
// 生产环境部署后应立即修改密码
const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin"
)

func main() {
	// 加载配置
	cfg, err := config.Load("./configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}

	// 自动迁移数据库表
	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 初始化对象存储
	store, err := storage.NewMinIOStore(&cfg.MinIO)
	if err != nil {
		log.Fatalf("Failed to init minio: %v", err)
	}

	// 初始化 Redis
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		log.Fatalf("Failed to init redis: %v", err)
	}

	// 初始化 JWT 服务
	jwtService := jwt.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.AccessExpire,
		cfg.JWT.RefreshExpire,
	)

	// 初始化 Repository 层
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	mistakeRepo := repository.NewMistakeRepository(db)

	// 创建默认管理员账号
	if err := seedAdminUser(userRepo); err != nil {
		log.Fatalf("Failed to seed admin user: %v", err)
	}

	// 初始化 Service 层
	authService := service.NewAuthService(userRepo, redisCache, jwtService)
	projectService := service.NewProjectService(projectRepo, store)
	aiService := service.NewAIService(&cfg.AI)
	pdfService := service.NewPDFService(&cfg.PDF, store)
	mistakeService := service.NewMistakeService(mistakeRepo, store, aiService, pdfService)
	adminService := service.NewAdminService(userRepo, projectRepo, mistakeRepo, projectService, mistakeService)

	// 初始化 Handler 层
	authHandler := handler.NewAuthHandler(authService)
	projectHandler := handler.NewProjectHandler(projectService)
	shareHandler := handler.NewShareHandler(projectService)
	mistakeHandler := handler.NewMistakeHandler(mistakeService)
	adminHandler := handler.NewAdminHandler(adminService)

	// 启动孤儿文件清理任务
	var sweep *sweeper.Sweeper
	if cfg.Sweep.Enabled {
		sweep = sweeper.New(&cfg.Sweep, store, projectRepo, mistakeRepo)
		if err := sweep.Start(); err != nil {
			log.Fatalf("Failed to start sweeper: %v", err)
		}
	}

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	router := gin.New()

	// 全局中间件
	router.Use(middleware.RecoveryMiddleware())            // 恢复 panic
	router.Use(middleware.LoggerMiddleware())              // 请求日志
	router.Use(middleware.CORSMiddleware(cfg.Server.CORS)) // CORS

	// 注册路由
	registerRoutes(router, jwtService, redisCache, userRepo,
		authHandler, projectHandler, shareHandler, mistakeHandler, adminHandler)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
		// PDF 导出和图片上传可能较慢，超时放宽到 60 秒
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if sweep != nil {
		sweep.Stop()
	}
	if err := redisCache.Close(); err != nil {
		log.Printf("Failed to close redis: %v", err)
	}

	log.Println("Server exited")
}

// initDatabase 初始化数据库连接
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.MySQL.Username,
		cfg.MySQL.Password,
		cfg.MySQL.Host,
		cfg.MySQL.Port,
		cfg.MySQL.Database,
		cfg.MySQL.Charset,
	)

	// 配置 GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MySQL.MaxLifetime) * time.Second)

	log.Println("Database connected successfully")
	return db, nil
}

// autoMigrate 自动迁移数据库表
func autoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(
		&model.User{},
		&model.Project{},
		&model.MistakeQuestion{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// seedAdminUser 创建默认管理员账号
// 账号已存在但不是管理员时升级角色，密码不变
func seedAdminUser(userRepo *repository.UserRepository) error {
	ctx := context.Background()

	admin, err := userRepo.GetByUsername(ctx, defaultAdminUsername)
	if err != nil {
		return err
	}

	if admin == nil {
		passwordHash, err := util.HashPassword(defaultAdminPassword)
		if err != nil {
			return err
		}
		if err := userRepo.Create(ctx, &model.User{
			Username:     defaultAdminUsername,
			PasswordHash: passwordHash,
			Role:         model.RoleAdmin,
			IsActive:     true,
		}); err != nil {
			return err
		}
		log.Printf("[INFO] default admin user created, please change the password")
		return nil
	}

	if !admin.IsAdmin() {
		if err := userRepo.UpdateFields(ctx, admin.ID, map[string]interface{}{
			"role": model.RoleAdmin,
		}); err != nil {
			return err
		}
		log.Printf("[INFO] user %q promoted to admin", defaultAdminUsername)
	}
	return nil
}

// registerRoutes 注册所有路由
func registerRoutes(
	router *gin.Engine,
	jwtService *jwt.JWTService,
	redisCache *cache.RedisCache,
	userRepo *repository.UserRepository,
	authHandler *handler.AuthHandler,
	projectHandler *handler.ProjectHandler,
	shareHandler *handler.ShareHandler,
	mistakeHandler *handler.MistakeHandler,
	adminHandler *handler.AdminHandler,
) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	authRequired := middleware.AuthMiddleware(jwtService, redisCache)

	// 认证相关
	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authRequired, authHandler.Logout)
		auth.GET("/me", authRequired, authHandler.Me)
	}

	// 项目相关（需要登录）
	projects := api.Group("/projects")
	projects.Use(authRequired)
	{
		projects.GET("", projectHandler.List)
		projects.POST("", projectHandler.Create)
		projects.GET("/:id", projectHandler.Get)
		projects.PUT("/:id", projectHandler.Update)
		projects.DELETE("/:id", projectHandler.Delete)
		projects.POST("/:id/share", projectHandler.Share)
		projects.DELETE("/:id/share", projectHandler.Unshare)
	}

	// 公开分享（无需登录）
	api.GET("/share/:token", shareHandler.Get)

	// 错题相关（需要登录）
	mistakes := api.Group("/mistakes")
	mistakes.Use(authRequired)
	{
		mistakes.GET("", mistakeHandler.List)
		mistakes.POST("", mistakeHandler.Create)
		mistakes.GET("/stats", mistakeHandler.Stats)
		mistakes.GET("/export/pdf", mistakeHandler.ExportPDF)
		mistakes.GET("/:id", mistakeHandler.Get)
		mistakes.PUT("/:id", mistakeHandler.Update)
		mistakes.DELETE("/:id", mistakeHandler.Delete)
		mistakes.POST("/:id/images", mistakeHandler.UploadImage)
		mistakes.GET("/:id/images/:index", mistakeHandler.GetImage)
		mistakes.POST("/:id/extract", mistakeHandler.Extract)
		mistakes.POST("/:id/review", mistakeHandler.Review)
	}

	// 管理后台（需要管理员角色）
	admin := api.Group("/admin")
	admin.Use(authRequired, middleware.AdminMiddleware(userRepo))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.GET("/users", adminHandler.ListUsers)
		admin.POST("/users", adminHandler.CreateUser)
		admin.GET("/users/:id", adminHandler.GetUser)
		admin.PUT("/users/:id", adminHandler.UpdateUser)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
		admin.POST("/users/:id/reset-password", adminHandler.ResetPassword)
		admin.GET("/projects", adminHandler.ListProjects)
		admin.DELETE("/projects/:id", adminHandler.DeleteProject)
	}
}
