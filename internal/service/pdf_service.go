package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"scratch-edu-server/internal/config"
	"scratch-edu-server/internal/model"
	"scratch-edu-server/internal/storage"
)

// subjectNames 学科英文值到中文名的映射
var subjectNames = map[string]string{
	model.SubjectMath:      "数学",
	model.SubjectChinese:   "语文",
	model.SubjectEnglish:   "英语",
	model.SubjectPhysics:   "物理",
	model.SubjectChemistry: "化学",
	model.SubjectBiology:   "生物",
	model.SubjectOther:     "其他",
}

// difficultyNames 难度英文值到中文名的映射
var difficultyNames = map[string]string{
	model.DifficultyEasy:   "简单",
	model.DifficultyMedium: "中等",
	model.DifficultyHard:   "困难",
}

// defaultFontPaths 常见发行版的中文 TTF 字体路径
// 按顺序探测，找到第一个存在的为止
var defaultFontPaths = []string{
	"/usr/share/fonts/truetype/droid/DroidSansFallbackFull.ttf",
	"/usr/share/fonts/truetype/wqy/wqy-microhei.ttf",
	"/usr/share/fonts/wenquanyi/wqy-microhei/wqy-microhei.ttf",
	"/usr/share/fonts/truetype/arphic/ukai.ttf",
}

// PDFService 错题本 PDF 导出服务
type PDFService struct {
	fontPath string              // 中文字体路径，为空则退回内置字体
	store    storage.ObjectStore // 对象存储，用于加载错题图片
}

// NewPDFService 创建 PDFService 实例
// 启动时探测一次中文字体；没有可用字体时仍能导出，
// 但中文内容无法正常渲染
func NewPDFService(cfg *config.PDFConfig, store storage.ObjectStore) *PDFService {
	fontPath := resolveFontPath(cfg.FontPath)
	if fontPath == "" {
		log.Printf("[WARN] no chinese font found, pdf export will use builtin font")
	}
	return &PDFService{
		fontPath: fontPath,
		store:    store,
	}
}

// resolveFontPath 确定中文字体文件路径
// 配置指定的路径优先，其次探测系统常见位置
func resolveFontPath(configured string) string {
	candidates := defaultFontPaths
	if configured != "" {
		candidates = append([]string{configured}, candidates...)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Render 把错题列表渲染为 PDF
// 参数:
//   - ctx: 上下文
//   - mistakes: 错题列表，按列表顺序排版
//   - includeImages: 是否渲染题目图片，关闭后只输出文字内容
//
// 返回:
//   - []byte: PDF 文件内容
//   - error: 渲染错误
func (s *PDFService) Render(ctx context.Context, mistakes []model.MistakeQuestion, includeImages bool) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	// 注册中文字体，失败则退回内置字体
	font := "Helvetica"
	if s.fontPath != "" {
		pdf.AddUTF8Font("chinese", "", s.fontPath)
		if !pdf.Err() {
			font = "chinese"
		}
	}

	pdf.AddPage()

	// 标题与导出时间
	pdf.SetFont(font, "", 18)
	pdf.CellFormat(0, 12, "错题本", "", 1, "L", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.CellFormat(0, 6, "导出时间: "+time.Now().Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	for i, mistake := range mistakes {
		// 题目标题行，附带学科和难度
		subject := subjectNames[mistake.Subject]
		if subject == "" {
			subject = subjectNames[model.SubjectOther]
		}
		difficulty := difficultyNames[mistake.Difficulty]
		if difficulty == "" {
			difficulty = difficultyNames[model.DifficultyMedium]
		}

		pdf.SetFont(font, "", 14)
		heading := fmt.Sprintf("%d. %s [%s] [%s]", i+1, mistake.Title, subject, difficulty)
		pdf.MultiCell(0, 8, heading, "", "L", false)
		pdf.Ln(2)

		// 题目图片
		if includeImages {
			for _, path := range mistake.ImagePaths {
				s.renderImage(ctx, pdf, path)
			}
		}

		// 内容段落，空字段跳过
		pdf.SetFont(font, "", 10)
		s.renderField(pdf, "题目", mistake.QuestionContent)
		s.renderField(pdf, "我的答案", mistake.MyAnswer)
		s.renderField(pdf, "正确答案", mistake.AnswerContent)
		s.renderField(pdf, "解析", mistake.Analysis)
		if len(mistake.Tags) > 0 {
			tags := make([]string, len(mistake.Tags))
			for j, tag := range mistake.Tags {
				tags[j] = "#" + tag
			}
			s.renderField(pdf, "知识点", strings.Join(tags, " "))
		}
		s.renderField(pdf, "笔记", mistake.Notes)
		pdf.Ln(8)

		// 每 5 道题分页
		if (i+1)%5 == 0 && i+1 < len(mistakes) {
			pdf.AddPage()
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("生成 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// renderField 渲染一个带标签的内容段落，内容为空则跳过
func (s *PDFService) renderField(pdf *fpdf.Fpdf, label, content string) {
	if content == "" {
		return
	}
	pdf.MultiCell(0, 5, label+": "+content, "", "L", false)
	pdf.Ln(1)
}

// renderImage 从对象存储加载图片并插入当前页
// 加载失败或格式不支持只记日志，不中断导出
func (s *PDFService) renderImage(ctx context.Context, pdf *fpdf.Fpdf, path string) {
	imageType := ""
	switch {
	case strings.HasSuffix(path, ".png"):
		imageType = "PNG"
	case strings.HasSuffix(path, ".gif"):
		imageType = "GIF"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		imageType = "JPG"
	default:
		log.Printf("[WARN] unsupported image type in pdf export: %s", path)
		return
	}

	data, err := s.store.Get(ctx, path)
	if err != nil || data == nil {
		log.Printf("[WARN] load image %s for pdf failed: %v", path, err)
		return
	}

	opts := fpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
	pdf.RegisterImageOptionsReader(path, opts, bytes.NewReader(data))
	// 宽度固定 140mm，高度按比例自适应
	pdf.ImageOptions(path, pdf.GetX(), pdf.GetY(), 140, 0, true, opts, 0, "")
	pdf.Ln(4)
}
