// Package model 定义了与数据库表对应的数据结构
package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// 学科枚举
const (
	SubjectMath      = "math"      // 数学
	SubjectChinese   = "chinese"   // 语文
	SubjectEnglish   = "english"   // 英语
	SubjectPhysics   = "physics"   // 物理
	SubjectChemistry = "chemistry" // 化学
	SubjectBiology   = "biology"   // 生物
	SubjectOther     = "other"     // 其他
)

// 难度枚举
const (
	DifficultyEasy   = "easy"   // 简单
	DifficultyMedium = "medium" // 中等
	DifficultyHard   = "hard"   // 困难
)

// ValidSubjects 所有合法的学科值
var ValidSubjects = []string{
	SubjectMath, SubjectChinese, SubjectEnglish,
	SubjectPhysics, SubjectChemistry, SubjectBiology, SubjectOther,
}

// ValidDifficulties 所有合法的难度值
var ValidDifficulties = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}

// IsValidSubject 判断学科值是否合法
func IsValidSubject(s string) bool {
	for _, v := range ValidSubjects {
		if v == s {
			return true
		}
	}
	return false
}

// IsValidDifficulty 判断难度值是否合法
func IsValidDifficulty(d string) bool {
	for _, v := range ValidDifficulties {
		if v == d {
			return true
		}
	}
	return false
}

// MistakeQuestion 错题模型
// 对应数据库表 mistakes
// 图片存储到对象存储，数据库保存路径列表
type MistakeQuestion struct {
	// ID 错题唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// OwnerID 所有者用户 ID
	OwnerID int64 `gorm:"not null;index:idx_mistakes_owner_subject,priority:1;index:idx_mistakes_owner_created,priority:1;index:idx_mistakes_owner_mastered,priority:1" json:"owner_id"`

	// Title 错题标题
	Title string `gorm:"size:200;not null" json:"title"`

	// Subject 学科: math/chinese/english/physics/chemistry/biology/other
	Subject string `gorm:"size:20;not null;index:idx_mistakes_owner_subject,priority:2" json:"subject"`

	// Difficulty 难度: easy/medium/hard
	Difficulty string `gorm:"size:20;default:medium" json:"difficulty"`

	// ImagePaths 对象存储中的图片路径列表，按上传顺序排列
	// 路径中嵌入位置下标: mistakes/{owner}/{mistake}/image_{index}.{ext}
	ImagePaths datatypes.JSONSlice[string] `gorm:"type:json" json:"image_paths"`

	// QuestionContent 题目内容（AI 提取或手动输入）
	QuestionContent string `gorm:"type:text" json:"question_content"`

	// AnswerContent 正确答案
	AnswerContent string `gorm:"type:text" json:"answer_content"`

	// MyAnswer 我的错误答案
	MyAnswer string `gorm:"type:text" json:"my_answer"`

	// Analysis 解析
	Analysis string `gorm:"type:text" json:"analysis"`

	// Tags 知识点标签
	Tags datatypes.JSONSlice[string] `gorm:"type:json" json:"tags"`

	// Source 来源（课本/试卷等）
	Source string `gorm:"size:200" json:"source"`

	// ReviewCount 复习次数
	ReviewCount int64 `gorm:"default:0" json:"review_count"`

	// IsMastered 是否已掌握
	IsMastered bool `gorm:"default:false;index:idx_mistakes_owner_mastered,priority:2" json:"is_mastered"`

	// LastReviewAt 上次复习时间
	LastReviewAt *time.Time `json:"last_review_at"`

	// Notes 个人笔记
	Notes string `gorm:"type:text" json:"notes"`

	// CreatedAt 创建时间，由 GORM 自动填充
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_mistakes_owner_created,priority:2" json:"created_at"`

	// UpdatedAt 更新时间，由 GORM 自动更新
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (MistakeQuestion) TableName() string {
	return "mistakes"
}

// ImagePrefix 返回错题图片在对象存储中的路径前缀
// 删除错题时按此前缀批量删除
func (m *MistakeQuestion) ImagePrefix() string {
	return fmt.Sprintf("mistakes/%d/%d/", m.OwnerID, m.ID)
}

// ImageObjectName 返回指定下标图片的存储路径
// 下标等于上传时列表的长度，保证路径与位置一一对应
func (m *MistakeQuestion) ImageObjectName(index int, ext string) string {
	return fmt.Sprintf("mistakes/%d/%d/image_%d.%s", m.OwnerID, m.ID, index, ext)
}
