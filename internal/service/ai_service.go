package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"scratch-edu-server/internal/config"
	"scratch-edu-server/internal/model"
)

// 识别结果的枚举值
var (
	validErrorTypes = []string{"calculation", "concept", "careless", "unanswered", "other"}
	validConfidence = []string{"high", "medium", "low"}
)

// extractPrompt 错题识别提示词
// 要求模型只输出 JSON，结构与 ExtractResult 对应
const extractPrompt = `你是一位经验丰富的老师，请识别这张试卷或作业图片中所有做错的题目。

对每道错题，给出以下信息：
- questionNumber: 题号（如 "3" 或 "二、1"，无法确定则留空）
- questionContent: 完整的题目内容
- studentAnswer: 学生的答案（未作答则留空）
- correctAnswer: 正确答案
- analysis: 简要解析，说明错在哪里
- errorType: 错误类型，取值 calculation|concept|careless|unanswered|other
- suggestedTags: 知识点标签列表
- suggestedSubject: 学科，取值 %s
- confidence: 识别置信度，取值 high|medium|low

以 JSON 格式输出，不要输出任何其他内容：
{"questions": [...], "totalFound": 数量, "imageNote": "图片整体说明"}`

// ExtractedQuestion AI 识别出的单道错题
type ExtractedQuestion struct {
	QuestionNumber   string   `json:"questionNumber"`   // 题号
	QuestionContent  string   `json:"questionContent"`  // 题目内容
	StudentAnswer    string   `json:"studentAnswer"`    // 学生答案
	CorrectAnswer    string   `json:"correctAnswer"`    // 正确答案
	Analysis         string   `json:"analysis"`         // 解析
	ErrorType        string   `json:"errorType"`        // 错误类型
	SuggestedTags    []string `json:"suggestedTags"`    // 建议标签
	SuggestedSubject string   `json:"suggestedSubject"` // 建议学科
	Confidence       string   `json:"confidence"`       // 置信度
}

// ExtractResult AI 识别结果
// 一张试卷图片可能包含多道错题
type ExtractResult struct {
	Questions  []ExtractedQuestion `json:"questions"`  // 识别出的错题列表
	TotalFound int                 `json:"totalFound"` // 错题数量
	ImageNote  string              `json:"imageNote"`  // 图片整体说明
}

// AIService AI 错题识别服务
// 使用 OpenAI 兼容接口，通过 BaseURL 可切换模型供应商
// 未配置 API Key 时服务处于禁用状态
type AIService struct {
	client *openai.Client // 未配置时为 nil
	model  string         // 模型标识
}

// NewAIService 创建 AIService 实例
// API Key 为空时返回禁用状态的实例，调用方通过 Available 判断
func NewAIService(cfg *config.AIConfig) *AIService {
	if cfg.APIKey == "" {
		log.Printf("[WARN] AI api key not configured, extraction disabled")
		return &AIService{}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &AIService{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Available 返回 AI 识别是否可用
func (s *AIService) Available() bool {
	return s != nil && s.client != nil
}

// ExtractMistakes 从试卷图片中识别所有做错的题目
// 参数:
//   - ctx: 上下文
//   - imageData: 图片二进制数据
//
// 返回:
//   - *ExtractResult: 识别结果，字段已校验修正
//   - error: 服务未配置返回 ErrAIUnavailable，调用或解析失败返回普通错误
func (s *AIService) ExtractMistakes(ctx context.Context, imageData []byte) (*ExtractResult, error) {
	if !s.Available() {
		return nil, ErrAIUnavailable
	}

	prompt := fmt.Sprintf(extractPrompt, strings.Join(model.ValidSubjects, "|"))
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageData)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: 4000,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: imageURL,
						},
					},
				},
			},
		},
	})
	if err != nil {
		// 上游故障与未配置同等对待，前端提示改用手动录入
		return nil, fmt.Errorf("AI 识别调用失败: %v: %w", err, ErrAIUnavailable)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("AI 识别返回为空: %w", ErrAIUnavailable)
	}

	return parseExtractResponse(resp.Choices[0].Message.Content)
}

// parseExtractResponse 解析模型输出并修正字段
func parseExtractResponse(content string) (*ExtractResult, error) {
	var result ExtractResult
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &result); err != nil {
		return nil, fmt.Errorf("AI 识别结果不是合法的 JSON: %w", err)
	}

	if result.Questions == nil {
		result.Questions = []ExtractedQuestion{}
	}
	for i := range result.Questions {
		sanitizeQuestion(&result.Questions[i])
	}
	result.TotalFound = len(result.Questions)
	return &result, nil
}

// stripCodeFences 去除模型输出中可能包裹的 markdown 代码块
func stripCodeFences(content string) string {
	if strings.Contains(content, "```json") {
		parts := strings.SplitN(content, "```json", 2)
		content = strings.SplitN(parts[1], "```", 2)[0]
	} else if strings.Contains(content, "```") {
		parts := strings.SplitN(content, "```", 3)
		if len(parts) >= 2 {
			content = parts[1]
		}
	}
	return strings.TrimSpace(content)
}

// sanitizeQuestion 校验并修正单道错题的枚举字段
// 模型输出不可信，非法值一律回退到安全默认值
func sanitizeQuestion(q *ExtractedQuestion) {
	if !model.IsValidSubject(q.SuggestedSubject) {
		q.SuggestedSubject = model.SubjectOther
	}
	if !contains(validErrorTypes, q.ErrorType) {
		q.ErrorType = "other"
	}
	if !contains(validConfidence, q.Confidence) {
		q.Confidence = "medium"
	}
	if q.SuggestedTags == nil {
		q.SuggestedTags = []string{}
	}
}

func contains(values []string, v string) bool {
	for _, item := range values {
		if item == v {
			return true
		}
	}
	return false
}
