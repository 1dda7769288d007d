package service

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"maum-talk-go/internal/config"
	"maum-talk-go/internal/model"
	"maum-talk-go/internal/repository"
	"maum-talk-go/pkg/llm"
	"maum-talk-go/pkg/log"
)

// NamePlaceholder 是系统提示词与问候语中代表参与者姓名的占位符。
const NamePlaceholder = "{participant_name}"

// ApologyMessage 是 LLM 调用失败时下发给参与者的唯一分块。
// 治疗场景下不允许把原始错误暴露给参与者。
const ApologyMessage = "죄송합니다. 응답 생성 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요."

// Chain 是一次可调用的对话链：按某个版本的激活配置装配好的
// 系统提示词、模型与采样参数。配置被编辑后链会在下次调用前重建。
type Chain struct {
	SystemPrompt string
	Greeting     string
	Params       llm.GenerationParams
	Version      int64
}

// ChatService 负责从 {系统提示词, 历史, 新输入} 装配请求并流式产出回复。
type ChatService interface {
	// Configure 根据当前激活配置为某位参与者装配对话链。
	// 配置表为空或不可达时回退到内置默认配置与文件提示词，永不硬失败。
	Configure(ctx context.Context, participantName string) *Chain
	// Stale 判断链是否因配置编辑而过期。
	Stale(ctx context.Context, chain *Chain) bool
	// Invoke 流式产出一次回复并返回完整文本。
	// 底层任何故障都退化为单条道歉分块，错误只记日志，不向调用方传播。
	Invoke(ctx context.Context, chain *Chain, history []model.ChatMessage, input string, writer llm.MessageWriter) string
}

type chatService struct {
	llmClient  llm.Client
	configRepo repository.LLMConfigRepository
	signal     ConfigSignal
	fallback   config.LLMConfig
}

// NewChatService 创建一个新的 ChatService 实例。
// fallback 是部署级默认配置，在数据库中没有激活配置时使用。
func NewChatService(llmClient llm.Client, configRepo repository.LLMConfigRepository, signal ConfigSignal, fallback config.LLMConfig) ChatService {
	return &chatService{
		llmClient:  llmClient,
		configRepo: configRepo,
		signal:     signal,
		fallback:   fallback,
	}
}

// Configure 装配对话链。
func (s *chatService) Configure(ctx context.Context, participantName string) *Chain {
	version, err := s.signal.Version(ctx)
	if err != nil {
		log.Errorf("读取配置版本失败，使用版本 0: %v", err)
		version = 0
	}

	chain := &Chain{Version: version}

	active, err := s.configRepo.FindActive()
	switch {
	case err == nil:
		chain.SystemPrompt = strings.ReplaceAll(active.SystemPrompt, NamePlaceholder, participantName)
		chain.Params = llm.GenerationParams{
			Model:            active.Model,
			Temperature:      &active.Temperature,
			TopP:             &active.TopP,
			MaxTokens:        &active.MaxTokens,
			FrequencyPenalty: &active.FrequencyPenalty,
			PresencePenalty:  &active.PresencePenalty,
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Warnf("没有激活的 LLM 配置，回退到默认配置")
		s.applyFallback(chain, participantName)
	default:
		log.Errorf("读取激活 LLM 配置失败，回退到默认配置: %v", err)
		s.applyFallback(chain, participantName)
	}

	chain.Greeting = strings.ReplaceAll(s.fallback.Greeting, NamePlaceholder, participantName)
	return chain
}

// applyFallback 用部署配置与文件提示词填充链。
func (s *chatService) applyFallback(chain *Chain, participantName string) {
	prompt := s.loadPromptFile()
	chain.SystemPrompt = strings.ReplaceAll(prompt, NamePlaceholder, participantName)

	gen := s.fallback.Generation
	chain.Params = llm.GenerationParams{
		Model:            s.fallback.Model,
		Temperature:      &gen.Temperature,
		TopP:             &gen.TopP,
		MaxTokens:        &gen.MaxTokens,
		FrequencyPenalty: &gen.FrequencyPenalty,
		PresencePenalty:  &gen.PresencePenalty,
	}
}

// loadPromptFile 读取文件提示词，文件不可用时退回到最小可用提示词。
func (s *chatService) loadPromptFile() string {
	data, err := os.ReadFile(s.fallback.PromptFile)
	if err != nil {
		log.Errorf("提示词文件读取失败: %s, error: %v", s.fallback.PromptFile, err)
		return "당신은 따뜻하고 공감적인 상담 에이전트입니다. " + NamePlaceholder + "님의 이야기를 경청해 주세요."
	}
	return string(data)
}

// Stale 判断链版本是否落后于当前配置版本。
func (s *chatService) Stale(ctx context.Context, chain *Chain) bool {
	version, err := s.signal.Version(ctx)
	if err != nil {
		// 信号不可达时不强制重建，继续用现有链
		return false
	}
	return version != chain.Version
}

// Invoke 执行一次流式对话调用。
func (s *chatService) Invoke(ctx context.Context, chain *Chain, history []model.ChatMessage, input string, writer llm.MessageWriter) string {
	messages := s.composeMessages(chain.SystemPrompt, history, input)

	// 拦截 writer 以捕获完整答案，供调用方落库
	answerBuilder := &strings.Builder{}
	interceptor := &captureWriter{inner: writer, builder: answerBuilder}

	if err := s.llmClient.StreamChatMessages(ctx, messages, &chain.Params, interceptor); err != nil {
		log.Errorf("LLM 流式调用失败: %v", err)
		if writeErr := writer.WriteMessage(websocket.TextMessage, []byte(ApologyMessage)); writeErr != nil {
			log.Errorf("下发道歉消息失败: %v", writeErr)
		}
		return ApologyMessage
	}

	return answerBuilder.String()
}

// composeMessages 装配 {system, history..., user} 消息序列。
func (s *chatService) composeMessages(systemPrompt string, history []model.ChatMessage, input string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: systemPrompt})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: model.RoleUser, Content: input})
	return msgs
}

// captureWriter 是对 MessageWriter 的封装，用于捕获写入的完整答案。
type captureWriter struct {
	inner   llm.MessageWriter
	builder *strings.Builder
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *captureWriter) WriteMessage(messageType int, data []byte) error {
	w.builder.Write(data)
	return w.inner.WriteMessage(messageType, data)
}
