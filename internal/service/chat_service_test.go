package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"maum-talk-go/internal/config"
	"maum-talk-go/internal/model"
	"maum-talk-go/internal/repository"
	"maum-talk-go/pkg/llm"
)

// fakeLLM 按设定的分块回写，或者直接失败。
type fakeLLM struct {
	chunks []string
	err    error

	gotMessages []llm.Message
	gotParams   *llm.GenerationParams
}

func (f *fakeLLM) StreamChatMessages(ctx context.Context, messages []llm.Message, params *llm.GenerationParams, writer llm.MessageWriter) error {
	f.gotMessages = messages
	f.gotParams = params
	if f.err != nil {
		return f.err
	}
	for _, chunk := range f.chunks {
		if err := writer.WriteMessage(1, []byte(chunk)); err != nil {
			return err
		}
	}
	return nil
}

// frameRecorder 记录写入的每一帧。
type frameRecorder struct {
	frames []string
}

func (r *frameRecorder) WriteMessage(messageType int, data []byte) error {
	r.frames = append(r.frames, string(data))
	return nil
}

func testFallback(t *testing.T) config.LLMConfig {
	t.Helper()
	promptPath := filepath.Join(t.TempDir(), "prompt.md")
	require.NoError(t, os.WriteFile(promptPath, []byte("기본 프롬프트: {participant_name}님과 대화합니다."), 0o644))
	return config.LLMConfig{
		Model:      "gpt-4.1",
		PromptFile: promptPath,
		Greeting:   "안녕하세요, {participant_name}님. 오늘 기분이 어떠신가요?",
		Generation: config.LLMGenerationConfig{Temperature: 0.7, TopP: 0.95, MaxTokens: 1024},
	}
}

func newChatService(t *testing.T, client llm.Client, signal ConfigSignal) (ChatService, repository.LLMConfigRepository) {
	t.Helper()
	repo := repository.NewLLMConfigRepository(openTestDB(t))
	return NewChatService(client, repo, signal, testFallback(t)), repo
}

func Test_Configure_Substitutes_Participant_Name(t *testing.T) {
	req := require.New(t)
	svc, repo := newChatService(t, &fakeLLM{}, &memSignal{})

	req.NoError(repo.Create(&model.LLMConfig{
		Name:         "study",
		SystemPrompt: "{participant_name}님을 돕는 상담사입니다.",
		Model:        "gpt-4.1-mini",
		Temperature:  0.5,
		MaxTokens:    512,
		TopP:         0.9,
		IsActive:     true,
	}))

	chain := svc.Configure(context.Background(), "김철수")
	req.Equal("김철수님을 돕는 상담사입니다.", chain.SystemPrompt)
	req.Contains(chain.Greeting, "김철수님")
	req.NotContains(chain.SystemPrompt, NamePlaceholder)
	req.Equal("gpt-4.1-mini", chain.Params.Model)
	req.NotNil(chain.Params.Temperature)
	req.InDelta(0.5, *chain.Params.Temperature, 0.0001)
}

func Test_Configure_FallsBack_Without_Active_Config(t *testing.T) {
	req := require.New(t)
	svc, _ := newChatService(t, &fakeLLM{}, &memSignal{})

	chain := svc.Configure(context.Background(), "이영희")
	req.Equal("기본 프롬프트: 이영희님과 대화합니다.", chain.SystemPrompt)
	req.Equal("gpt-4.1", chain.Params.Model)
	req.NotNil(chain.Params.MaxTokens)
	req.Equal(1024, *chain.Params.MaxTokens)
}

func Test_Invoke_Streams_And_Returns_Full_Answer(t *testing.T) {
	req := require.New(t)
	client := &fakeLLM{chunks: []string{"괜찮으셨", "나요, ", "김철수님?"}}
	svc, _ := newChatService(t, client, &memSignal{})

	chain := svc.Configure(context.Background(), "김철수")
	history := []model.ChatMessage{
		{Role: model.RoleAssistant, Content: "안녕하세요."},
		{Role: model.RoleUser, Content: "잘 지냈어요."},
	}
	recorder := &frameRecorder{}

	answer := svc.Invoke(context.Background(), chain, history, "오늘은 좀 힘들어요.", recorder)
	req.Equal("괜찮으셨나요, 김철수님?", answer)
	req.Equal([]string{"괜찮으셨", "나요, ", "김철수님?"}, recorder.frames)

	// 请求序列为 system + 历史 + 本次输入
	req.Len(client.gotMessages, 4)
	req.Equal("system", client.gotMessages[0].Role)
	req.Equal("오늘은 좀 힘들어요.", client.gotMessages[3].Content)
}

func Test_Invoke_Degrades_To_Single_Apology(t *testing.T) {
	req := require.New(t)
	client := &fakeLLM{err: errors.New("upstream unavailable")}
	svc, _ := newChatService(t, client, &memSignal{})

	chain := svc.Configure(context.Background(), "김철수")
	recorder := &frameRecorder{}

	answer := svc.Invoke(context.Background(), chain, nil, "안녕하세요", recorder)
	req.Equal(ApologyMessage, answer)
	req.Len(recorder.frames, 1)
	req.Equal(ApologyMessage, recorder.frames[0])
	req.True(strings.HasPrefix(answer, "죄송합니다"))
}

func Test_Stale_Tracks_Config_Version(t *testing.T) {
	req := require.New(t)
	signal := &memSignal{}
	svc, _ := newChatService(t, &fakeLLM{}, signal)

	ctx := context.Background()
	chain := svc.Configure(ctx, "김철수")
	req.False(svc.Stale(ctx, chain))

	req.NoError(signal.Bump(ctx))
	req.True(svc.Stale(ctx, chain))

	rebuilt := svc.Configure(ctx, "김철수")
	req.False(svc.Stale(ctx, rebuilt))
}

func Test_Stale_Ignores_Signal_Outage(t *testing.T) {
	req := require.New(t)
	signal := &memSignal{}
	svc, _ := newChatService(t, &fakeLLM{}, signal)

	ctx := context.Background()
	chain := svc.Configure(ctx, "김철수")

	signal.fail = true
	req.False(svc.Stale(ctx, chain))
}
