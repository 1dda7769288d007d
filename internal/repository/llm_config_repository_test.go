package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"maum-talk-go/internal/model"
)

func seedActiveConfig(t *testing.T, repo LLMConfigRepository) *model.LLMConfig {
	t.Helper()
	cfg := &model.LLMConfig{
		Name:         "default",
		SystemPrompt: "당신은 따뜻한 상담 에이전트입니다.",
		Model:        "gpt-4.1",
		Temperature:  0.7,
		MaxTokens:    1024,
		TopP:         0.95,
		IsActive:     true,
	}
	require.NoError(t, repo.Create(cfg))
	return cfg
}

func Test_LLMConfig_FindActive(t *testing.T) {
	req := require.New(t)
	repo := NewLLMConfigRepository(openTestDB(t))

	_, err := repo.FindActive()
	req.ErrorIs(err, gorm.ErrRecordNotFound)

	seedActiveConfig(t, repo)

	active, err := repo.FindActive()
	req.NoError(err)
	req.Equal("default", active.Name)
	req.True(active.IsActive)
}

func Test_LLMConfig_UpdateActive_KeepsSnapshot(t *testing.T) {
	req := require.New(t)
	repo := NewLLMConfigRepository(openTestDB(t))
	seedActiveConfig(t, repo)

	modified, err := repo.UpdateActive(map[string]interface{}{
		"system_prompt": "새로운 프롬프트",
		"temperature":   0.4,
	})
	req.NoError(err)
	req.True(modified)

	active, err := repo.FindActive()
	req.NoError(err)
	req.Equal("새로운 프롬프트", active.SystemPrompt)
	req.InDelta(0.4, active.Temperature, 0.0001)

	// 编辑前的内容保留为非激活快照
	all, err := repo.FindAllDesc()
	req.NoError(err)
	req.Len(all, 2)
	var snapshots int
	for _, c := range all {
		if !c.IsActive {
			snapshots++
			req.Equal("당신은 따뜻한 상담 에이전트입니다.", c.SystemPrompt)
		}
	}
	req.Equal(1, snapshots)
}

func Test_LLMConfig_UpdateActive_NoChange(t *testing.T) {
	req := require.New(t)
	repo := NewLLMConfigRepository(openTestDB(t))
	seedActiveConfig(t, repo)

	modified, err := repo.UpdateActive(map[string]interface{}{
		"system_prompt": "당신은 따뜻한 상담 에이전트입니다.",
	})
	req.NoError(err)
	req.False(modified)
}
