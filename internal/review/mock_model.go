package review

import (
	"context"
	"sync/atomic"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockChatModel 复核用的模拟聊天模型。
// 未接入真实LLM服务时作为回退，也用于测试。
type MockChatModel struct {
	// Response 预设的模拟响应内容，为空时返回一个合法的空复核JSON
	Response string
	// Err 预设的错误，非nil时Generate直接返回该错误
	Err error
	// CallCount 记录调用次数
	CallCount int64
}

var _ model.ToolCallingChatModel = (*MockChatModel)(nil)

// Generate 实现 model.ChatModel 接口
func (m *MockChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	atomic.AddInt64(&m.CallCount, 1)
	if m.Err != nil {
		return nil, m.Err
	}
	content := m.Response
	if content == "" {
		content = `{"overall_comment": "自动复核暂不可用，名单以确定性评分为准。", "candidate_notes": []}`
	}
	return &schema.Message{
		Role:    schema.Assistant,
		Content: content,
	}, nil
}

// Stream 实现 model.ChatModel 接口，复核流程不使用流式响应
func (m *MockChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, messages, options...)
	if err != nil {
		return nil, err
	}
	sr, sw := schema.Pipe[*schema.Message](1)
	sw.Send(msg, nil)
	sw.Close()
	return sr, nil
}

// WithTools 实现 model.ToolCallingChatModel 接口，复核不绑定工具
func (m *MockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}
