package ticket

import "errors"

// 定义基础错误类型
var (
	// ErrNoRequirement 工单目录中找不到任何需求数据
	ErrNoRequirement = errors.New("工单目录中未找到需求数据")
	// ErrNoResumes 工单目录中没有候选人文档
	ErrNoResumes = errors.New("工单目录中未找到候选人文档")
	// ErrTicketLocked 工单已定稿，拒绝再次评分
	ErrTicketLocked = errors.New("工单已定稿，不可重新评分")
	// ErrUnreadableResume 候选人文档无法解码为文本
	ErrUnreadableResume = errors.New("候选人文档无法解码为文本")
)
