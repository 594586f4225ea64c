package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"resume-screener-go/internal/types"
)

// FileRecordStore 基于单个JSON文件的处理记录存储，默认后端。
// 文件不存在或损坏时按空记录集处理，每次变更整体重写。
type FileRecordStore struct {
	trackingFile string
	records      map[string]*types.ProcessingRecord
}

// NewFileRecordStore 创建文件型处理记录存储并加载已有数据
func NewFileRecordStore(trackingFile string) (*FileRecordStore, error) {
	if trackingFile == "" {
		return nil, fmt.Errorf("处理记录文件路径不能为空")
	}
	s := &FileRecordStore{
		trackingFile: trackingFile,
		records:      make(map[string]*types.ProcessingRecord),
	}
	s.load()
	return s, nil
}

// load 读取记录文件；读取或解析失败时保持空记录集而不报错
func (s *FileRecordStore) load() {
	data, err := os.ReadFile(s.trackingFile)
	if err != nil {
		return
	}
	var records map[string]*types.ProcessingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return
	}
	if records != nil {
		s.records = records
	}
}

// save 整体写回记录文件，父目录不存在时先创建
func (s *FileRecordStore) save() error {
	if dir := filepath.Dir(s.trackingFile); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建处理记录目录失败: %w", err)
		}
	}
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化处理记录失败: %w", err)
	}
	if err := os.WriteFile(s.trackingFile, data, 0o644); err != nil {
		return fmt.Errorf("写入处理记录文件失败: %w", err)
	}
	return nil
}

// Get 读取工单处理记录
func (s *FileRecordStore) Get(_ context.Context, ticketID string) (*types.ProcessingRecord, error) {
	record, ok := s.records[ticketID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

// Put 写入（覆盖）工单处理记录并立即持久化
func (s *FileRecordStore) Put(_ context.Context, record *types.ProcessingRecord) error {
	if record == nil || record.TicketID == "" {
		return fmt.Errorf("处理记录缺少工单ID")
	}
	clone := *record
	s.records[record.TicketID] = &clone
	return s.save()
}

// Delete 删除单个工单的处理记录
func (s *FileRecordStore) Delete(_ context.Context, ticketID string) (bool, error) {
	if _, ok := s.records[ticketID]; !ok {
		return false, nil
	}
	delete(s.records, ticketID)
	return true, s.save()
}

// DeleteAll 清空全部处理记录
func (s *FileRecordStore) DeleteAll(_ context.Context) error {
	s.records = make(map[string]*types.ProcessingRecord)
	return s.save()
}

// List 按工单ID排序列出全部处理记录
func (s *FileRecordStore) List(_ context.Context) ([]types.ProcessingRecord, error) {
	out := make([]types.ProcessingRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, *record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID < out[j].TicketID })
	return out, nil
}
