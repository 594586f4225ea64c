package tracker

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"resume-screener-go/internal/ticket"
)

// ComputeDigest 计算工单内容摘要，用于变更检测。
// 摘要覆盖：权威需求文件的全文 + 候选人文档文件名的有序列表。
// 候选人文档只取文件名不取内容——原地修改文档内容而不改名不会被检测到，
// 这是与历史行为保持兼容的已知盲区。
// 摘要是稳定性优先的非加密指纹，不承担任何安全职责。
func ComputeDigest(ticketFolder string) (string, error) {
	var content strings.Builder

	if srcFile, ok := ticket.AuthoritativeRequirementFile(ticketFolder); ok {
		data, err := os.ReadFile(srcFile)
		if err != nil {
			return "", fmt.Errorf("读取需求源文件失败: %w", err)
		}
		content.Write(data)
	}

	names, err := ticket.ListResumeFiles(ticketFolder)
	if err != nil {
		return "", err
	}
	content.WriteString(strings.Join(names, ","))

	sum := md5.Sum([]byte(content.String()))
	return hex.EncodeToString(sum[:]), nil
}
