package eventbus

import (
	"errors"
	"fmt"
	"strings"
)

// Topic 按 {busName}-{category} 约定构造主题名
// category 通常是聚合名（事件流）或消息类别（通知流）
func Topic(busName, category string) string {
	return busName + "-" + category
}

// ValidateTopicName 校验主题名称
// 允许的字符：A-Z a-z 0-9 . _ -
func ValidateTopicName(topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("topic cannot be empty")
	}
	if len(topic) > 249 {
		return errors.New("topic too long (max 249 characters)")
	}
	if topic == "." || topic == ".." {
		return errors.New("topic cannot be . or ..")
	}
	for _, r := range topic {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return fmt.Errorf("topic contains invalid character: %c", r)
		}
	}
	return nil
}
