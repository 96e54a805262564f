package json

import (
	stdjson "encoding/json"

	jsoniter "github.com/json-iterator/go"
)

// JSON 统一的 jsoniter 配置实例
// 使用 ConfigCompatibleWithStandardLibrary 确保与标准库完全兼容
// 同时获得更高的性能（比标准库快 2-3 倍）
//
// 所有 jxt-cqrs 组件都应该使用这个统一的配置，包括：
// - cqrs: Metadata / CommandState / EventState 序列化
// - eventbus: 消息字节的编解码
// - store: 快照与事件记录的持久化形式
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONFast 高性能 jsoniter 配置实例
// 使用 ConfigFastest 获得最高性能，但可能在某些边缘情况下与标准库不完全兼容
// 适用于性能敏感的场景
var JSONFast = jsoniter.ConfigFastest

// Marshal 序列化对象为 JSON 字节数组
// 兼容标准库 json.Marshal 接口
func Marshal(v interface{}) ([]byte, error) {
	return JSON.Marshal(v)
}

// Unmarshal 从 JSON 字节数组反序列化对象
// 兼容标准库 json.Unmarshal 接口
func Unmarshal(data []byte, v interface{}) error {
	return JSON.Unmarshal(data, v)
}

// MarshalToString 将对象序列化为 JSON 字符串
// 使用 jsoniter 的高性能 API，避免字节数组到字符串的转换
func MarshalToString(v interface{}) (string, error) {
	return JSON.MarshalToString(v)
}

// UnmarshalFromString 从 JSON 字符串反序列化对象
func UnmarshalFromString(str string, v interface{}) error {
	return JSON.UnmarshalFromString(str, v)
}

// RawMessage 延迟解析/透传 JSON 数据的载体类型
// 取标准库别名：标准库编解码（如 gin 绑定）按原样透传 JSON 对象，
// 而不是把裸字节切片按 base64 字符串处理；jsoniter 的兼容配置对其处理一致
type RawMessage = stdjson.RawMessage
