package node

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyOutput 模型输出为空
var ErrEmptyOutput = errors.New("empty model output")

// StripCodeFence 去掉模型常见的 ```json 包裹，不做其它截取
func StripCodeFence(s string) string {
	raw := strings.TrimSpace(s)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```")
	if nl := strings.IndexByte(raw, '\n'); nl >= 0 {
		// 语言标记，如 json
		if !strings.ContainsAny(raw[:nl], "{[") {
			raw = raw[nl+1:]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

// DecodeStrictJSON 将模型输出解析为单个 JSON 对象：拒绝未知字段与尾随内容
func DecodeStrictJSON(s string, out any) error {
	raw := StripCodeFence(s)
	if raw == "" {
		return ErrEmptyOutput
	}
	if !strings.HasPrefix(raw, "{") {
		return fmt.Errorf("expected a JSON object, got %q", TruncateByRunes(raw, 80))
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode JSON object: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected trailing content after JSON object")
	}
	return nil
}
