package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/postback-relay/internal/models"

	"github.com/shopspring/decimal"
)

// PostbackParams 入站回调参数（扁平字符串映射）
// 合并顺序：先查询串，再请求体；同名参数以请求体为准
type PostbackParams map[string]string

// NewPostbackParams 由查询串创建参数集合，同名参数取第一个值
func NewPostbackParams(query url.Values) PostbackParams {
	params := make(PostbackParams, len(query))
	params.mergeValues(query)
	return params
}

// Get 读取参数并去除首尾空白；key 为空时返回空串
func (p PostbackParams) Get(key string) string {
	if p == nil || key == "" {
		return ""
	}
	return strings.TrimSpace(p[key])
}

// MergeBody 合并请求体参数（JSON 对象或表单），解析失败时不贡献任何参数
func (p PostbackParams) MergeBody(contentType string, body []byte) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	if isJSONBody(contentType, body) {
		values, err := parseJSONBody(body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		for key, value := range values {
			p[key] = value
		}
		return nil
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	overlay := make(PostbackParams, len(values))
	overlay.mergeValues(values)
	for key, value := range overlay {
		p[key] = value
	}
	return nil
}

// ToJSON 转换为审计日志字段
func (p PostbackParams) ToJSON() models.JSON {
	raw := make(models.JSON, len(p))
	for key, value := range p {
		raw[key] = value
	}
	return raw
}

func (p PostbackParams) mergeValues(values url.Values) {
	for key, items := range values {
		if len(items) == 0 {
			continue
		}
		p[key] = items[0]
	}
}

func isJSONBody(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	return len(body) > 0 && body[0] == '{'
}

func parseJSONBody(body []byte) (map[string]string, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var payload map[string]interface{}
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("json body is not an object")
	}
	values := make(map[string]string, len(payload))
	for key, value := range payload {
		values[key] = stringifyJSONValue(value)
	}
	return values, nil
}

// stringifyJSONValue 将 JSON 值转为字符串：数字不使用科学计数法，对象与数组保留 JSON 编码
func stringifyJSONValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d.String()
		}
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
