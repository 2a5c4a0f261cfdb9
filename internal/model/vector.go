package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Vector embedding 向量，数据库中存为 JSON 文本
type Vector []float64

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]float64(v))
	if err != nil {
		return nil, fmt.Errorf("序列化向量失败: %w", err)
	}
	return string(b), nil
}

// Scan 解析失败时返回空向量而不是报错：坏数据只会让该条记录不参与检索
func (v *Vector) Scan(src interface{}) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		return fmt.Errorf("不支持的向量类型: %T", src)
	}
	var out []float64
	if err := json.Unmarshal(raw, &out); err != nil {
		*v = nil
		return nil
	}
	*v = out
	return nil
}
