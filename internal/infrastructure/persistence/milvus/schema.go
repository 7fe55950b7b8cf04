// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionPassages 知识库片段集合
	CollectionPassages = "rag_chroma"

	// DefaultVectorDimension text-embedding-3-small 的向量维度
	DefaultVectorDimension = 1536

	maxTextLength = 65535
)

// 字段名
const (
	FieldID         = "id"
	FieldVector     = "vector"
	FieldSource     = "source"
	FieldTitle      = "title"
	FieldChunkIndex = "chunk_index"
	FieldText       = "text_content"
)

// PassagesSchema 知识库片段 Collection Schema
func PassagesSchema(name string, dim int) *entity.Schema {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &entity.Schema{
		CollectionName: name,
		Description:    "Knowledge base passages for retrieval-augmented answering",
		Fields: []*entity.Field{
			{
				Name:       FieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     FieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     FieldSource,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     FieldTitle,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     FieldChunkIndex,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     FieldText,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": strconv.Itoa(maxTextLength),
				},
			},
		},
	}
}

// Passage 片段数据结构
type Passage struct {
	ID          string    `json:"id"`
	Vector      []float32 `json:"vector"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	ChunkIndex  int64     `json:"chunk_index"`
	TextContent string    `json:"text_content"`
}

// truncateBytes 按字节截断到 Milvus VarChar 上限，保证不切断 UTF-8 字符
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}
