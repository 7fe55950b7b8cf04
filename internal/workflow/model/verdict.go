package model

// RouteVerdict 路由判定
type RouteVerdict string

const (
	RouteVectorstore RouteVerdict = "vectorstore"
	RouteWebsearch   RouteVerdict = "websearch"
)

// Valid 是否为允许的取值
func (v RouteVerdict) Valid() bool {
	return v == RouteVectorstore || v == RouteWebsearch
}

// RelevanceVerdict 单个片段的相关性判定
type RelevanceVerdict string

const (
	RelevanceYes RelevanceVerdict = "yes"
	RelevanceNo  RelevanceVerdict = "no"
)

// Valid 是否为允许的取值
func (v RelevanceVerdict) Valid() bool {
	return v == RelevanceYes || v == RelevanceNo
}

// GroundednessVerdict 回答是否被上下文支撑
type GroundednessVerdict bool

// UsefulnessVerdict 回答是否解决了问题
type UsefulnessVerdict bool

// GenerationGrade 生成结果的复合检查结论
type GenerationGrade string

const (
	GradeUseful       GenerationGrade = "useful"
	GradeNotUseful    GenerationGrade = "not_useful"
	GradeNotSupported GenerationGrade = "not_supported"
)

// Outcome 运行的终态
type Outcome string

const (
	OutcomeUseful    Outcome = "useful"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFailed    Outcome = "failed"
)
