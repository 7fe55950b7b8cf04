package graph

import "fmt"

// 失败步骤名
const (
	StepInput           = "input"
	StepRoute           = "route"
	StepGradeGeneration = "grade_generation"
)

// RunError 致命错误：携带问题、失败步骤与原因，不返回部分回答
type RunError struct {
	RunID    string
	Question string
	Step     string
	Err      error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("workflow run failed at %s (question %q): %v", e.Step, e.Question, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
