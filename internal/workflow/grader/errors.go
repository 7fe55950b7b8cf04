package grader

import (
	"errors"
	"fmt"
)

// ErrGenerationFormat 模型结构化输出不符合约定的取值范围
var ErrGenerationFormat = errors.New("generation format error")

// GenerationFormatError 某个判定调用返回了不合法的结构化输出；不会重试
type GenerationFormatError struct {
	Verdict string
	Raw     string
	Err     error
}

func (e *GenerationFormatError) Error() string {
	return fmt.Sprintf("%s verdict: malformed model output: %v", e.Verdict, e.Err)
}

func (e *GenerationFormatError) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrGenerationFormat) 成立
func (e *GenerationFormatError) Is(target error) bool {
	return target == ErrGenerationFormat
}

func formatError(verdict, raw string, err error) error {
	return &GenerationFormatError{Verdict: verdict, Raw: raw, Err: err}
}
