package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrEmptyInput      = errors.New("岗位描述不能为空")
	ErrUpstreamFailure = errors.New("模型输出流失败")
	ErrInternalFailure = errors.New("处理过程中发生内部错误")
	ErrSinkFailure     = errors.New("事件发送失败")
	ErrClassifyFailed  = errors.New("场景判断失败")
	ErrQuestionsFailed = errors.New("生成追问问题失败")
)

// StreamError 包含详细错误信息的自定义错误
type StreamError struct {
	SessionID string
	Op        string
	BaseErr   error
	Cause     error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (操作:%s, 会话:%s): %v", e.BaseErr, e.Op, e.SessionID, e.Cause)
	}
	return fmt.Sprintf("%s (操作:%s, 会话:%s)", e.BaseErr, e.Op, e.SessionID)
}

// Unwrap 同时暴露基础错误和底层原因
func (e *StreamError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BaseErr != nil {
		errs = append(errs, e.BaseErr)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *StreamError) Is(target error) bool {
	return e.BaseErr == target
}

// 错误构造函数
func newValidationError(sessionID string) error {
	return &StreamError{SessionID: sessionID, Op: "validate", BaseErr: ErrEmptyInput}
}

func newOpenError(sessionID string, cause error) *StreamError {
	return &StreamError{SessionID: sessionID, Op: "open", BaseErr: ErrUpstreamFailure, Cause: cause}
}

func newRecvError(sessionID string, cause error) *StreamError {
	return &StreamError{SessionID: sessionID, Op: "recv", BaseErr: ErrUpstreamFailure, Cause: cause}
}

func newTimeoutError(sessionID string, cause error) *StreamError {
	return &StreamError{SessionID: sessionID, Op: "timeout", BaseErr: ErrUpstreamFailure, Cause: cause}
}

func newPanicError(sessionID string, recovered interface{}) *StreamError {
	return &StreamError{SessionID: sessionID, Op: "process", BaseErr: ErrInternalFailure, Cause: fmt.Errorf("panic: %v", recovered)}
}

func newSinkError(sessionID string, cause error) *StreamError {
	return &StreamError{SessionID: sessionID, Op: "emit", BaseErr: ErrSinkFailure, Cause: cause}
}
