package handler

import (
	"errors"
	"fmt"
	"testing"

	"jd-agent-go/internal/processor"
	"jd-agent-go/internal/tracing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypeOf(t *testing.T) {
	assert.Equal(t, tracing.ErrorTypeValidation, errorTypeOf(processor.ErrEmptyInput))
	assert.Equal(t, tracing.ErrorTypeValidation, errorTypeOf(fmt.Errorf("bind: %w", processor.ErrEmptyInput)))
	assert.Equal(t, tracing.ErrorTypeHTTP, errorTypeOf(errors.New("invalid character")))
}
