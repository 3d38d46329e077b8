package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"jd-agent-go/internal/parser"
	"jd-agent-go/internal/tracing"
	"jd-agent-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// 各阶段的进度值
const (
	ProgressStart       = 10
	ProgressAnalyzing   = 20
	ProgressParsingBase = 30
	ProgressPerRecord   = 8
	ProgressParsingMax  = 79
	ProgressFormatting  = 80
	ProgressComplete    = 100
	ProgressError       = 0
)

// RunRequest 一次抽取运行的输入
type RunRequest struct {
	SessionID string
	JDText    string
}

// JDStreamProcessor 把模型的增量输出转换为进度事件流。
// 本身只持有不可变的依赖，可被多个请求并发共享；每次 Run 拥有独立的识别器、累加器和状态。
type JDStreamProcessor struct {
	streamer ChunkStreamer
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewJDStreamProcessor 创建一个新的 JDStreamProcessor 实例。
func NewJDStreamProcessor(streamer ChunkStreamer, options ...JDStreamOption) (*JDStreamProcessor, error) {
	if streamer == nil {
		return nil, fmt.Errorf("ChunkStreamer 不能为空")
	}

	p := &JDStreamProcessor{
		streamer: streamer,
		logger:   log.Logger,
		tracer:   tracing.Tracer(),
	}
	for _, option := range options {
		option(p)
	}
	return p, nil
}

// Run 执行一次抽取并把事件依次发送给 sink，成功时返回最终结果。
//
// 事件序列：progress(start) → progress(analyzing) → partial_result* → progress(formatting) → complete。
// 上游失败或内部panic时改为发送一个 error 事件后结束；complete 和 error 之后不会再有任何事件。
// ctx 超时按上游失败处理，发送 error 事件并返回 ErrUpstreamFailure；
// ctx 被取消时不再发送事件，直接返回 ctx.Err()；sink 返回错误时结束运行并返回该错误。
func (p *JDStreamProcessor) Run(ctx context.Context, req RunRequest, sink EventSink) (result types.JobRequirements, err error) {
	if strings.TrimSpace(req.JDText) == "" {
		return types.JobRequirements{}, newValidationError(req.SessionID)
	}

	ctx, span := p.tracer.Start(ctx, "JDStreamProcessor.Run",
		trace.WithAttributes(
			attribute.String("session.id", tracing.SafeAttributeValue("session.id", req.SessionID, tracing.MaxRedisLength)),
			attribute.String("jd.preview", tracing.SafeAttributeValue("jd.preview", req.JDText, tracing.MaxJDLength)),
			attribute.Int("jd.length", len(req.JDText)),
		))
	defer span.End()

	run := &streamRun{
		sessionID: req.SessionID,
		sink:      sink,
		logger:    p.logger.With().Str("session_id", req.SessionID).Logger(),
	}
	run.recognizer = parser.NewRecordRecognizer(parser.WithRecognizerLogger(run.logger))
	run.accumulator = parser.NewRequirementsAccumulator(parser.WithAccumulatorLogger(run.logger))

	defer func() {
		if rec := recover(); rec != nil {
			perr := newPanicError(req.SessionID, rec)
			run.logger.Error().Interface("panic", rec).Msg("抽取过程中发生panic")
			tracing.RecordError(span, perr, tracing.ErrorTypeInternal)
			result, err = types.JobRequirements{}, run.fail(ctx, perr)
		}
		stats := run.recognizer.Stats()
		span.SetAttributes(
			attribute.Int("records.emitted", stats.Emitted),
			attribute.Int("records.malformed", stats.Malformed),
			attribute.Int("records.unknown_section", stats.UnknownSections),
		)
		run.logger.Info().
			Int("emitted", stats.Emitted).
			Int("malformed", stats.Malformed).
			Int("unknown_sections", stats.UnknownSections).
			Int("ignored_lines", stats.IgnoredLines).
			Int("discarded_on_flush", stats.DiscardedOnFlush).
			Str("final_step", string(run.step)).
			Msg("岗位描述抽取运行结束")
	}()

	result, err = p.execute(ctx, req, run)
	if errors.Is(err, context.DeadlineExceeded) && !run.terminated {
		// 超时按上游失败处理，仍需发送 error 事件
		err = run.fail(context.WithoutCancel(ctx), newTimeoutError(req.SessionID, err))
	}
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			tracing.RecordError(span, err, tracing.ErrorTypeTimeout)
		case errors.Is(err, ErrUpstreamFailure):
			tracing.RecordError(span, err, tracing.ErrorTypeUpstream)
		case errors.Is(err, ErrSinkFailure):
			tracing.RecordError(span, err, tracing.ErrorTypeClientGone)
		}
	}
	return result, err
}

func (p *JDStreamProcessor) execute(ctx context.Context, req RunRequest, run *streamRun) (types.JobRequirements, error) {
	if err := run.progress(ctx, types.StepStart, "Starting job description processing", ProgressStart); err != nil {
		return types.JobRequirements{}, err
	}

	src, err := p.streamer.StreamChunks(ctx, req.JDText)
	if err != nil {
		if ctx.Err() != nil {
			return types.JobRequirements{}, ctx.Err()
		}
		return types.JobRequirements{}, run.fail(ctx, newOpenError(req.SessionID, err))
	}
	defer src.Close()

	if err := run.progress(ctx, types.StepAnalyzing, "Analyzing job description...", ProgressAnalyzing); err != nil {
		return types.JobRequirements{}, err
	}

	for {
		if ctx.Err() != nil {
			return types.JobRequirements{}, ctx.Err()
		}

		chunk, err := src.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return types.JobRequirements{}, ctx.Err()
			}
			return types.JobRequirements{}, run.fail(ctx, newRecvError(req.SessionID, err))
		}

		for _, rec := range run.recognizer.Feed(chunk) {
			if !run.accumulator.Merge(rec) {
				continue
			}
			if err := run.partial(ctx, rec.Section); err != nil {
				return types.JobRequirements{}, err
			}
		}
	}
	run.recognizer.Flush()

	if err := run.progress(ctx, types.StepFormatting, "Formatting final results...", ProgressFormatting); err != nil {
		return types.JobRequirements{}, err
	}

	final := run.accumulator.Snapshot()
	if err := run.complete(ctx, final); err != nil {
		return types.JobRequirements{}, err
	}
	return final, nil
}

// streamRun 单次运行的状态机，只在一个 goroutine 中使用
type streamRun struct {
	sessionID   string
	sink        EventSink
	recognizer  *parser.RecordRecognizer
	accumulator *parser.RequirementsAccumulator
	logger      zerolog.Logger

	step       types.Step
	lastValue  int
	terminated bool
}

func (r *streamRun) progress(ctx context.Context, step types.Step, message string, value int) error {
	return r.emit(ctx, types.EventProgress, types.EventData{
		Step:     step,
		Message:  message,
		Progress: value,
	})
}

func (r *streamRun) partial(ctx context.Context, section types.Section) error {
	value := ProgressParsingBase + ProgressPerRecord*r.accumulator.Merged()
	if value > ProgressParsingMax {
		value = ProgressParsingMax
	}
	snapshot := r.accumulator.Snapshot()
	return r.emit(ctx, types.EventPartialResult, types.EventData{
		Step:     types.StepParsing,
		Message:  fmt.Sprintf("Completed analysis of %s", section),
		Progress: value,
		Section:  section,
		Result:   &snapshot,
	})
}

func (r *streamRun) complete(ctx context.Context, final types.JobRequirements) error {
	return r.emit(ctx, types.EventComplete, types.EventData{
		Step:     types.StepComplete,
		Message:  "Job requirements extraction completed",
		Progress: ProgressComplete,
		Result:   &final,
	})
}

// fail 发送唯一的 error 事件并返回 cause；ctx 已结束时只返回 ctx.Err()
func (r *streamRun) fail(ctx context.Context, cause *StreamError) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.logger.Error().Err(cause).Str("op", cause.Op).Msg("岗位描述抽取失败")

	message := "Processing failed"
	if cause.Cause != nil {
		message = fmt.Sprintf("Processing failed: %s", tracing.TruncateString(cause.Cause.Error(), tracing.DefaultMaxLength))
	}
	if err := r.emit(ctx, types.EventError, types.EventData{
		Step:     types.StepError,
		Message:  message,
		Progress: ProgressError,
		Error:    true,
	}); err != nil {
		return err
	}
	return cause
}

// emit 所有事件的唯一出口：终止后静默丢弃，进度在非 error 事件间单调不减
func (r *streamRun) emit(ctx context.Context, kind types.EventKind, data types.EventData) error {
	if r.terminated {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if kind != types.EventError && data.Progress < r.lastValue {
		data.Progress = r.lastValue
	}
	data.SessionID = r.sessionID
	if kind.IsTerminal() {
		r.terminated = true
	}
	r.step = data.Step
	if kind != types.EventError {
		r.lastValue = data.Progress
	}

	if err := r.sink.Emit(ctx, types.Event{Kind: kind, Data: data}); err != nil {
		r.terminated = true
		r.logger.Warn().Err(err).Str("event", string(kind)).Msg("事件发送失败，结束本次运行")
		return newSinkError(r.sessionID, err)
	}
	return nil
}
