package processor

import (
	"context"
	"errors"
	"testing"

	"jd-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	scenario types.Scenario
	err      error
	calls    int
	inputs   []string
}

func (s *stubClassifier) Classify(ctx context.Context, input string) (types.Scenario, error) {
	s.calls++
	s.inputs = append(s.inputs, input)
	return s.scenario, s.err
}

type stubQuestionGenerator struct {
	set     *types.QuestionSet
	err     error
	calls   int
	current *types.JobRequirements
}

func (s *stubQuestionGenerator) GenerateQuestions(ctx context.Context, current *types.JobRequirements) (*types.QuestionSet, error) {
	s.calls++
	s.current = current
	return s.set, s.err
}

func newTestRouter(t *testing.T, c ScenarioClassifier, q QuestionGenerator, opts ...RouterOption) *ScenarioRouter {
	t.Helper()
	r, err := NewScenarioRouter(c, q, opts...)
	require.NoError(t, err)
	return r
}

func TestScenarioRouter_DetailedJD(t *testing.T) {
	classifier := &stubClassifier{scenario: types.ScenarioDetailedJD}
	questions := &stubQuestionGenerator{}
	r := newTestRouter(t, classifier, questions)

	result, err := r.Route(context.Background(), "Senior Go engineer with Kubernetes")

	require.NoError(t, err)
	assert.Equal(t, types.ScenarioDetailedJD, result.Scenario)
	assert.Equal(t, "Senior Go engineer with Kubernetes", result.JDText)
	assert.Nil(t, result.Questions)
	assert.Equal(t, 0, questions.calls, "详细岗位描述不应生成追问问题")
	assert.Equal(t, 1, classifier.calls)
}

func TestScenarioRouter_NeedConversation(t *testing.T) {
	set := &types.QuestionSet{QuestionsWithOptions: []types.Question{{Question: "Which team?"}}}
	questions := &stubQuestionGenerator{set: set}
	r := newTestRouter(t, &stubClassifier{scenario: types.ScenarioNeedConversation}, questions)

	current := types.NewJobRequirements()
	current.Title = "Engineer"
	result, err := r.RouteWithContext(context.Background(), "hire an engineer", &current)

	require.NoError(t, err)
	assert.Equal(t, types.ScenarioNeedConversation, result.Scenario)
	assert.Same(t, set, result.Questions)
	assert.Empty(t, result.JDText)
	assert.Same(t, &current, questions.current)
}

func TestScenarioRouter_UnknownSignalMeansConversation(t *testing.T) {
	questions := &stubQuestionGenerator{set: &types.QuestionSet{}}
	r := newTestRouter(t, &stubClassifier{scenario: "maybe"}, questions)

	result, err := r.Route(context.Background(), "x")

	require.NoError(t, err)
	assert.Equal(t, types.ScenarioNeedConversation, result.Scenario)
	assert.Equal(t, 1, questions.calls)
}

func TestScenarioRouter_ClassifyErrorNotRetried(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("model unavailable")}
	questions := &stubQuestionGenerator{}
	r := newTestRouter(t, classifier, questions)

	_, err := r.Route(context.Background(), "x")

	assert.ErrorIs(t, err, ErrClassifyFailed)
	assert.Equal(t, 1, classifier.calls)
	assert.Equal(t, 0, questions.calls)
}

func TestScenarioRouter_QuestionsError(t *testing.T) {
	r := newTestRouter(t,
		&stubClassifier{scenario: types.ScenarioNeedConversation},
		&stubQuestionGenerator{err: errors.New("boom")})

	_, err := r.Route(context.Background(), "x")

	assert.ErrorIs(t, err, ErrQuestionsFailed)
}

func TestScenarioRouter_ForcedScenarioSkipsClassifier(t *testing.T) {
	classifier := &stubClassifier{scenario: types.ScenarioNeedConversation}
	r := newTestRouter(t, classifier, &stubQuestionGenerator{}, WithForcedScenario(types.ScenarioDetailedJD))

	result, err := r.Route(context.Background(), "short")

	require.NoError(t, err)
	assert.Equal(t, types.ScenarioDetailedJD, result.Scenario)
	assert.Equal(t, 0, classifier.calls)
}

func TestScenarioRouter_NoStateAcrossCalls(t *testing.T) {
	classifier := &stubClassifier{scenario: types.ScenarioDetailedJD}
	r := newTestRouter(t, classifier, &stubQuestionGenerator{set: &types.QuestionSet{}})

	first, err := r.Route(context.Background(), "first")
	require.NoError(t, err)
	classifier.scenario = types.ScenarioNeedConversation
	second, err := r.Route(context.Background(), "second")
	require.NoError(t, err)

	assert.Equal(t, types.ScenarioDetailedJD, first.Scenario)
	assert.Equal(t, types.ScenarioNeedConversation, second.Scenario)
	assert.Equal(t, []string{"first", "second"}, classifier.inputs)
}

func TestNewScenarioRouter_RequiresCollaborators(t *testing.T) {
	_, err := NewScenarioRouter(nil, &stubQuestionGenerator{})
	assert.Error(t, err)
	_, err = NewScenarioRouter(&stubClassifier{}, nil)
	assert.Error(t, err)
}
