package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnwithavi-server/models"
)

// Phase is the session's position in the quiz flow.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseLoading  Phase = "loading"
	PhaseQuestion Phase = "question"
	PhaseFeedback Phase = "feedback"
	PhaseComplete Phase = "complete"
)

// SessionState is the complete, serializable session snapshot. It is owned
// by exactly one learner session and mutated only through Session transitions.
type SessionState struct {
	VideoID      string                `json:"videoId"`
	ChapterID    string                `json:"chapterId,omitempty"`
	Language     string                `json:"language"`
	Phase        Phase                 `json:"phase"`
	CurrentBloom int                   `json:"currentBloom"`
	Questions    []models.QuizQuestion `json:"questions"`
	CurrentIndex int                   `json:"currentIndex"`
	Answers      []models.AnswerRecord `json:"answers"`
	TopicMastery map[string]float64    `json:"topicMastery"`
	// Streak counts consecutive correct answers since the last miss; it is
	// the learner-visible run and feeds BestStreak. LevelStreak is the
	// promotion-tracking counter, which also resets when a promotion lands.
	Streak      int `json:"streak"`
	BestStreak  int `json:"bestStreak"`
	LevelStreak int `json:"levelStreak"`
	// Ids and texts of every question shown in this session, including
	// earlier runs after a restart; generation requests carry them so a
	// continued session never repeats a question.
	SeenIDs   []string `json:"seenIds"`
	SeenTexts []string `json:"seenTexts"`
	// LastError holds the user-safe message of the most recent failed
	// generation call; cleared on the next successful load.
	LastError string `json:"lastError,omitempty"`
}

// BatchGenerator is what the session needs from the question generator.
type BatchGenerator interface {
	Generate(ctx context.Context, req models.GenerateQuizRequest) ([]models.QuizQuestion, error)
}

// SessionConfig fixes a session's scope and policy at creation time.
type SessionConfig struct {
	VideoID    string
	ChapterID  string
	Language   string
	StartBloom int
	// BatchSize is the question count per generation call, including refills.
	BatchSize int
	// QuestionCap bounds the total questions a session may hold.
	QuestionCap int
	Adaptive    AdaptiveConfig
}

// Session drives the idle → loading → question → feedback → complete state
// machine. It is single-owner: one learner interacts sequentially, so there
// is no internal locking; the only suspension point is the generation call
// during loading, and a second load attempt while one is outstanding is
// rejected.
type Session struct {
	gen      BatchGenerator
	cfg      SessionConfig
	state    SessionState
	inFlight bool
	now      func() time.Time
}

func NewSession(gen BatchGenerator, cfg SessionConfig) *Session {
	if cfg.Language == "" {
		cfg.Language = models.LanguageHebrew
	}
	if cfg.StartBloom == 0 {
		cfg.StartBloom = MinBloomLevel
	}
	cfg.StartBloom = ClampBloomLevel(cfg.StartBloom)
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 3
	}
	if cfg.QuestionCap < cfg.BatchSize {
		cfg.QuestionCap = cfg.BatchSize
	}
	cfg.Adaptive = cfg.Adaptive.normalized()

	s := &Session{
		gen: gen,
		cfg: cfg,
		now: time.Now,
	}
	s.state = s.initialState()
	return s
}

func (s *Session) initialState() SessionState {
	return SessionState{
		VideoID:      s.cfg.VideoID,
		ChapterID:    s.cfg.ChapterID,
		Language:     s.cfg.Language,
		Phase:        PhaseIdle,
		CurrentBloom: s.cfg.StartBloom,
		TopicMastery: map[string]float64{},
	}
}

// State returns a snapshot the caller may serialize or render. Slices and
// the mastery map are copied so the owned state cannot be mutated from
// outside a transition.
func (s *Session) State() SessionState {
	st := s.state
	st.Questions = append([]models.QuizQuestion(nil), s.state.Questions...)
	st.Answers = append([]models.AnswerRecord(nil), s.state.Answers...)
	st.SeenIDs = append([]string(nil), s.state.SeenIDs...)
	st.SeenTexts = append([]string(nil), s.state.SeenTexts...)
	st.TopicMastery = make(map[string]float64, len(s.state.TopicMastery))
	for t, v := range s.state.TopicMastery {
		st.TopicMastery[t] = v
	}
	return st
}

// CurrentQuestion returns the question on display in the question and
// feedback phases.
func (s *Session) CurrentQuestion() (models.QuizQuestion, bool) {
	if s.state.Phase != PhaseQuestion && s.state.Phase != PhaseFeedback {
		return models.QuizQuestion{}, false
	}
	return s.state.Questions[s.state.CurrentIndex], true
}

// StartQuiz begins (or restarts after complete) a quiz run. Prior answers
// are cleared; Bloom level, topic mastery, best streak and the exclusion set
// carry over so continued practice never repeats a question. On failure the
// session returns to idle with a user-safe message in LastError and the
// learner can simply retry.
func (s *Session) StartQuiz(ctx context.Context) error {
	switch s.state.Phase {
	case PhaseIdle, PhaseComplete:
	case PhaseLoading:
		return ErrGenerationInFlight
	default:
		return &TransitionError{Phase: s.state.Phase, Event: "startQuiz"}
	}

	s.state.Questions = nil
	s.state.Answers = nil
	s.state.CurrentIndex = 0
	s.state.Streak = 0
	s.state.LevelStreak = 0

	batch, err := s.load(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	s.state.Questions = batch
	s.state.Phase = PhaseQuestion
	return nil
}

// SubmitAnswer grades the chosen option, appends the answer record, applies
// the adaptive policy and moves to feedback. An unknown option id is
// rejected without a state transition.
func (s *Session) SubmitAnswer(optionID string) (models.AnswerRecord, error) {
	if s.state.Phase != PhaseQuestion {
		return models.AnswerRecord{}, &TransitionError{Phase: s.state.Phase, Event: "submitAnswer"}
	}
	q := s.state.Questions[s.state.CurrentIndex]
	if !hasOption(q, optionID) {
		return models.AnswerRecord{}, fmt.Errorf("unknown option id %q for question %s", optionID, q.ID)
	}

	isCorrect := optionID == q.CorrectAnswer
	record := models.AnswerRecord{
		QuestionID: q.ID,
		Answer:     optionID,
		IsCorrect:  isCorrect,
		BloomLevel: q.BloomLevel,
		Topic:      q.Topic,
		Timestamp:  s.now(),
	}
	s.state.Answers = append(s.state.Answers, record)

	if isCorrect {
		s.state.Streak++
		if s.state.Streak > s.state.BestStreak {
			s.state.BestStreak = s.state.Streak
		}
	} else {
		s.state.Streak = 0
	}
	s.state.CurrentBloom, s.state.LevelStreak = NextBloomLevel(s.cfg.Adaptive, s.state.CurrentBloom, isCorrect, s.state.LevelStreak)
	s.state.TopicMastery = UpdateTopicMastery(s.cfg.Adaptive, s.state.TopicMastery, q.Topic, isCorrect)

	s.state.Phase = PhaseFeedback
	return record, nil
}

// NextQuestion advances past feedback: to the next question, to a refill at
// the updated Bloom level when the batch is exhausted, or to complete when
// the session question cap is reached.
func (s *Session) NextQuestion(ctx context.Context) error {
	if s.state.Phase != PhaseFeedback {
		return &TransitionError{Phase: s.state.Phase, Event: "nextQuestion"}
	}

	if s.state.CurrentIndex+1 < len(s.state.Questions) {
		s.state.CurrentIndex++
		s.state.Phase = PhaseQuestion
		return nil
	}

	remaining := s.cfg.QuestionCap - len(s.state.Questions)
	if remaining <= 0 {
		s.state.Phase = PhaseComplete
		return nil
	}

	count := s.cfg.BatchSize
	if count > remaining {
		count = remaining
	}
	batch, err := s.load(ctx, count)
	if err != nil {
		return err
	}
	s.state.Questions = append(s.state.Questions, batch...)
	s.state.CurrentIndex++
	s.state.Phase = PhaseQuestion
	return nil
}

// ResetQuiz discards all session state and returns to idle.
func (s *Session) ResetQuiz() {
	s.state = s.initialState()
}

// load runs one generation call as the sole suspension point. Nothing is
// committed on failure; the session drops to idle with LastError set.
func (s *Session) load(ctx context.Context, count int) ([]models.QuizQuestion, error) {
	if s.inFlight {
		return nil, ErrGenerationInFlight
	}
	s.inFlight = true
	s.state.Phase = PhaseLoading
	defer func() { s.inFlight = false }()

	batch, err := s.gen.Generate(ctx, models.GenerateQuizRequest{
		VideoID:      s.cfg.VideoID,
		ChapterID:    s.cfg.ChapterID,
		BloomLevel:   s.state.CurrentBloom,
		Count:        count,
		Language:     s.cfg.Language,
		ExcludeIDs:   append([]string(nil), s.state.SeenIDs...),
		ExcludeTexts: append([]string(nil), s.state.SeenTexts...),
	})
	if err == nil && len(batch) == 0 {
		// The question phase needs at least one question on display.
		err = NewGenerationError(errors.New("generator returned an empty batch"))
	}
	if err != nil {
		s.state.Phase = PhaseIdle
		s.state.LastError = userSafeMessage(err)
		return nil, err
	}

	for _, q := range batch {
		s.state.SeenIDs = append(s.state.SeenIDs, q.ID)
		s.state.SeenTexts = append(s.state.SeenTexts, q.QuestionText)
	}
	s.state.LastError = ""
	return batch, nil
}

func hasOption(q models.QuizQuestion, optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

func userSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoTranscript):
		return MsgNoTranscript
	case errors.Is(err, ErrRateLimited):
		return MsgRateLimited
	default:
		return MsgGenerationFailed
	}
}

// SessionSummary is the completion-screen aggregate.
type SessionSummary struct {
	TotalAnswered   int                `json:"totalAnswered"`
	CorrectCount    int                `json:"correctCount"`
	ScorePercent    int                `json:"scorePercent"`
	BestStreak      int                `json:"bestStreak"`
	FinalBloom      int                `json:"finalBloom"`
	FinalBloomLabel string             `json:"finalBloomLabel"`
	TopicMastery    map[string]float64 `json:"topicMastery"`
}

// Summary reports the session outcome; only meaningful once complete.
func (s *Session) Summary() (SessionSummary, error) {
	if s.state.Phase != PhaseComplete {
		return SessionSummary{}, &TransitionError{Phase: s.state.Phase, Event: "summary"}
	}
	correct := 0
	for _, a := range s.state.Answers {
		if a.IsCorrect {
			correct++
		}
	}
	score := 0
	if len(s.state.Answers) > 0 {
		score = correct * 100 / len(s.state.Answers)
	}
	mastery := make(map[string]float64, len(s.state.TopicMastery))
	for t, v := range s.state.TopicMastery {
		mastery[t] = v
	}
	return SessionSummary{
		TotalAnswered:   len(s.state.Answers),
		CorrectCount:    correct,
		ScorePercent:    score,
		BestStreak:      s.state.BestStreak,
		FinalBloom:      s.state.CurrentBloom,
		FinalBloomLabel: BloomLabel(s.state.CurrentBloom, s.state.Language),
		TopicMastery:    mastery,
	}, nil
}
