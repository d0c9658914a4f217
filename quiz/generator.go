package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"learnwithavi-server/llm"
	"learnwithavi-server/logger"
	"learnwithavi-server/models"
)

// TranscriptProvider supplies ordered transcript chunks for a video, scoped
// to one chapter when chapterID is non-empty. An empty slice means the scope
// has no transcript.
type TranscriptProvider interface {
	ChunksForVideo(ctx context.Context, videoID, chapterID string) ([]models.TranscriptChunk, error)
}

// Generator builds Bloom-leveled multiple-choice questions from a video
// transcript via a single language-model call. It holds no mutable state;
// the only side effect of Generate is the outbound model call.
type Generator struct {
	client      llm.CompletionClient
	transcripts TranscriptProvider
	log         *logger.Logger
}

func NewGenerator(client llm.CompletionClient, transcripts TranscriptProvider, log *logger.Logger) *Generator {
	return &Generator{
		client:      client,
		transcripts: transcripts,
		log:         log.With("service", "QuizGenerator"),
	}
}

// Generate resolves the transcript, invokes the model once, and returns a
// fully validated batch of exactly req.Count questions. The batch is
// all-or-nothing: one invalid question fails the whole call, because a
// corrupt batch is a worse learner experience than a retry.
func (g *Generator) Generate(ctx context.Context, req models.GenerateQuizRequest) ([]models.QuizQuestion, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	chunks, err := g.transcripts.ChunksForVideo(ctx, req.VideoID, req.ChapterID)
	if err != nil {
		g.log.Error("transcript lookup failed", "video_id", req.VideoID, "error", err)
		return nil, NewGenerationError(err)
	}
	if len(chunks) == 0 {
		return nil, ErrNoTranscript
	}

	systemPrompt := buildSystemPrompt(req.Language)
	userPrompt := buildUserPrompt(req, chunks)

	raw, err := g.client.CreateQuestionBatch(ctx, systemPrompt, userPrompt)
	if err != nil {
		// Provider error text can carry credentials; it goes to the log,
		// never to the caller-facing message.
		g.log.Error("model call failed", "video_id", req.VideoID, "error", err)
		return nil, NewGenerationError(err)
	}

	questions, err := parseBatch(raw, req)
	if err != nil {
		g.log.Error("model output rejected", "video_id", req.VideoID, "error", err)
		return nil, NewGenerationError(err)
	}

	g.log.Info("question batch generated",
		"video_id", req.VideoID,
		"bloom_level", req.BloomLevel,
		"count", len(questions),
	)
	return questions, nil
}

func validateRequest(req *models.GenerateQuizRequest) error {
	if strings.TrimSpace(req.VideoID) == "" {
		return newValidationError("videoId", "required")
	}
	if req.BloomLevel < MinBloomLevel || req.BloomLevel > MaxBloomLevel {
		return newValidationError("bloomLevel", fmt.Sprintf("must be between %d and %d", MinBloomLevel, MaxBloomLevel))
	}
	if req.Count < 1 || req.Count > 10 {
		return newValidationError("count", "must be between 1 and 10")
	}
	switch req.Language {
	case "":
		req.Language = models.LanguageHebrew
	case models.LanguageHebrew, models.LanguageEnglish:
	default:
		return newValidationError("language", "must be one of: he, en")
	}
	return nil
}

func buildSystemPrompt(language string) string {
	lang := "Hebrew"
	if language == models.LanguageEnglish {
		lang = "English"
	}
	return fmt.Sprintf("You are an expert quiz question generator for a video-course platform. "+
		"Generate high-quality multiple choice questions with exactly 4 options each, grounded "+
		"strictly in the supplied video transcript. Write all question content in %s.", lang)
}

func buildUserPrompt(req models.GenerateQuizRequest, chunks []models.TranscriptChunk) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Generate %d multiple choice questions from the following video transcript.\n\n", req.Count))

	sb.WriteString("Transcript:\n")
	for _, c := range chunks {
		sb.WriteString(fmt.Sprintf("[%s - %s] %s\n", formatTimestamp(c.StartTime), formatTimestamp(c.EndTime), c.Text))
	}
	sb.WriteString("\n")

	sb.WriteString(bloomGuidance(req.BloomLevel, req.Language))
	sb.WriteString("\n\n")

	if len(req.ExcludeTexts) > 0 {
		sb.WriteString("The learner has already seen the following questions. Do NOT repeat or rephrase them:\n")
		for _, t := range req.ExcludeTexts {
			sb.WriteString("- ")
			sb.WriteString(t)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Requirements:\n")
	sb.WriteString("- Each question must have exactly 4 multiple choice options\n")
	sb.WriteString("- Exactly one option is correct; the others must be plausible but clearly wrong\n")
	sb.WriteString("- Every question must be answerable from the transcript alone\n")
	sb.WriteString("- Provide a brief explanation for why the correct answer is right\n")
	sb.WriteString("- Tag each question with a short topic label and its Bloom level\n")
	sb.WriteString("- Include the transcript start/end seconds the question is grounded in when you can\n")
	sb.WriteString("- Use the submit_questions tool to return your questions\n")

	return sb.String()
}

func formatTimestamp(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// rawQuestion mirrors the submit_questions tool argument schema.
type rawQuestion struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Topic         string   `json:"topic"`
	BloomLevel    int      `json:"bloom_level"`
	StartTime     *int     `json:"start_time,omitempty"`
	EndTime       *int     `json:"end_time,omitempty"`
}

// parseBatch parses and validates the model output against every question
// invariant. Server-assigned ids keep the batch unique and disjoint from
// excludeIds no matter what the model produced.
func parseBatch(raw string, req models.GenerateQuizRequest) ([]models.QuizQuestion, error) {
	var args struct {
		Questions []rawQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	if len(args.Questions) < req.Count {
		return nil, fmt.Errorf("model returned %d questions, requested %d", len(args.Questions), req.Count)
	}

	excluded := make(map[string]struct{}, len(req.ExcludeIDs))
	for _, id := range req.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	seen := make(map[string]struct{}, req.Count)
	questions := make([]models.QuizQuestion, 0, req.Count)
	for i, rq := range args.Questions[:req.Count] {
		q, err := buildQuestion(rq)
		if err != nil {
			return nil, fmt.Errorf("question %d invalid: %w", i, err)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("question %d: duplicate id %s", i, q.ID)
		}
		if _, ex := excluded[q.ID]; ex {
			return nil, fmt.Errorf("question %d: id %s collides with excludeIds", i, q.ID)
		}
		seen[q.ID] = struct{}{}
		questions = append(questions, q)
	}
	return questions, nil
}

func buildQuestion(rq rawQuestion) (models.QuizQuestion, error) {
	var q models.QuizQuestion

	if strings.TrimSpace(rq.Text) == "" {
		return q, fmt.Errorf("empty question text")
	}
	if len(rq.Options) != len(models.OptionLabels) {
		return q, fmt.Errorf("expected %d options, got %d", len(models.OptionLabels), len(rq.Options))
	}
	if rq.CorrectAnswer < 0 || rq.CorrectAnswer >= len(rq.Options) {
		return q, fmt.Errorf("correct_answer index %d out of range", rq.CorrectAnswer)
	}
	if strings.TrimSpace(rq.Explanation) == "" {
		return q, fmt.Errorf("empty explanation")
	}
	if strings.TrimSpace(rq.Topic) == "" {
		return q, fmt.Errorf("empty topic")
	}
	if rq.BloomLevel < MinBloomLevel || rq.BloomLevel > MaxBloomLevel {
		return q, fmt.Errorf("bloom_level %d out of range", rq.BloomLevel)
	}

	options := make([]models.QuestionOption, len(rq.Options))
	for i, text := range rq.Options {
		if strings.TrimSpace(text) == "" {
			return q, fmt.Errorf("option %d is empty", i)
		}
		options[i] = models.QuestionOption{
			ID:        models.OptionLabels[i],
			Text:      text,
			IsCorrect: i == rq.CorrectAnswer,
		}
	}

	q = models.QuizQuestion{
		ID:            uuid.NewString(),
		QuestionText:  rq.Text,
		Options:       options,
		CorrectAnswer: models.OptionLabels[rq.CorrectAnswer],
		Explanation:   rq.Explanation,
		BloomLevel:    rq.BloomLevel,
		Topic:         rq.Topic,
	}

	if rq.StartTime != nil && rq.EndTime != nil {
		if *rq.StartTime < 0 || *rq.StartTime > *rq.EndTime {
			return q, fmt.Errorf("invalid time range %d..%d", *rq.StartTime, *rq.EndTime)
		}
		q.SourceTimeRange = &models.SourceTimeRange{Start: *rq.StartTime, End: *rq.EndTime}
	}
	return q, nil
}
