package models

import (
	"time"
)

// OptionLabels is the fixed set of option ids every question uses, in order.
var OptionLabels = [4]string{"a", "b", "c", "d"}

// Languages accepted by the generation endpoint. Hebrew is the platform default.
const (
	LanguageHebrew  = "he"
	LanguageEnglish = "en"
)

// QuestionOption is a single answer choice within a question.
type QuestionOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// SourceTimeRange points back at the transcript span a question was drawn from,
// so the learner can jump to the source moment in the video.
type SourceTimeRange struct {
	Start int `json:"start"` // seconds into the video
	End   int `json:"end"`
}

// QuizQuestion is an immutable generated question. Created by the generator,
// consumed read-only by the session.
type QuizQuestion struct {
	ID              string           `json:"id"`
	QuestionText    string           `json:"questionText"`
	Options         []QuestionOption `json:"options"`
	CorrectAnswer   string           `json:"correctAnswer"` // option id of the correct choice
	Explanation     string           `json:"explanation"`
	BloomLevel      int              `json:"bloomLevel"` // 1..4
	Topic           string           `json:"topic"`
	SourceTimeRange *SourceTimeRange `json:"sourceTimeRange,omitempty"`
}

// AnswerRecord captures one answered question. Append-only within a session.
type AnswerRecord struct {
	QuestionID string    `json:"questionId"`
	Answer     string    `json:"answer"` // chosen option id
	IsCorrect  bool      `json:"isCorrect"`
	BloomLevel int       `json:"bloomLevel"`
	Topic      string    `json:"topic"`
	Timestamp  time.Time `json:"timestamp"`
}

// TranscriptChunk is a timestamped span of transcript text for a video.
type TranscriptChunk struct {
	ID        string `json:"id"`
	VideoID   string `json:"video_id"`
	ChapterID string `json:"chapter_id,omitempty"`
	Text      string `json:"text"`
	StartTime int    `json:"start_time"` // seconds
	EndTime   int    `json:"end_time"`
	Topic     string `json:"topic"`
}

// GenerateQuizRequest is the body of POST /api/v1/quiz/generate.
// The language rule "quizlang" is registered in handlers.
type GenerateQuizRequest struct {
	VideoID    string   `json:"videoId" binding:"required"`
	ChapterID  string   `json:"chapterId"`
	BloomLevel int      `json:"bloomLevel" binding:"required,min=1,max=4"`
	Count      int      `json:"count" binding:"required,min=1,max=10"`
	Language   string   `json:"language" binding:"omitempty,quizlang"`
	ExcludeIDs []string `json:"excludeIds"`
	// Texts of previously seen questions; embedded in the prompt so the
	// model steers away from repeats. Ids alone mean nothing to the model.
	ExcludeTexts []string `json:"excludeTexts"`
}

// GenerateQuizResponse is the 200 body of the generation endpoint.
type GenerateQuizResponse struct {
	Questions []QuizQuestion `json:"questions"`
}

// ErrorResponse is the uniform error body. Messages are fixed user-safe
// strings; upstream error text never reaches the client.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// BloomLevelInfo describes one Bloom level for the summary/levels endpoint.
type BloomLevelInfo struct {
	Level int    `json:"level"`
	Label string `json:"label"`
}
