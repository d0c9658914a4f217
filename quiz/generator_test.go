package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"learnwithavi-server/logger"
	"learnwithavi-server/models"
)

type fakeTranscripts struct {
	chunks []models.TranscriptChunk
	err    error
}

func (f *fakeTranscripts) ChunksForVideo(_ context.Context, _, _ string) ([]models.TranscriptChunk, error) {
	return f.chunks, f.err
}

type fakeCompletions struct {
	response   string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeCompletions) CreateQuestionBatch(_ context.Context, system, user string) (string, error) {
	f.lastSystem = system
	f.lastUser = user
	return f.response, f.err
}

func someChunks() []models.TranscriptChunk {
	return []models.TranscriptChunk{
		{ID: "c1", VideoID: "v1", Text: "Goroutines are lightweight threads.", StartTime: 0, EndTime: 30, Topic: "concurrency"},
		{ID: "c2", VideoID: "v1", Text: "Channels connect goroutines.", StartTime: 30, EndTime: 65, Topic: "concurrency"},
	}
}

func toolJSON(t *testing.T, questions []map[string]interface{}) string {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{"questions": questions})
	if err != nil {
		t.Fatalf("marshal tool JSON: %v", err)
	}
	return string(b)
}

func validRawQuestion(i int) map[string]interface{} {
	return map[string]interface{}{
		"text":           fmt.Sprintf("Question %d?", i),
		"options":        []string{"opt one", "opt two", "opt three", "opt four"},
		"correct_answer": i % 4,
		"explanation":    "because the transcript says so",
		"topic":          "concurrency",
		"bloom_level":    2,
		"start_time":     10 * i,
		"end_time":       10*i + 30,
	}
}

func validBatchJSON(t *testing.T, n int) string {
	t.Helper()
	qs := make([]map[string]interface{}, n)
	for i := range qs {
		qs[i] = validRawQuestion(i)
	}
	return toolJSON(t, qs)
}

func newTestGenerator(client *fakeCompletions, transcripts *fakeTranscripts) *Generator {
	return NewGenerator(client, transcripts, logger.NewNop())
}

func baseRequest() models.GenerateQuizRequest {
	return models.GenerateQuizRequest{
		VideoID:    "v1",
		BloomLevel: 2,
		Count:      3,
		Language:   models.LanguageHebrew,
	}
}

func TestGenerateHappyPath(t *testing.T) {
	client := &fakeCompletions{response: validBatchJSON(t, 3)}
	gen := newTestGenerator(client, &fakeTranscripts{chunks: someChunks()})

	questions, err := gen.Generate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(questions))
	}

	seen := map[string]bool{}
	for _, q := range questions {
		if seen[q.ID] {
			t.Fatalf("duplicate question id %s", q.ID)
		}
		seen[q.ID] = true
		if len(q.Options) != 4 {
			t.Fatalf("question %s has %d options", q.ID, len(q.Options))
		}
		correct := 0
		for _, opt := range q.Options {
			if opt.IsCorrect {
				correct++
				if opt.ID != q.CorrectAnswer {
					t.Fatalf("correct option %s does not match correctAnswer %s", opt.ID, q.CorrectAnswer)
				}
			}
		}
		if correct != 1 {
			t.Fatalf("question %s has %d correct options", q.ID, correct)
		}
		if q.BloomLevel < MinBloomLevel || q.BloomLevel > MaxBloomLevel {
			t.Fatalf("question %s bloom level %d out of range", q.ID, q.BloomLevel)
		}
		if q.Explanation == "" || q.Topic == "" {
			t.Fatalf("question %s missing explanation or topic", q.ID)
		}
		if q.SourceTimeRange == nil || q.SourceTimeRange.Start > q.SourceTimeRange.End {
			t.Fatalf("question %s has invalid source range %+v", q.ID, q.SourceTimeRange)
		}
	}
}

func TestGeneratePromptContents(t *testing.T) {
	client := &fakeCompletions{response: validBatchJSON(t, 3)}
	gen := newTestGenerator(client, &fakeTranscripts{chunks: someChunks()})

	req := baseRequest()
	req.ExcludeTexts = []string{"What is a goroutine?"}
	if _, err := gen.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !strings.Contains(client.lastUser, "Goroutines are lightweight threads.") {
		t.Fatalf("prompt missing transcript text:\n%s", client.lastUser)
	}
	if !strings.Contains(client.lastUser, "What is a goroutine?") {
		t.Fatalf("prompt missing excluded question text:\n%s", client.lastUser)
	}
	if !strings.Contains(client.lastUser, "Bloom level 2") {
		t.Fatalf("prompt missing bloom guidance:\n%s", client.lastUser)
	}
	if !strings.Contains(client.lastSystem, "Hebrew") {
		t.Fatalf("system prompt missing language:\n%s", client.lastSystem)
	}
}

func TestGenerateNoTranscript(t *testing.T) {
	gen := newTestGenerator(&fakeCompletions{}, &fakeTranscripts{})
	_, err := gen.Generate(context.Background(), baseRequest())
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("got %v, want ErrNoTranscript", err)
	}
}

func TestGenerateRequestValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.GenerateQuizRequest)
		field  string
	}{
		{name: "missing video id", mutate: func(r *models.GenerateQuizRequest) { r.VideoID = " " }, field: "videoId"},
		{name: "bloom too low", mutate: func(r *models.GenerateQuizRequest) { r.BloomLevel = 0 }, field: "bloomLevel"},
		{name: "bloom too high", mutate: func(r *models.GenerateQuizRequest) { r.BloomLevel = 5 }, field: "bloomLevel"},
		{name: "count zero", mutate: func(r *models.GenerateQuizRequest) { r.Count = 0 }, field: "count"},
		{name: "count too high", mutate: func(r *models.GenerateQuizRequest) { r.Count = 11 }, field: "count"},
		{name: "bad language", mutate: func(r *models.GenerateQuizRequest) { r.Language = "fr" }, field: "language"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := newTestGenerator(&fakeCompletions{}, &fakeTranscripts{chunks: someChunks()})
			req := baseRequest()
			tc.mutate(&req)
			_, err := gen.Generate(context.Background(), req)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			if _, ok := vErr.Fields[tc.field]; !ok {
				t.Fatalf("validation error missing field %s: %v", tc.field, vErr.Fields)
			}
		})
	}
}

func TestGenerateDefaultsLanguageToHebrew(t *testing.T) {
	client := &fakeCompletions{response: validBatchJSON(t, 3)}
	gen := newTestGenerator(client, &fakeTranscripts{chunks: someChunks()})
	req := baseRequest()
	req.Language = ""
	if _, err := gen.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(client.lastSystem, "Hebrew") {
		t.Fatalf("default language not Hebrew:\n%s", client.lastSystem)
	}
}

func TestGenerateBatchIsAllOrNothing(t *testing.T) {
	breakages := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{name: "five options", mutate: func(q map[string]interface{}) {
			q["options"] = []string{"a", "b", "c", "d", "e"}
		}},
		{name: "correct index out of range", mutate: func(q map[string]interface{}) {
			q["correct_answer"] = 7
		}},
		{name: "empty explanation", mutate: func(q map[string]interface{}) {
			q["explanation"] = "  "
		}},
		{name: "empty topic", mutate: func(q map[string]interface{}) {
			q["topic"] = ""
		}},
		{name: "bloom out of range", mutate: func(q map[string]interface{}) {
			q["bloom_level"] = 5
		}},
		{name: "inverted time range", mutate: func(q map[string]interface{}) {
			q["start_time"] = 100
			q["end_time"] = 10
		}},
		{name: "empty option text", mutate: func(q map[string]interface{}) {
			q["options"] = []string{"a", "", "c", "d"}
		}},
	}

	for _, tc := range breakages {
		t.Run(tc.name, func(t *testing.T) {
			qs := []map[string]interface{}{validRawQuestion(0), validRawQuestion(1), validRawQuestion(2)}
			tc.mutate(qs[1]) // one bad question poisons the whole batch
			client := &fakeCompletions{response: toolJSON(t, qs)}
			gen := newTestGenerator(client, &fakeTranscripts{chunks: someChunks()})

			_, err := gen.Generate(context.Background(), baseRequest())
			var gErr *GenerationError
			if !errors.As(err, &gErr) {
				t.Fatalf("got %v, want GenerationError", err)
			}
		})
	}
}

func TestGenerateShortBatchFails(t *testing.T) {
	client := &fakeCompletions{response: validBatchJSON(t, 2)}
	gen := newTestGenerator(client, &fakeTranscripts{chunks: someChunks()})
	_, err := gen.Generate(context.Background(), baseRequest())
	var gErr *GenerationError
	if !errors.As(err, &gErr) {
		t.Fatalf("got %v, want GenerationError for short batch", err)
	}
}

func TestGenerateOverlongBatchTruncated(t *testing.T) {
	client := &fakeCompletions{response: validBatchJSON(t, 6)}
	gen := newTestGenerator(client, &fakeTranscripts{chunks: someChunks()})
	questions, err := gen.Generate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("got %d questions, want exactly 3", len(questions))
	}
}

func TestGenerateUnparsableOutputFails(t *testing.T) {
	client := &fakeCompletions{response: "this is not JSON"}
	gen := newTestGenerator(client, &fakeTranscripts{chunks: someChunks()})
	_, err := gen.Generate(context.Background(), baseRequest())
	var gErr *GenerationError
	if !errors.As(err, &gErr) {
		t.Fatalf("got %v, want GenerationError", err)
	}
}

func TestGenerateSanitizesUpstreamErrors(t *testing.T) {
	const secret = "sk-very-secret-api-key"
	client := &fakeCompletions{err: fmt.Errorf("401 unauthorized: bad key %s", secret)}
	gen := newTestGenerator(client, &fakeTranscripts{chunks: someChunks()})

	_, err := gen.Generate(context.Background(), baseRequest())
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() != MsgGenerationFailed {
		t.Fatalf("client-facing message %q, want %q", err.Error(), MsgGenerationFailed)
	}
	if strings.Contains(err.Error(), secret) {
		t.Fatalf("upstream secret leaked into error message: %q", err.Error())
	}
	// The cause remains reachable for server-side logs only.
	if !strings.Contains(errors.Unwrap(err).Error(), secret) {
		t.Fatal("cause lost; server-side logging needs it")
	}
}

func TestGenerateIDsDisjointFromExcludes(t *testing.T) {
	client := &fakeCompletions{response: validBatchJSON(t, 3)}
	gen := newTestGenerator(client, &fakeTranscripts{chunks: someChunks()})

	req := baseRequest()
	req.ExcludeIDs = []string{"old-1", "old-2"}
	questions, err := gen.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	for _, q := range questions {
		for _, ex := range req.ExcludeIDs {
			if q.ID == ex {
				t.Fatalf("generated id %s collides with excludeIds", q.ID)
			}
		}
	}
}
