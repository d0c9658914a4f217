package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"learnwithavi-server/logger"
	"learnwithavi-server/models"
	"learnwithavi-server/quiz"
)

// QuestionService is what the HTTP layer needs from the quiz generator.
type QuestionService interface {
	Generate(ctx context.Context, req models.GenerateQuizRequest) ([]models.QuizQuestion, error)
}

// RegisterValidators installs the custom binding rules. Call once at startup.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected gin validator engine")
	}
	return v.RegisterValidation("quizlang", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case models.LanguageHebrew, models.LanguageEnglish:
			return true
		}
		return false
	})
}

// GenerateQuiz handles POST /api/v1/quiz/generate.
// Error bodies carry only fixed user-safe strings; causes are logged here.
func GenerateQuiz(svc QuestionService, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.GenerateQuizRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   quiz.MsgValidationFailed,
				Details: bindingDetails(err),
			})
			return
		}

		questions, err := svc.Generate(c.Request.Context(), req)
		if err != nil {
			status, body := mapGenerateError(err)
			if status == http.StatusInternalServerError {
				log.Error("quiz generation failed", "video_id", req.VideoID, "error", err)
			}
			c.JSON(status, body)
			return
		}

		c.JSON(http.StatusOK, models.GenerateQuizResponse{Questions: questions})
	}
}

// BloomLevels handles GET /api/v1/quiz/levels.
func BloomLevels() gin.HandlerFunc {
	return func(c *gin.Context) {
		language := c.DefaultQuery("language", models.LanguageHebrew)
		if language != models.LanguageHebrew && language != models.LanguageEnglish {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   quiz.MsgValidationFailed,
				Details: map[string]string{"language": "must be one of: he, en"},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"levels": quiz.BloomLevelInfos(language)})
	}
}

// Healthz handles GET /healthz with a DB ping.
func Healthz(pool *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// bindingDetails flattens validator errors into field → rule. Unparsable
// JSON has no fields to report; the fixed message alone goes out.
func bindingDetails(err error) interface{} {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return nil
	}
	fields := make(map[string]string, len(vErrs))
	for _, fe := range vErrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

func mapGenerateError(err error) (int, models.ErrorResponse) {
	var vErr *quiz.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, models.ErrorResponse{Error: quiz.MsgValidationFailed, Details: vErr.Fields}
	case errors.Is(err, quiz.ErrNoTranscript):
		return http.StatusNotFound, models.ErrorResponse{Error: quiz.MsgNoTranscript}
	case errors.Is(err, quiz.ErrRateLimited):
		return http.StatusTooManyRequests, models.ErrorResponse{Error: quiz.MsgRateLimited}
	default:
		return http.StatusInternalServerError, models.ErrorResponse{Error: quiz.MsgGenerationFailed}
	}
}
