package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quizzly-service/internal/app"
	"quizzly-service/internal/metrics"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	AllowedOrigins []string
	PollInterval   time.Duration
}

// NewRouter wires every route onto a gin engine.
func NewRouter(quizzes *app.QuizService, parents *app.ParentService, m *metrics.Metrics, log logrus.FieldLogger, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), m.Middleware())

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	corsCfg.AddAllowHeaders("Authorization")
	r.Use(cors.New(corsCfg))

	h := NewHandler(quizzes, parents, log)
	ws := NewWSHandler(quizzes, cfg.PollInterval, log)

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", m.Handler())

	parent := r.Group("/parent")
	parent.POST("/register", h.Register)
	parent.POST("/login", h.Login)

	quiz := r.Group("/quiz/quizzes")
	quiz.POST("/start/:id", h.StartQuiz)
	quiz.POST("/:id/submit_answers", h.SubmitAnswers)
	quiz.POST("/:id/end", h.EndQuiz)
	quiz.GET("/:id/leaderboard", h.Leaderboard)
	quiz.GET("/:id/leaderboard/ws", ws.ServeWS)
	quiz.GET("/:id", optionalAuth(parents), h.GetQuiz)

	owned := quiz.Group("", requireAuth(parents, log))
	owned.POST("/create", h.CreateQuiz)
	owned.GET("", h.ListQuizzes)
	owned.PUT("/:id", h.UpdateQuiz)
	owned.DELETE("/:id", h.DeleteQuiz)
	owned.PUT("/:id/questions/:index", h.EditQuestion)

	return r
}
