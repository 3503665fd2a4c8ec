package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quizzly-service/internal/app"
	"quizzly-service/internal/domain"
)

// Handler binds the REST API to the quiz and parent use cases.
type Handler struct {
	quizzes *app.QuizService
	parents *app.ParentService
	log     logrus.FieldLogger
}

func NewHandler(quizzes *app.QuizService, parents *app.ParentService, log logrus.FieldLogger) *Handler {
	return &Handler{quizzes: quizzes, parents: parents, log: log}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createQuizRequest struct {
	Name            string `json:"name" binding:"required"`
	Subject         string `json:"subject" binding:"required"`
	Topic           string `json:"topic" binding:"required"`
	NumQuestions    int    `json:"num_questions"`
	DifficultyLevel int    `json:"difficulty_level"`
}

type updateQuizRequest struct {
	Name            string `json:"name" binding:"required"`
	Subject         string `json:"subject" binding:"required"`
	Topic           string `json:"topic" binding:"required"`
	DifficultyLevel int    `json:"difficulty_level"`
}

type startRequest struct {
	Password *int   `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

type submitRequest struct {
	Name    string   `json:"name" binding:"required"`
	Answers []string `json:"answers" binding:"required"`
}

type endRequest struct {
	Name string `json:"name" binding:"required"`
}

type endResponse struct {
	Message string `json:"message"`
	domain.EndResult
}

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, h.log, domain.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}
	token, err := h.parents.Register(c.Request.Context(), req.Username, req.Password, req.Name)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Parent registered successfully", "access_token": token})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	token, err := h.parents.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

func (h *Handler) CreateQuiz(c *gin.Context) {
	var req createQuizRequest
	if !h.bind(c, &req) {
		return
	}
	quiz, err := h.quizzes.Create(c.Request.Context(), parentID(c), app.CreateQuizInput{
		Name:            req.Name,
		Subject:         req.Subject,
		Topic:           req.Topic,
		NumQuestions:    req.NumQuestions,
		DifficultyLevel: req.DifficultyLevel,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, ownerView(quiz))
}

func (h *Handler) ListQuizzes(c *gin.Context) {
	quizzes, err := h.quizzes.List(c.Request.Context(), parentID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, ownerViews(quizzes))
}

// GetQuiz serves the full document to its owner and the participant view to
// everyone else.
func (h *Handler) GetQuiz(c *gin.Context) {
	quiz, err := h.quizzes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if owner := parentID(c); owner != "" && quiz.CheckOwner(owner) == nil {
		c.JSON(http.StatusOK, ownerView(quiz))
		return
	}
	c.JSON(http.StatusOK, participantView(quiz))
}

func (h *Handler) UpdateQuiz(c *gin.Context) {
	var req updateQuizRequest
	if !h.bind(c, &req) {
		return
	}
	quiz, err := h.quizzes.Update(c.Request.Context(), c.Param("id"), parentID(c), domain.QuizDetails{
		Name:            req.Name,
		Subject:         req.Subject,
		Topic:           req.Topic,
		DifficultyLevel: req.DifficultyLevel,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, ownerView(quiz))
}

func (h *Handler) DeleteQuiz(c *gin.Context) {
	if err := h.quizzes.Delete(c.Request.Context(), c.Param("id"), parentID(c)); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Quiz deleted"})
}

func (h *Handler) EditQuestion(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		writeError(c, h.log, domain.Validationf("question index must be an integer"))
		return
	}
	var question domain.Question
	if !h.bind(c, &question) {
		return
	}
	quiz, err := h.quizzes.EditQuestion(c.Request.Context(), c.Param("id"), parentID(c), index, question)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, ownerView(quiz))
}

func (h *Handler) StartQuiz(c *gin.Context) {
	var req startRequest
	if !h.bind(c, &req) {
		return
	}
	quiz, alreadyRunning, err := h.quizzes.Start(c.Request.Context(), c.Param("id"), *req.Password, req.Name)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	message := "Quiz started"
	if alreadyRunning {
		message = "Quiz already started"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "quiz": participantView(quiz)})
}

func (h *Handler) SubmitAnswers(c *gin.Context) {
	var req submitRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.quizzes.Submit(c.Request.Context(), c.Param("id"), req.Name, req.Answers)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Answers submitted", "score": result.Score, "total": result.Total})
}

func (h *Handler) EndQuiz(c *gin.Context) {
	var req endRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.quizzes.End(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, endResponse{Message: "Quiz ended", EndResult: result})
}

func (h *Handler) Leaderboard(c *gin.Context) {
	board, err := h.quizzes.Leaderboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, board)
}
