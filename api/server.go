// Package api exposes the closing engine over HTTP. It is a capability
// module: the CLI enables it through the serve command, and tests drive the
// handler directly.
package api

import (
	"net/http"
	"time"

	"pos-closing-service/internal/engine"
	"pos-closing-service/internal/models"
	"pos-closing-service/internal/normalizer"
	"pos-closing-service/pkg/errors"
	"pos-closing-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Config holds the API server configuration.
type Config struct {
	Port string
	Mode string
}

// DefaultConfig returns the default API configuration.
func DefaultConfig() Config {
	return Config{
		Port: ":8080",
		Mode: gin.ReleaseMode,
	}
}

// Server wraps the gin router over one engine instance.
type Server struct {
	config Config
	engine *engine.Engine
	router *gin.Engine
	logger logger.Logger
}

// New creates an API server over the given engine.
func New(cfg Config, eng *engine.Engine) (*Server, error) {
	if eng == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "engine", nil, nil)
	}
	gin.SetMode(cfg.Mode)

	registerValidations()

	s := &Server{
		config: cfg,
		engine: eng,
		router: gin.New(),
		logger: logger.GetGlobalLogger().WithComponent("api"),
	}
	s.router.Use(gin.Recovery())
	s.registerRoutes()
	return s, nil
}

func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterValidation("periodtype", func(fl validator.FieldLevel) bool {
		return models.PeriodType(fl.Field().String()).IsValid()
	})
}

// Handler returns the http.Handler for the server, for tests and custom
// http.Server configurations.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.WithField("port", s.config.Port).Info("starting API server")
	return s.router.Run(s.config.Port)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	orgs := s.router.Group("/orgs/:org")
	{
		orgs.POST("/cash-chain", s.handleComputeChain)
		orgs.POST("/cash-chain/count", s.handleApplyCount)
		orgs.POST("/closures", s.handleClosePeriod)
		orgs.POST("/closures/bulk", s.handleBulkClosure)
		orgs.GET("/closures", s.handleListClosures)
		orgs.POST("/closures/correct", s.handleMarkCorrected)
		orgs.POST("/periods/:period/statement", s.handleImportStatement)
		orgs.GET("/periods/:period/matches/pending", s.handlePendingMatches)
		orgs.GET("/periods/:period/summary", s.handleSummary)
	}

	s.router.POST("/matches/:id/approve", s.handleApprove)
	s.router.POST("/matches/:id/reject", s.handleReject)
	s.router.POST("/entries/:id/manual-match", s.handleManualMatch)
	s.router.POST("/entries/:id/unmatched", s.handleMarkUnmatched)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type computeChainRequest struct {
	From            string          `json:"from" binding:"required"`
	To              string          `json:"to" binding:"required"`
	StartingBalance decimal.Decimal `json:"startingBalance"`
}

func (s *Server) handleComputeChain(c *gin.Context) {
	var req computeChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.InputError(errors.CodeMissingField, "body", err.Error()))
		return
	}
	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		s.writeError(c, errors.InputError(errors.CodeInvalidDate, "from", req.From))
		return
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		s.writeError(c, errors.InputError(errors.CodeInvalidDate, "to", req.To))
		return
	}

	chain, err := s.engine.ComputeCashChain(c.Request.Context(), c.Param("org"), from, to, req.StartingBalance)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chain": chain})
}

type applyCountRequest struct {
	Chain   []models.CashChainLink `json:"chain" binding:"required"`
	Date    string                 `json:"date" binding:"required"`
	Counted decimal.Decimal        `json:"counted"`
}

func (s *Server) handleApplyCount(c *gin.Context) {
	var req applyCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.InputError(errors.CodeMissingField, "body", err.Error()))
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		s.writeError(c, errors.InputError(errors.CodeInvalidDate, "date", req.Date))
		return
	}

	chain, err := s.engine.UpdateChainIst(req.Chain, date, req.Counted)
	if err != nil {
		s.writeError(c, errors.InputError(errors.CodeInvalidPeriod, "chain", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"chain": chain})
}

type closePeriodRequest struct {
	PeriodType    string          `json:"periodType" binding:"required,periodtype"`
	PeriodKey     string          `json:"periodKey" binding:"required"`
	CashStarting  decimal.Decimal `json:"cashStarting"`
	CashEndingIst decimal.Decimal `json:"cashEndingIst"`
	Notes         string          `json:"notes"`
}

func (s *Server) handleClosePeriod(c *gin.Context) {
	var req closePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.InputError(errors.CodeMissingField, "body", err.Error()))
		return
	}

	result, err := s.engine.ClosePeriod(c.Request.Context(), c.Param("org"),
		models.PeriodType(req.PeriodType), models.PeriodKey(req.PeriodKey),
		req.CashStarting, req.CashEndingIst, req.Notes)
	if err != nil {
		s.writeError(c, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyClosed {
		status = http.StatusOK
	}
	response := gin.H{"record": result.Record, "alreadyClosed": result.AlreadyClosed}
	if result.DocumentErr != nil {
		response["documentWarning"] = result.DocumentErr.Error()
	} else if result.Document != nil {
		response["document"] = result.Document
	}
	c.JSON(status, response)
}

type bulkClosureRequest struct {
	Chain []models.CashChainLink `json:"chain" binding:"required"`
	Notes string                 `json:"notes"`
}

func (s *Server) handleBulkClosure(c *gin.Context) {
	var req bulkClosureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.InputError(errors.CodeMissingField, "body", err.Error()))
		return
	}

	result, err := s.engine.RunBulkClosure(c.Request.Context(), c.Param("org"), req.Chain, req.Notes)
	if err != nil && result == nil {
		s.writeError(c, err)
		return
	}
	// a cancelled run still reports the days it closed
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListClosures(c *gin.Context) {
	periodType := models.PeriodType(c.DefaultQuery("periodType", string(models.PeriodDaily)))
	records, err := s.engine.ClosuresInRange(c.Request.Context(), c.Param("org"), periodType,
		models.PeriodKey(c.Query("from")), models.PeriodKey(c.Query("to")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

type correctionRequest struct {
	PeriodType string `json:"periodType" binding:"required,periodtype"`
	PeriodKey  string `json:"periodKey" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
}

func (s *Server) handleMarkCorrected(c *gin.Context) {
	var req correctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.InputError(errors.CodeMissingField, "body", err.Error()))
		return
	}

	record, err := s.engine.MarkClosureCorrected(c.Request.Context(), c.Param("org"),
		models.PeriodType(req.PeriodType), models.PeriodKey(req.PeriodKey), req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": record})
}

type importStatementRequest struct {
	Rows []*normalizer.RawEntry `json:"rows" binding:"required"`
}

func (s *Server) handleImportStatement(c *gin.Context) {
	var req importStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.InputError(errors.CodeMissingField, "body", err.Error()))
		return
	}

	result, err := s.engine.ImportBankStatement(c.Request.Context(), c.Param("org"),
		models.PeriodKey(c.Param("period")), req.Rows)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) handlePendingMatches(c *gin.Context) {
	matches, err := s.engine.PendingMatches(c.Request.Context(), c.Param("org"), models.PeriodKey(c.Param("period")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

func (s *Server) handleSummary(c *gin.Context) {
	summary, err := s.engine.Summary(c.Request.Context(), c.Param("org"), models.PeriodKey(c.Param("period")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleApprove(c *gin.Context) {
	match, err := s.engine.ApproveMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

func (s *Server) handleReject(c *gin.Context) {
	match, err := s.engine.RejectMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

type manualMatchRequest struct {
	Records []models.MatchedRecord `json:"records" binding:"required,min=1"`
	Notes   string                 `json:"notes" binding:"required"`
}

func (s *Server) handleManualMatch(c *gin.Context) {
	var req manualMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.InputError(errors.CodeMissingField, "body", err.Error()))
		return
	}

	match, err := s.engine.ManualMatch(c.Request.Context(), c.Param("id"), req.Records, req.Notes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"match": match})
}

type markUnmatchedRequest struct {
	Reason string `json:"reason" binding:"required"`
	Notes  string `json:"notes"`
}

func (s *Server) handleMarkUnmatched(c *gin.Context) {
	var req markUnmatchedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.InputError(errors.CodeMissingField, "body", err.Error()))
		return
	}

	match, err := s.engine.MarkUnmatched(c.Request.Context(), c.Param("id"), req.Reason, req.Notes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

// writeError maps engine errors to HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"error": err.Error()}

	var engineErr *errors.Error
	if errors.AsEngineError(err, &engineErr) {
		body["category"] = engineErr.Category
		body["code"] = engineErr.Code
		if engineErr.Suggestion != "" {
			body["suggestion"] = engineErr.Suggestion
		}
		switch {
		case engineErr.Code == errors.CodeRecordNotFound:
			status = http.StatusNotFound
		case engineErr.Code == errors.CodeRecordFrozen, engineErr.Code == errors.CodeInvalidState:
			status = http.StatusConflict
		case engineErr.Category == errors.CategoryInput:
			status = http.StatusBadRequest
		case engineErr.Category == errors.CategorySystemic && engineErr.Code == errors.CodeNoOrganization:
			status = http.StatusBadRequest
		}
	}

	s.logger.WithError(err).WithField("status", status).Warn("request failed")
	c.JSON(status, body)
}
