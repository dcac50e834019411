package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"llm-event-tracker/internal/portfolio"
	"llm-event-tracker/internal/repo"
	"llm-event-tracker/internal/store"
)

// logTailLines is how many trailing log lines /api/logs serves.
const logTailLines = 100

// Handler serves the read-only dashboard API from the in-memory aggregate.
// It never mutates repository state.
type Handler struct {
	repo *repo.AppRepository
	pm   *portfolio.Manager
	cfg  *store.Config
}

func NewHandler(app *repo.AppRepository, pm *portfolio.Manager, cfg *store.Config) *Handler {
	return &Handler{repo: app, pm: pm, cfg: cfg}
}

// NewRouter builds the gin engine with all read routes registered.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.Health)
	api := router.Group("/api")
	{
		api.GET("/state", h.GetState)
		api.GET("/events", h.GetEvents)
		api.GET("/portfolio", h.GetPortfolio)
		api.GET("/news", h.GetNews)
		api.GET("/llm-log", h.GetLLMLog)
		api.GET("/logs", h.GetLogs)
	}

	if h.cfg.Server.StaticDir != "" {
		router.Static("/static", h.cfg.Server.StaticDir)
		router.GET("/", func(c *gin.Context) {
			c.File(filepath.Join(h.cfg.Server.StaticDir, "index.html"))
		})
	}

	return router
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetState serves the full aggregate, trimming news to the news_limit query
// parameter (default 10, "all" for everything). Reads come from memory, not
// the snapshot file, so there is never a file-level race with the writer.
func (h *Handler) GetState(c *gin.Context) {
	events, pf, news, llmLog, processedIDs := h.repo.State()

	limitParam := c.DefaultQuery("news_limit", "10")
	if limitParam != "all" {
		if limit, err := strconv.Atoi(limitParam); err == nil && limit >= 0 && limit < len(news) {
			news = news[:limit]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"events":             events,
		"portfolio":          pf,
		"news_items":         news,
		"llm_log":            llmLog,
		"processed_news_ids": processedIDs,
	})
}

func (h *Handler) GetEvents(c *gin.Context) {
	events, _, _, _, _ := h.repo.State()
	c.JSON(http.StatusOK, events)
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"current_value": h.pm.GetValue(),
		"history":       h.pm.GetHistory(),
	})
}

func (h *Handler) GetNews(c *gin.Context) {
	_, _, news, _, _ := h.repo.State()
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && limit >= 0 && limit < len(news) {
		news = news[:limit]
	}
	c.JSON(http.StatusOK, news)
}

func (h *Handler) GetLLMLog(c *gin.Context) {
	c.JSON(http.StatusOK, h.repo.LogEntries())
}

// GetLogs serves the tail of the application log file as plain text.
func (h *Handler) GetLogs(c *gin.Context) {
	data, err := os.ReadFile(h.cfg.Server.LogFile)
	if err != nil {
		c.String(http.StatusInternalServerError, "Error reading log: %v", err)
		return
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > logTailLines {
		lines = lines[len(lines)-logTailLines:]
	}
	c.String(http.StatusOK, strings.Join(lines, "\n"))
}
