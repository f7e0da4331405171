package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/newsdesk/app/database"
	"github.com/lysyi3m/newsdesk/app/feed"
	"github.com/lysyi3m/newsdesk/app/tasks"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func NewHandler(news NewsReader, runs RunReader, jobs tasks.TaskFactory, scheduler tasks.TaskSchedulerInterface,
	baseURL, version string) *Handler {
	return &Handler{
		news:      news,
		runs:      runs,
		jobs:      jobs,
		scheduler: scheduler,
		generator: feed.NewGenerator(),
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		version:   version,
		now:       time.Now,
	}
}

// RunJob triggers the job named by the route and answers with the run report once it finishes.
func (h *Handler) RunJob(taskType tasks.TaskType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req JobRequest
		if c.Request.Body != nil && c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
				h.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
				return
			}
		}

		task, err := h.jobs.New(taskType, tasks.ParseMode(req.Mode))
		if err != nil {
			h.fail(c, http.StatusBadRequest, err.Error())
			return
		}

		report, err := h.scheduler.RunTask(c.Request.Context(), task)
		if errors.Is(err, tasks.ErrJobRunning) {
			h.fail(c, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			slog.Error("Job failed", "type", string(taskType), "id", task.GetID(), "error", err)
			h.fail(c, http.StatusInternalServerError, err.Error())
			return
		}

		body := gin.H{
			"ok":        true,
			"job":       report.Job,
			"run_id":    report.RunID,
			"status":    report.Status,
			"processed": report.Processed,
			"failed":    report.Failed,
			"ts":        h.timestamp(),
		}
		for key, value := range report.Counts {
			if _, taken := body[key]; !taken {
				body[key] = value
			}
		}

		c.JSON(http.StatusOK, body)
	}
}

// GetTickerFeed serves the latest classified news of one ticker as RSS.
func (h *Handler) GetTickerFeed(c *gin.Context) {
	ticker := strings.ToUpper(strings.TrimSuffix(c.Param("ticker"), ".xml"))
	if ticker == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	items, err := h.news.ListNews(c.Request.Context(), database.NewsFilter{
		Ticker:         ticker,
		ClassifiedOnly: true,
		Limit:          defaultListLimit,
	})
	if err != nil {
		slog.Error("Database error", "operation", "list_news", "ticker", ticker, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	baseURL := h.baseURL
	if baseURL == "" {
		baseURL = "http://" + c.Request.Host
	}
	selfLink := baseURL + "/feeds/" + ticker

	rss, err := h.generator.Run(feed.Channel{
		Title:       "Newsdesk: " + ticker,
		Link:        selfLink,
		Description: "Classified market news for " + ticker,
		SelfLink:    selfLink,
		Generator:   "Newsdesk/" + h.version,
	}, items)
	if err != nil {
		slog.Error("RSS generation error", "ticker", ticker, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(rss))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"ok":      true,
		"version": h.version,
		"ts":      h.timestamp(),
	}

	if total, unclassified, err := h.news.GetNewsCount(c.Request.Context()); err == nil {
		health["news"] = total
		health["unclassified"] = unclassified
	} else {
		slog.Error("Database error", "operation", "get_news_count", "error", err)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListRuns(c *gin.Context) {
	limit, ok := h.limit(c)
	if !ok {
		return
	}

	records, err := h.runs.ListRuns(c.Request.Context(), c.Query("job"), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "error", err)
		h.fail(c, http.StatusInternalServerError, "database error")
		return
	}

	views := make([]RunView, 0, len(records))
	for _, r := range records {
		views = append(views, newRunView(r))
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "runs": views, "total": len(views), "ts": h.timestamp()})
}

func (h *Handler) APIJobHealth(c *gin.Context) {
	records, err := h.runs.ListHealth(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_health", "error", err)
		h.fail(c, http.StatusInternalServerError, "database error")
		return
	}

	views := make([]HealthView, 0, len(records))
	for _, r := range records {
		views = append(views, HealthView{
			Job:                 r.JobName,
			LastSuccessAt:       r.LastSuccessAt,
			ConsecutiveFailures: r.ConsecutiveFailures,
			LastError:           r.LastError,
			LastErrorAt:         r.LastErrorAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "jobs": views, "ts": h.timestamp()})
}

func (h *Handler) APIListNews(c *gin.Context) {
	limit, ok := h.limit(c)
	if !ok {
		return
	}

	filter := database.NewsFilter{
		Ticker:         c.Query("ticker"),
		ClassifiedOnly: c.Query("classified") == "true",
		Limit:          limit,
	}

	items, err := h.news.ListNews(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_news", "error", err)
		h.fail(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "news": newsViews(items), "total": len(items), "ts": h.timestamp()})
}

func (h *Handler) APIGetEvent(c *gin.Context) {
	id := c.Param("id")

	items, err := h.news.ListByEventGroup(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "list_event_group", "group", id, "error", err)
		h.fail(c, http.StatusInternalServerError, "database error")
		return
	}
	if len(items) == 0 {
		h.fail(c, http.StatusNotFound, "event group not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "event_group_id": id, "news": newsViews(items), "ts": h.timestamp()})
}

func (h *Handler) limit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		h.fail(c, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(limit, maxListLimit), true
}

func (h *Handler) fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"ok": false, "error": message, "ts": h.timestamp()})
}

func (h *Handler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339)
}

func newsViews(items []database.NewsItem) []NewsView {
	views := make([]NewsView, 0, len(items))
	for _, item := range items {
		views = append(views, newNewsView(item))
	}
	return views
}
