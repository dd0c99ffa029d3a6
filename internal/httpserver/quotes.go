package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tinytelemetry/litclock/internal/duckdb"
	"github.com/tinytelemetry/litclock/internal/model"
	"github.com/tinytelemetry/litclock/internal/quote"
)

const (
	immutableCache = "public, max-age=31536000, immutable"
	revalidate     = "no-cache"
)

// handlePartition serves one hour partition. A request carrying the
// current version in "v" may be cached forever; anything else must
// revalidate against the ETag.
func (s *Server) handlePartition(c *gin.Context) {
	hourKey, ok := parsePartitionFile(c.Param("file"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown partition"})
		return
	}

	ctx := c.Request.Context()
	version := model.DefaultDatasetVersion
	if v, err := s.store.CurrentVersion(ctx); err == nil {
		version = v.Version
	} else if !errors.Is(err, duckdb.ErrNoDataset) {
		s.logger.Warn("read dataset version", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read dataset version"})
		return
	}

	etag := fmt.Sprintf(`"%s-%s"`, version, hourKey)
	c.Header("ETag", etag)
	if c.Query("v") == version {
		c.Header("Cache-Control", immutableCache)
	} else {
		c.Header("Cache-Control", revalidate)
	}
	if match := c.GetHeader("If-None-Match"); match != "" && strings.Contains(match, etag) {
		c.Status(http.StatusNotModified)
		return
	}

	part, err := s.store.Partition(ctx, hourKey)
	if err != nil {
		s.logger.Warn("read partition", zap.String("hour", hourKey), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read partition"})
		return
	}
	if part == nil {
		part = model.QuotePartition{}
	}
	c.JSON(http.StatusOK, part)
}

// storeSource adapts the store to quote.PartitionSource for one request.
type storeSource struct {
	ctx    context.Context
	store  QuoteStore
	logger *zap.Logger
}

func (s storeSource) Get(hourKey string) (model.QuotePartition, bool) {
	part, err := s.store.Partition(s.ctx, hourKey)
	if err != nil {
		s.logger.Warn("read partition", zap.String("hour", hourKey), zap.Error(err))
		return nil, false
	}
	return part, true
}

type quoteResponse struct {
	QuoteFirst    string `json:"quote_first"`
	QuoteTimeCase string `json:"quote_time_case"`
	QuoteLast     string `json:"quote_last"`
	Author        string `json:"author"`
	Title         string `json:"title"`
	Format        string `json:"format"`
}

// handleNow resolves the quote for the current minute in ?tz= (default
// UTC) with ?format=24|12 (default 12).
func (s *Server) handleNow(c *gin.Context) {
	tz := c.DefaultQuery("tz", model.DefaultTimezone)
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "Local" {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid timezone %q", tz)})
		return
	}
	format := c.DefaultQuery("format", "12")
	if format != "12" && format != "24" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be 12 or 24"})
		return
	}
	use24 := format == "24"

	tod := model.TimeOfDayFrom(s.now().In(loc))
	resolver := quote.NewResolver(storeSource{ctx: c.Request.Context(), store: s.store, logger: s.logger}, nil)

	body := gin.H{
		"time":     quote.FormatDigital(tod, use24),
		"minute":   tod.MinuteKey(),
		"timezone": loc.String(),
		"quote":    nil,
	}
	if q, ok := resolver.Resolve(tod, use24); ok {
		d := quote.Display(q)
		body["quote"] = quoteResponse{
			QuoteFirst:    d.QuoteFirst,
			QuoteTimeCase: d.QuoteTimeCase,
			QuoteLast:     d.QuoteLast,
			Author:        d.Author,
			Title:         d.Title,
			Format:        quote.Classify(q.QuoteTimeCase).String(),
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleStats(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := s.store.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read stats"})
		return
	}
	formats, err := s.store.FormatCounts(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read format counts"})
		return
	}

	byHour := make(map[string]int, model.HoursPerDay)
	for h, n := range st.ByHour {
		byHour[model.HourKey(h)] = n
	}
	c.JSON(http.StatusOK, gin.H{
		"total":           st.Total,
		"minutes_covered": st.MinutesCovered,
		"coverage_pct":    float64(st.MinutesCovered) / float64(model.MinutesPerDay) * 100,
		"by_hour":         byHour,
		"formats":         formats,
	})
}

func (s *Server) handleManifest(c *gin.Context) {
	ctx := c.Request.Context()
	v, err := s.store.CurrentVersion(ctx)
	if errors.Is(err, duckdb.ErrNoDataset) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no dataset imported"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read dataset version"})
		return
	}
	st, err := s.store.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read stats"})
		return
	}

	m := model.DatasetManifest{
		Version:     v.Version,
		GeneratedAt: v.ImportedAt,
		Total:       st.Total,
		Counts:      make(map[string]int, model.HoursPerDay),
	}
	for h, n := range st.ByHour {
		m.Counts[model.HourKey(h)] = n
	}
	c.JSON(http.StatusOK, m)
}
