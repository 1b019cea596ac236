package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/api/status", handleStatus(opts))
	router.GET("/api/cache", handleCache(opts))
	router.GET("/api/logs", handleLogs(opts))
	router.GET("/api/events", handleSSE(opts))
}

func handleStatus(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := StatusSummary(opts.DB)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"uptime_seconds":     int64(time.Since(opts.StartedAt).Seconds()),
			"turns_total":        summary.TurnsTotal,
			"guilds_with_memory": summary.GuildsWithMemory,
			"listening_channels": summary.ListeningChannels,
			"cached_guilds":      cachedGuildCount(opts),
		})
	}
}

func handleCache(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Cache == nil {
			c.JSON(http.StatusOK, gin.H{"guilds": []any{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"guilds": opts.Cache.Stats()})
	}
}

func handleLogs(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Logs == nil {
			c.JSON(http.StatusOK, gin.H{"entries": []any{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": opts.Logs.Entries()})
	}
}

func cachedGuildCount(opts StartOpts) int {
	if opts.Cache == nil {
		return 0
	}
	return len(opts.Cache.Stats())
}
