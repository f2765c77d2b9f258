package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/appctl/internal/call"
	"github.com/danmuck/appctl/internal/stats"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": component,
			"target":    s.ctl.Target(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := s.callContext(c)
		defer cancel()
		done, err := s.ctl.IsDoneInitializing(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		status := http.StatusOK
		if !done {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": done, "target": s.ctl.Target()})
	})

	api := s.router.Group("/controller")

	api.GET("/public-ips", func(c *gin.Context) {
		ctx, cancel := s.callContext(c)
		defer cancel()
		ips, err := s.ctl.GetAllPublicIPs(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"public_ips": ips})
	})

	api.GET("/db", func(c *gin.Context) {
		ctx, cancel := s.callContext(c)
		defer cancel()
		up, err := s.ctl.PrimaryDBIsUp(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"primary_db_is_up": up})
	})

	api.GET("/properties", func(c *gin.Context) {
		ctx, cancel := s.callContext(c)
		defer cancel()
		props, err := s.ctl.GetProperty(ctx, c.DefaultQuery("regex", ".*"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"properties": props})
	})

	api.GET("/uploads/:id", func(c *gin.Context) {
		ctx, cancel := s.callContext(c)
		defer cancel()
		status, err := s.ctl.GetAppUploadStatus(ctx, c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": status})
	})

	api.GET("/instances", func(c *gin.Context) {
		ctx, cancel := s.callContext(c)
		defer cancel()
		instances, err := s.ctl.GetInstanceInfo(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"instances": instances})
	})

	api.GET("/requests/:version", func(c *gin.Context) {
		ctx, cancel := s.callContext(c)
		defer cancel()
		info, err := s.ctl.GetRequestInfo(ctx, c.Param("version"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	})

	api.GET("/stats/node", func(c *gin.Context) {
		ctx, cancel := s.callContext(c)
		defer cancel()
		raw, err := s.ctl.GetNodeStatsJSON(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		node, err := stats.DecodeNode(raw)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, node)
	})

	api.GET("/stats/cluster", func(c *gin.Context) {
		ctx, cancel := s.callContext(c)
		defer cancel()
		raw, err := s.ctl.GetClusterStatsJSON(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		nodes, err := stats.DecodeCluster(raw)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"nodes": nodes})
	})
}

// fail writes err as JSON with a status derived from its failure kind.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	body := gin.H{"error": err.Error(), "target": s.ctl.Target()}
	if kind, ok := call.KindOf(err); ok {
		body["kind"] = string(kind)
	}
	c.JSON(statusFor(err), body)
}

func statusFor(err error) int {
	kind, ok := call.KindOf(err)
	if !ok {
		if errors.Is(err, stats.ErrInvalidProxyStats) || errors.Is(err, stats.ErrMalformedStats) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
	switch kind {
	case call.KindTimeout:
		return http.StatusGatewayTimeout
	case call.KindTransportFault, call.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
