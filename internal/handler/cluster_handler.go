package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/author31/tinysignal/internal/cluster"
	"github.com/author31/tinysignal/internal/model"

	"github.com/gin-gonic/gin"
)

type ClusterService interface {
	DisplayData(ctx context.Context) ([]model.ClusterDisplay, error)
	ClusterPosts(ctx context.Context, clusterIdx int32, limit int) ([]model.Post, error)
	Recluster(ctx context.Context) error
}

type RecordCounter interface {
	CountRecords(ctx context.Context) (int, error)
}

type ClusterHandler struct {
	service ClusterService
	records RecordCounter
}

func NewClusterHandler(service ClusterService, records RecordCounter) *ClusterHandler {
	return &ClusterHandler{service: service, records: records}
}

func (h *ClusterHandler) Register(r gin.IRouter) {
	r.GET("/clusters", h.GetClusters)
	r.GET("/clusters/:idx/posts", h.GetClusterPosts)
	r.POST("/clusters/recluster", h.Recluster)
	r.GET("/health", h.GetHealth)
}

func (h *ClusterHandler) GetClusters(c *gin.Context) {
	data, err := h.service.DisplayData(c.Request.Context())
	if err != nil {
		slog.Error("error building cluster display", "error", err)
		writeClusterError(c, err)
		return
	}

	res := ClustersResponse{Clusters: make([]ClusterResponse, 0, len(data))}
	for _, d := range data {
		res.Clusters = append(res.Clusters, ClusterResponse{
			ClusterIdx: d.ClusterIdx,
			Title:      d.Title,
			Size:       d.Size,
			Posts:      toPostResponses(d.Posts),
		})
	}

	c.JSON(http.StatusOK, res)
}

func (h *ClusterHandler) GetClusterPosts(c *gin.Context) {
	id := c.Param("idx")

	idx, err := strconv.ParseInt(id, 10, 32)
	if err != nil || idx < 0 {
		slog.Error("invalid cluster idx", "idx", id, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cluster index"})
		return
	}

	limit := getQueryLimit(c)

	posts, err := h.service.ClusterPosts(c.Request.Context(), int32(idx), limit)
	if err != nil {
		slog.Error("error fetching cluster posts", "error", err, "cluster_idx", idx)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if len(posts) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No posts found for this cluster"})
		return
	}

	c.JSON(http.StatusOK, ClusterPostsResponse{
		ClusterIdx: int32(idx),
		Posts:      toPostResponses(posts),
		Limit:      limit,
	})
}

func (h *ClusterHandler) Recluster(c *gin.Context) {
	if err := h.service.Recluster(c.Request.Context()); err != nil {
		slog.Error("error reclustering", "error", err)
		writeClusterError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reclustered"})
}

func (h *ClusterHandler) GetHealth(c *gin.Context) {
	total, err := h.records.CountRecords(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
		"records":  total,
	})
}

func writeClusterError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cluster.ErrInsufficientData):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No posts to cluster yet"})
	case errors.Is(err, cluster.ErrConfiguration):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Clustering is misconfigured"})
	case errors.Is(err, cluster.ErrLabelGeneration):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Cluster title generation failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
	}
}

func toPostResponses(posts []model.Post) []PostResponse {
	res := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		res = append(res, PostResponse{
			Title:    p.Title,
			URL:      p.URL,
			HNPostID: p.HNPostID,
			HNURL:    fmt.Sprintf("https://news.ycombinator.com/item?id=%d", p.HNPostID),
		})
	}
	return res
}

func getQueryInt(name string, defaultValue int, c *gin.Context) int {
	param := c.Query(name)

	if param == "" {
		return defaultValue
	}

	parsedValue, err := strconv.Atoi(param)
	if err != nil {
		slog.Warn("invalid query parameter, using default", "param", name, "value", param, "error", err)
		return defaultValue
	}

	return parsedValue
}

func getQueryLimit(c *gin.Context) int {
	const (
		defaultLimit = 10
		maxLimit     = 50
	)

	limit := getQueryInt("limit", defaultLimit, c)
	if limit < 1 {
		slog.Warn("invalid query parameter, using default", "param", "limit", "value", limit, "default", defaultLimit)
		return defaultLimit
	}

	if limit > maxLimit {
		slog.Warn("query parameter exceeds max, clamping", "param", "limit", "value", limit, "max", maxLimit)
		return maxLimit
	}

	return limit
}
