package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"streamhub/internal/domain"
	"streamhub/internal/pipeline"
	"streamhub/internal/repository"
	"streamhub/internal/service"
	"streamhub/internal/storage"
)

// Handler wires HTTP routes to domain services. It is the job producer:
// submissions are acknowledged with queue depth and never wait for the
// pipeline.
type Handler struct {
	catalog   service.CatalogService
	users     service.UserService
	worker    *pipeline.Worker
	jobs      repository.JobRepository
	storage   storage.Service
	bucket    string
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewHandler(catalog service.CatalogService, users service.UserService, worker *pipeline.Worker, jobs repository.JobRepository, store storage.Service, bucket, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{
		catalog:   catalog,
		users:     users,
		worker:    worker,
		jobs:      jobs,
		storage:   store,
		bucket:    bucket,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		authed := api.Group("")
		authed.Use(h.authMiddleware())
		{
			authed.POST("/torrents", h.submitTorrent)
			authed.GET("/jobs", h.listJobs)
			authed.GET("/videos", h.listVideos)
			authed.GET("/videos/:id", h.getVideo)
			authed.GET("/playlists", h.listPlaylists)
			authed.GET("/playlists/:id", h.getPlaylist)
			authed.GET("/storage/objects", h.listObjects)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return h.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}

		c.Set("user_id", claims.Subject)
		c.Next()
	}
}

func (h *Handler) userID(c *gin.Context) string {
	return c.GetString("user_id")
}

type registerRequest struct {
	Username         string `json:"username" binding:"required"`
	Password         string `json:"password" binding:"required"`
	RegisterPassword string `json:"register_password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password, req.RegisterPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRegistrationPassword):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	expiresAt := time.Now().Add(h.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString(h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      signed,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

type submitTorrentRequest struct {
	Magnet string `json:"magnet" binding:"required"`
	Name   string `json:"name"`
}

func (h *Handler) submitTorrent(c *gin.Context) {
	var req submitTorrentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, depth, err := h.worker.Enqueue(c.Request.Context(), req.Magnet, h.userID(c), req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":      jobID,
		"queue_depth": depth,
	})
}

type jobResponse struct {
	ID           int64  `json:"id"`
	MagnetLink   string `json:"magnet_link"`
	TorrentName  string `json:"torrent_name,omitempty"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func (h *Handler) listJobs(c *gin.Context) {
	jobs, err := h.jobs.ListByOwner(c.Request.Context(), h.userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]jobResponse, len(jobs))
	for i, job := range jobs {
		resp[i] = jobResponse{
			ID:           job.ID,
			MagnetLink:   job.MagnetLink,
			TorrentName:  job.TorrentName,
			Status:       string(job.Status),
			Progress:     job.Progress,
			ErrorMessage: job.ErrorMessage,
			CreatedAt:    job.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, resp)
}

type videoResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	StoragePath     string `json:"storage_path,omitempty"`
	ThumbnailPath   string `json:"thumbnail_path,omitempty"`
	Status          string `json:"status"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	SizeBytes       int64  `json:"size_bytes,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func videoToResponse(v domain.Video) videoResponse {
	return videoResponse{
		ID:              v.ID,
		Title:           v.Title,
		StoragePath:     v.StoragePath,
		ThumbnailPath:   v.ThumbnailPath,
		Status:          string(v.Status),
		DurationSeconds: v.DurationSeconds,
		Width:           v.Width,
		Height:          v.Height,
		SizeBytes:       v.SizeBytes,
		CreatedAt:       v.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) listVideos(c *gin.Context) {
	videos, err := h.catalog.ListVideos(c.Request.Context(), h.userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]videoResponse, len(videos))
	for i := range videos {
		resp[i] = videoToResponse(videos[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getVideo(c *gin.Context) {
	video, err := h.catalog.GetVideo(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if video.OwnerID != h.userID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}
	c.JSON(http.StatusOK, videoToResponse(*video))
}

type playlistEntryResponse struct {
	VideoID  string `json:"video_id"`
	Position int    `json:"position"`
}

type playlistResponse struct {
	ID        string                  `json:"id"`
	Title     string                  `json:"title"`
	CreatedAt string                  `json:"created_at"`
	Entries   []playlistEntryResponse `json:"entries,omitempty"`
}

func (h *Handler) listPlaylists(c *gin.Context) {
	playlists, err := h.catalog.ListPlaylists(c.Request.Context(), h.userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]playlistResponse, len(playlists))
	for i, p := range playlists {
		resp[i] = playlistResponse{
			ID:        p.ID,
			Title:     p.Title,
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getPlaylist(c *gin.Context) {
	playlist, err := h.catalog.GetPlaylist(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if playlist.OwnerID != h.userID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "playlist not found"})
		return
	}

	entries, err := h.catalog.ListPlaylistEntries(c.Request.Context(), playlist.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := playlistResponse{
		ID:        playlist.ID,
		Title:     playlist.Title,
		CreatedAt: playlist.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, playlistEntryResponse{
			VideoID:  entry.VideoID,
			Position: entry.Position,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listObjects(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object storage is not configured"})
		return
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, c.Query("prefix"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]gin.H, len(objects))
	for i, obj := range objects {
		item := gin.H{"key": obj.Key, "size": obj.Size}
		if obj.LastModified != nil {
			item["last_modified"] = obj.LastModified.UTC().Format(time.RFC3339)
		}
		resp[i] = item
	}
	c.JSON(http.StatusOK, resp)
}
