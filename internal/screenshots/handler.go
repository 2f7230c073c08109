package screenshots

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wfh-tracker/backend/internal/models"
	"github.com/wfh-tracker/backend/pkg/response"
	"github.com/wfh-tracker/backend/pkg/storage"
)

// Handler handles screenshot metadata and upload endpoints. The core only
// relays the (user, time, key) association; binaries go straight to S3.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a screenshots handler. s3 may be nil; upload endpoints
// then return 503 while metadata endpoints keep working.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// CreateRequest is the body for POST /screenshots.
type CreateRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	TakenAt string `json:"taken_at" binding:"required"`
	S3Key   string `json:"s3_key" binding:"required"`
}

// Create handles POST /screenshots: record metadata for an already-uploaded object.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	takenAt, err := time.Parse(time.RFC3339Nano, req.TakenAt)
	if err != nil {
		response.BadRequest(c, "invalid taken_at, expected RFC3339")
		return
	}
	sc, err := h.repo.Create(c.Request.Context(), req.UserID, takenAt.UTC(), req.S3Key)
	if err != nil {
		h.logger.Error("create screenshot metadata failed", zap.Error(err), zap.String("user_id", req.UserID))
		response.Internal(c, "failed to record screenshot")
		return
	}
	response.Created(c, sc)
}

// UploadURLRequest is the body for POST /screenshots/upload-url.
type UploadURLRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	TakenAt     string `json:"taken_at" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// GenerateUploadURL handles POST /screenshots/upload-url: pre-signed PUT for the agent.
func (h *Handler) GenerateUploadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "screenshot storage not configured")
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	takenAt, err := time.Parse(time.RFC3339Nano, req.TakenAt)
	if err != nil {
		response.BadRequest(c, "invalid taken_at, expected RFC3339")
		return
	}
	if !storage.ValidateScreenshotType(req.ContentType) {
		response.BadRequest(c, "unsupported content type")
		return
	}
	key := storage.ScreenshotKey(req.UserID, takenAt, req.ContentType)
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), key, req.ContentType, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign upload failed", zap.Error(err), zap.String("user_id", req.UserID))
		response.Internal(c, "failed to generate upload url")
		return
	}
	response.OK(c, gin.H{"s3_key": key, "upload_url": url})
}

// Upload handles POST /screenshots/upload: multipart upload relayed through the
// server, for agents that cannot use pre-signed URLs.
func (h *Handler) Upload(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "screenshot storage not configured")
		return
	}
	userID := c.PostForm("user_id")
	if userID == "" {
		response.BadRequest(c, "user_id required")
		return
	}
	takenAt := time.Now().UTC()
	if raw := c.PostForm("taken_at"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			response.BadRequest(c, "invalid taken_at, expected RFC3339")
			return
		}
		takenAt = t.UTC()
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file required")
		return
	}
	defer file.Close()
	if header.Size > storage.MaxScreenshotSize {
		response.BadRequest(c, "file too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !storage.ValidateScreenshotType(contentType) {
		response.BadRequest(c, "unsupported content type")
		return
	}

	key := storage.ScreenshotKey(userID, takenAt, contentType)
	if _, err := h.s3.Upload(c.Request.Context(), key, contentType, file); err != nil {
		h.logger.Error("screenshot upload failed", zap.Error(err), zap.String("user_id", userID))
		response.Internal(c, "failed to upload screenshot")
		return
	}
	sc, err := h.repo.Create(c.Request.Context(), userID, takenAt, key)
	if err != nil {
		h.logger.Error("record screenshot failed", zap.Error(err), zap.String("user_id", userID))
		response.Internal(c, "failed to record screenshot")
		return
	}
	response.Created(c, sc)
}

// screenshotView is a metadata row plus a pre-signed download URL.
type screenshotView struct {
	models.Screenshot
	DownloadURL string `json:"download_url,omitempty"`
}

// ListByUser handles GET /users/:user_id/screenshots?date=YYYY-MM-DD (default today).
func (h *Handler) ListByUser(c *gin.Context) {
	userID := c.Param("user_id")
	date := c.Query("date")
	if date == "" {
		date = models.DayOf(time.Now())
	}
	dayStart, dayEnd, err := models.DayBounds(date)
	if err != nil {
		response.BadRequest(c, "invalid date, expected YYYY-MM-DD")
		return
	}
	list, err := h.repo.ListByUserAndDay(c.Request.Context(), userID, dayStart, dayEnd)
	if err != nil {
		h.logger.Error("list screenshots failed", zap.Error(err), zap.String("user_id", userID))
		response.Internal(c, "failed to list screenshots")
		return
	}
	views := make([]screenshotView, 0, len(list))
	for _, sc := range list {
		v := screenshotView{Screenshot: sc}
		if h.s3 != nil {
			if url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), sc.S3Key, h.s3.PresignExpire()); err == nil {
				v.DownloadURL = url
			}
		}
		views = append(views, v)
	}
	response.OK(c, gin.H{"user_id": userID, "date": date, "screenshots": views})
}
