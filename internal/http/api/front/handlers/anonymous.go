package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/statement2sheet/backend/internal/extract"
	"github.com/statement2sheet/backend/internal/quota"
)

// AnonymousHandler serves the no-account trial conversion endpoints.
type AnonymousHandler struct {
	limiter   *quota.AnonymousLimiter
	extractor *extract.Client
}

// NewAnonymousHandler constructs an AnonymousHandler.
func NewAnonymousHandler(limiter *quota.AnonymousLimiter, extractor *extract.Client) *AnonymousHandler {
	return &AnonymousHandler{limiter: limiter, extractor: extractor}
}

// Check reports whether the visitor still has the trial conversion.
func (h *AnonymousHandler) Check(c *gin.Context) {
	fingerprint := visitorFingerprint(c)
	if fingerprint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fingerprint is required"})
		return
	}

	result, errCheck := h.limiter.Check(c.Request.Context(), fingerprint, c.ClientIP())
	if errCheck != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "limit check failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Convert runs the one-shot trial conversion. The allowance is consumed only
// after extraction succeeds; the unique constraints arbitrate concurrent
// attempts from the same visitor.
func (h *AnonymousHandler) Convert(c *gin.Context) {
	fingerprint := visitorFingerprint(c)
	if fingerprint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fingerprint is required"})
		return
	}
	ip := c.ClientIP()

	check, errCheck := h.limiter.Check(c.Request.Context(), fingerprint, ip)
	if errCheck != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "limit check failed"})
		return
	}
	if !check.Allowed {
		c.JSON(http.StatusForbidden, gin.H{
			"error":           "free conversion already used",
			"requires_signup": true,
		})
		return
	}

	pdf, filename, errUpload := readPDFUpload(c)
	if errUpload != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errUpload.Error()})
		return
	}

	data, errExtract := h.extractor.Extract(c.Request.Context(), pdf)
	if errExtract != nil {
		if errors.Is(errExtract, extract.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "conversion service not configured"})
			return
		}
		log.WithError(errExtract).Warn("anonymous extraction failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "could not extract data from this PDF, please try again"})
		return
	}

	meta := quota.AnonymousMeta{
		OriginalFilename: filename,
		FileSize:         int64(len(pdf)),
		PageCount:        extract.CountPages(pdf),
	}
	if errRecord := h.limiter.Record(c.Request.Context(), fingerprint, ip, meta); errRecord != nil {
		if errors.Is(errRecord, quota.ErrConversionLimitReached) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":           "free conversion already used",
				"requires_signup": true,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record conversion failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":            data,
		"requires_signup": true,
		"message":         "Sign up to convert more statements.",
	})
}

// visitorFingerprint reads the browser fingerprint from header or form.
func visitorFingerprint(c *gin.Context) string {
	if fp := strings.TrimSpace(c.GetHeader("X-Fingerprint")); fp != "" {
		return fp
	}
	if fp := strings.TrimSpace(c.PostForm("fingerprint")); fp != "" {
		return fp
	}
	return strings.TrimSpace(c.Query("fingerprint"))
}
