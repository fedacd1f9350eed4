package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/statement2sheet/backend/internal/auth"
	"github.com/statement2sheet/backend/internal/db"
	"github.com/statement2sheet/backend/internal/extract"
	"github.com/statement2sheet/backend/internal/models"
	"github.com/statement2sheet/backend/internal/quota"
	"gorm.io/gorm"
)

// maxUploadBytes caps accepted PDF uploads.
const maxUploadBytes = 32 << 20

// ConvertHandler serves authenticated PDF conversion and its quota endpoints.
type ConvertHandler struct {
	db        *gorm.DB
	quota     *quota.Engine
	extractor *extract.Client
}

// NewConvertHandler constructs a ConvertHandler.
func NewConvertHandler(conn *gorm.DB, engine *quota.Engine, extractor *extract.Client) *ConvertHandler {
	return &ConvertHandler{db: conn, quota: engine, extractor: extractor}
}

// CheckPages reports the user's current allowance without consuming it.
func (h *ConvertHandler) CheckPages(c *gin.Context) {
	result, errCheck := h.quota.Check(c.Request.Context(), auth.UserIDFromContext(c), 1)
	if errCheck != nil {
		if errors.Is(errCheck, quota.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quota check failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ProcessPDF converts an uploaded statement. Quota is checked before the
// extraction call and deducted only after it succeeds, in the same
// transaction that records the document, so a failed extraction never costs
// pages.
func (h *ConvertHandler) ProcessPDF(c *gin.Context) {
	userID := auth.UserIDFromContext(c)

	pdf, filename, errUpload := readPDFUpload(c)
	if errUpload != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errUpload.Error()})
		return
	}

	pageCount := extract.CountPages(pdf)

	check, errCheck := h.quota.Check(c.Request.Context(), userID, pageCount)
	if errCheck != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quota check failed"})
		return
	}
	if !check.Allowed {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":           "insufficient pages",
			"message":         check.Message,
			"pages_required":  pageCount,
			"pages_remaining": check.Remaining,
			"reset_date":      check.ResetAt,
		})
		return
	}

	data, errExtract := h.extractor.Extract(c.Request.Context(), pdf)
	if errExtract != nil {
		if errors.Is(errExtract, extract.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "conversion service not configured"})
			return
		}
		log.WithError(errExtract).Warn("statement extraction failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "could not extract data from this PDF, please try again"})
		return
	}

	now := time.Now().UTC()
	doc := models.Document{
		ID:               uuid.NewString(),
		UserID:           userID,
		OriginalFilename: filename,
		FileSize:         int64(len(pdf)),
		PageCount:        pageCount,
		PagesDeducted:    pageCount,
		Status:           "completed",
		ConversionDate:   now,
		CreatedAt:        now,
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errDeduct := h.quota.DeductTx(c.Request.Context(), tx, userID, pageCount); errDeduct != nil {
			return errDeduct
		}
		return tx.Create(&doc).Error
	})
	if errTx != nil {
		if errors.Is(errTx, quota.ErrInsufficientQuota) {
			// A concurrent conversion won the remaining allowance.
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient pages"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record conversion failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document_id":    doc.ID,
		"pages_deducted": pageCount,
		"data":           data,
	})
}

// Documents lists the user's conversion history, newest first. A search
// query filters by filename, case-insensitively on either dialect.
func (h *ConvertHandler) Documents(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", auth.UserIDFromContext(c))
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+search+"%")
		q = q.Where(db.CaseInsensitiveLikeExpr(h.db, "original_filename"), pattern)
	}

	var rows []models.Document
	if errFind := q.
		Order("conversion_date DESC").
		Limit(100).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list documents failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":                row.ID,
			"original_filename": row.OriginalFilename,
			"file_size":         row.FileSize,
			"page_count":        row.PageCount,
			"pages_deducted":    row.PagesDeducted,
			"status":            row.Status,
			"download_count":    row.DownloadCount,
			"conversion_date":   row.ConversionDate,
		})
	}
	c.JSON(http.StatusOK, gin.H{"documents": out})
}

// readPDFUpload pulls and validates the multipart PDF upload.
func readPDFUpload(c *gin.Context) ([]byte, string, error) {
	file, header, errForm := c.Request.FormFile("file")
	if errForm != nil {
		return nil, "", errors.New("pdf file is required")
	}
	defer func() { _ = file.Close() }()

	if header.Size > maxUploadBytes {
		return nil, "", errors.New("file exceeds the 32MB limit")
	}

	pdf, errRead := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if errRead != nil {
		return nil, "", errors.New("read upload failed")
	}
	if len(pdf) > maxUploadBytes {
		return nil, "", errors.New("file exceeds the 32MB limit")
	}
	if !extract.IsPDF(pdf) {
		return nil, "", errors.New("only PDF files are supported")
	}
	return pdf, header.Filename, nil
}
