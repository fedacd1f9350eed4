package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/statement2sheet/backend/internal/models"
	"gorm.io/gorm"
)

// ContactHandler serves enterprise sales inquiries.
type ContactHandler struct {
	db *gorm.DB
}

// NewContactHandler constructs a ContactHandler.
func NewContactHandler(conn *gorm.DB) *ContactHandler {
	return &ContactHandler{db: conn}
}

// enterpriseContactRequest defines the request body for sales inquiries.
type enterpriseContactRequest struct {
	Name        string `json:"name"`
	CompanyName string `json:"company_name"`
	Website     string `json:"website"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Message     string `json:"message"`
}

// SubmitEnterprise stores an enterprise plan inquiry for follow-up.
func (h *ContactHandler) SubmitEnterprise(c *gin.Context) {
	var body enterpriseContactRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	body.CompanyName = strings.TrimSpace(body.CompanyName)
	body.Email = strings.TrimSpace(body.Email)
	body.Phone = strings.TrimSpace(body.Phone)
	body.Message = strings.TrimSpace(body.Message)
	if body.Name == "" || body.CompanyName == "" || body.Phone == "" || body.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, company_name, phone, and message are required"})
		return
	}
	if body.Email == "" || !strings.Contains(body.Email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid email is required"})
		return
	}

	row := models.EnterpriseContact{
		Name:        body.Name,
		CompanyName: body.CompanyName,
		Website:     strings.TrimSpace(body.Website),
		Email:       body.Email,
		Phone:       body.Phone,
		Message:     body.Message,
		Status:      "pending",
		SubmittedAt: time.Now().UTC(),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submit inquiry failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "inquiry received, our team will reach out shortly"})
}
