package handlers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"studentpay-server-go/db"
	"studentpay-server-go/messaging"
	"studentpay-server-go/metrics"
	"studentpay-server-go/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// APIHandler holds the dependencies for API handlers
type APIHandler struct {
	Repos     *db.Repositories
	Publisher messaging.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	validate *validator.Validate
	now      func() time.Time
}

// NewAPIHandler creates a new APIHandler. A nil publisher disables events.
func NewAPIHandler(repos *db.Repositories, publisher messaging.Publisher, m *metrics.Metrics, logger *slog.Logger) *APIHandler {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &APIHandler{
		Repos:     repos,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
		validate:  validator.New(),
		now:       time.Now,
	}
}

type saveUserRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Code     any    `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type respondNotificationRequest struct {
	NotificationIndex *int `json:"notificationIndex" validate:"required"`
	Response          any  `json:"response"`
}

type confirmPaymentRequest struct {
	NotificationIndex *int `json:"notificationIndex" validate:"required"`
}

// --- Student Handlers ---

// GetStudent handles GET /api/get-student?code=...
func (h *APIHandler) GetStudent(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		respondError(c, http.StatusBadRequest, "Missing student code")
		return
	}

	student, err := h.Repos.Students.Get(c.Request.Context(), code)
	if err != nil {
		h.internalError(c, "get student failed", err)
		return
	}
	writeJSON(c, http.StatusOK, student)
}

// SaveStudent handles POST /api/save-student
func (h *APIHandler) SaveStudent(c *gin.Context) {
	var student models.Student
	if err := readJSON(c, &student); err != nil {
		h.bodyError(c, err)
		return
	}

	if _, ok := student.Code(); !ok {
		respondError(c, http.StatusBadRequest, "Missing student code")
		return
	}

	if err := h.Repos.Students.Save(c.Request.Context(), student); err != nil {
		h.internalError(c, "save student failed", err)
		return
	}
	h.Metrics.RecordStudentsSaved(1)

	respondSuccess(c, "Student data saved")
}

// ImportStudents handles POST /api/import-students (multipart, field "file")
func (h *APIHandler) ImportStudents(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Error retrieving uploaded file: "+err.Error())
		return
	}
	defer file.Close()

	h.Logger.InfoContext(c.Request.Context(), "received student import", "filename", header.Filename, "size", header.Size)

	imported, err := db.ImportStudentsFromExcel(c.Request.Context(), h.Repos.Students, file, h.Logger)
	if err != nil {
		if errors.Is(err, db.ErrInvalidWorkbook) || errors.Is(err, db.ErrEmptyWorkbook) || errors.Is(err, db.ErrInvalidStudentCode) {
			respondError(c, http.StatusBadRequest, "Failed to import students: "+err.Error())
			return
		}
		h.internalError(c, "student import failed", err)
		return
	}
	h.Metrics.RecordStudentsSaved(imported)

	writeJSON(c, http.StatusOK, gin.H{
		"status":        statusSuccess,
		"message":       "Import successful",
		"importedCount": imported,
	})
}

// --- User Handlers ---

// SaveUser handles POST /api/save-user
func (h *APIHandler) SaveUser(c *gin.Context) {
	var req saveUserRequest
	if err := readJSON(c, &req); err != nil {
		h.bodyError(c, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(c, http.StatusBadRequest, "Missing email or password")
		return
	}

	user := models.User{Email: req.Email, Password: req.Password, Code: req.Code}
	if err := h.Repos.Users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			respondError(c, http.StatusConflict, "Email already exists")
			return
		}
		h.internalError(c, "save user failed", err)
		return
	}

	h.Logger.InfoContext(c.Request.Context(), "account created", "email", req.Email)
	h.Metrics.RecordUserRegistered()

	respondSuccess(c, "Account created successfully")
}

// Login handles POST /api/login
func (h *APIHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := readJSON(c, &req); err != nil {
		h.bodyError(c, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(c, http.StatusBadRequest, "Missing credentials")
		return
	}

	user, err := h.Repos.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, db.ErrInvalidCredentials) {
			h.Metrics.RecordLogin(false)
			respondError(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.internalError(c, "login failed", err)
		return
	}

	h.Logger.InfoContext(c.Request.Context(), "user logged in", "email", req.Email)
	h.Metrics.RecordLogin(true)

	writeJSON(c, http.StatusOK, gin.H{
		"status":  statusSuccess,
		"message": "Login successful",
		"code":    user.Code,
	})
}

// --- Notification Handlers ---

// GetNotifications handles GET /api/get-notifications
func (h *APIHandler) GetNotifications(c *gin.Context) {
	notifications, err := h.Repos.Notifications.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "get notifications failed", err)
		return
	}
	writeJSON(c, http.StatusOK, notifications)
}

// ExportNotifications handles GET /api/export-notifications
func (h *APIHandler) ExportNotifications(c *gin.Context) {
	notifications, err := h.Repos.Notifications.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "export notifications failed", err)
		return
	}

	var buf bytes.Buffer
	if err := db.ExportNotificationsToExcel(notifications, &buf); err != nil {
		h.internalError(c, "export notifications failed", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="notifications.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// PayNotification handles POST /api/pay-notification
func (h *APIHandler) PayNotification(c *gin.Context) {
	var n models.Notification
	if err := readJSON(c, &n); err != nil {
		h.bodyError(c, err)
		return
	}
	if _, ok := n.StudentCodeKey(); !ok {
		respondError(c, http.StatusBadRequest, "Missing student code")
		return
	}

	n.Stamp(h.now())

	index, err := h.Repos.Notifications.Append(c.Request.Context(), n)
	if err != nil {
		h.internalError(c, "pay notification failed", err)
		return
	}

	h.publish(c.Request.Context(), messaging.EventNotificationCreated, index, n)
	respondSuccess(c, "Notification sent")
}

// RespondNotification handles POST /api/respond-notification
func (h *APIHandler) RespondNotification(c *gin.Context) {
	var req respondNotificationRequest
	if err := readJSON(c, &req); err != nil {
		h.bodyError(c, err)
		return
	}
	if h.validate.Struct(req) != nil || isBlank(req.Response) {
		respondError(c, http.StatusBadRequest, "Missing notification index or response data")
		return
	}

	index := *req.NotificationIndex
	updated, err := h.Repos.Notifications.SetResponse(c.Request.Context(), index, req.Response)
	if err != nil {
		if errors.Is(err, db.ErrNotificationNotFound) {
			respondError(c, http.StatusNotFound, "Notification not found")
			return
		}
		h.internalError(c, "respond notification failed", err)
		return
	}

	h.publish(c.Request.Context(), messaging.EventNotificationResponded, index, updated)
	respondSuccess(c, "Response saved")
}

// ConfirmPayment handles POST /api/confirm-payment
func (h *APIHandler) ConfirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := readJSON(c, &req); err != nil {
		h.bodyError(c, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(c, http.StatusBadRequest, "Missing notification index")
		return
	}

	index := *req.NotificationIndex
	updated, err := h.Repos.Notifications.MarkPaid(c.Request.Context(), index)
	if err != nil {
		if errors.Is(err, db.ErrNotificationNotFound) {
			respondError(c, http.StatusNotFound, "Notification not found")
			return
		}
		h.internalError(c, "confirm payment failed", err)
		return
	}

	h.publish(c.Request.Context(), messaging.EventNotificationPaid, index, updated)
	respondSuccess(c, "Payment confirmed")
}

// --- Ping Handler ---

// PingHandler handles GET /health
func PingHandler(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// publish emits an inbox event. Failures never change the HTTP response.
func (h *APIHandler) publish(ctx context.Context, eventType messaging.EventType, index int, n models.Notification) {
	h.Metrics.RecordNotificationEvent(string(eventType))

	studentCode, _ := n.StudentCodeKey()
	event := messaging.NotificationEvent{
		Type:        eventType,
		Index:       index,
		StudentCode: studentCode,
		Message:     n.Message,
		Timestamp:   n.Timestamp,
		Response:    n.Response,
		Paid:        n.IsPaid(),
	}
	if err := h.Publisher.Publish(ctx, event); err != nil {
		h.Logger.WarnContext(ctx, "failed to publish notification event", "type", eventType, "index", index, "error", err)
	}
}

// internalError logs err with the current stack and answers 500 with its text.
func (h *APIHandler) internalError(c *gin.Context, msg string, err error) {
	h.Logger.ErrorContext(c.Request.Context(), msg,
		"error", err,
		"path", c.Request.URL.Path,
		"stack", string(debug.Stack()),
	)
	respondError(c, http.StatusInternalServerError, err.Error())
}

// bodyError answers a request whose body could not be read. Only a missing
// length is a client error; decode failures get 500 with the decoder message.
func (h *APIHandler) bodyError(c *gin.Context, err error) {
	if errors.Is(err, errMissingContentLength) {
		respondError(c, http.StatusBadRequest, "Missing Content-Length header")
		return
	}
	h.internalError(c, "failed to decode request body", err)
}
