package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/platform/auth"
)

const apiPrefix = "/api/v1/"

// Record resources whose access is audited. Stateless helpers such as
// /api/v1/rut/validate carry no patient data.
var auditedResources = map[string]bool{
	"patients":      true,
	"doctors":       true,
	"consultations": true,
	"exams":         true,
	"medications":   true,
	"prescriptions": true,
}

// AuditEntry records who touched which clinical record and how.
type AuditEntry struct {
	UserID       string
	UserRoles    []string
	ResourceType string
	ResourceID   string
	PatientID    string
	Action       string // read, create, update, delete
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	Timestamp    time.Time
	RequestID    string
	StatusCode   int
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs an "record_access" line for every request against a clinical
// record route and hands the entry to each recorder. Recorder failures are
// logged and never change the response.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			resource, id := splitResourcePath(path)
			if !auditedResources[resource] {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			ctx := req.Context()
			entry := AuditEntry{
				UserID:       auth.UserIDFromContext(ctx),
				UserRoles:    auth.RolesFromContext(ctx),
				ResourceType: resource,
				ResourceID:   id,
				PatientID:    extractPatientID(c, resource, id),
				Action:       httpMethodToAction(req.Method),
				IPAddress:    c.RealIP(),
				UserAgent:    req.UserAgent(),
				Path:         path,
				Method:       req.Method,
				Timestamp:    time.Now().UTC(),
				StatusCode:   status,
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// splitResourcePath turns /api/v1/patients/<id>/exams into ("patients", "<id>").
// The id is only returned when it parses as a UUID.
func splitResourcePath(path string) (resource, id string) {
	if !strings.HasPrefix(path, apiPrefix) {
		return "", ""
	}
	segments := strings.Split(strings.TrimPrefix(path, apiPrefix), "/")
	resource = segments[0]
	if len(segments) > 1 && isUUIDLike(segments[1]) {
		id = segments[1]
	}
	return resource, id
}

// extractPatientID finds the patient a request concerns: the id under
// /patients/<id>, or a patient_id query parameter on other resources.
func extractPatientID(c echo.Context, resource, id string) string {
	if resource == "patients" && id != "" {
		return id
	}
	if pid := c.QueryParam("patient_id"); isUUIDLike(pid) {
		return pid
	}
	return ""
}

func isUUIDLike(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
