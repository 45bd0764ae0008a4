package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/doklady/internal/document/domain"
	"github.com/smallbiznis/doklady/internal/providers/email"
	"go.uber.org/zap"
)

func (s *Server) CreateDocument(c *gin.Context) {
	var req domain.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	doc, err := s.documents.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": doc})
}

func (s *Server) ListDocuments(c *gin.Context) {
	var req domain.ListDocumentsRequest
	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		t := domain.DocumentType(raw)
		if !t.Valid() {
			AbortWithError(c, newValidationError("type", "invalid_type", "invalid document type"))
			return
		}
		req.Type = &t
	}

	resp, err := s.documents.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Documents})
}

func (s *Server) GetDocumentByID(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	doc, err := s.documents.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.documents.ListItems(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": doc, "items": items})
}

func (s *Server) UpdateDocument(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	var req domain.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	doc, err := s.documents.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": doc})
}

func (s *Server) DeleteDocument(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	if err := s.documents.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) DeriveInvoice(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	doc, created, err := s.documents.DeriveInvoice(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": doc, "created": created})
}

func (s *Server) DeriveCreditNote(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	doc, created, err := s.documents.DeriveCreditNote(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": doc, "created": created})
}

func (s *Server) GetDocumentPDF(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	force := c.Query("regenerate") == "true"

	handle, err := s.artifacts.Get(c.Request.Context(), id, force)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data, err := s.artifacts.Read(handle.Ref)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("X-Artifact-Cache", cacheHeader(handle.FromCache))
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", handle.Ref))
	c.Data(http.StatusOK, "application/pdf", data)
}

type sendDocumentRequest struct {
	Recipient string `json:"recipient"`
	Force     bool   `json:"force"`
}

func (s *Server) SendDocument(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	var req sendDocumentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
			return
		}
	}

	doc, err := s.documents.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		recipient = strings.TrimSpace(doc.CustomerEmail)
	}
	if recipient == "" || !strings.Contains(recipient, "@") {
		AbortWithError(c, domain.ErrInvalidRecipient)
		return
	}

	if !req.Force {
		sent, err := s.documents.IsNotified(c.Request.Context(), id, recipient)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if sent {
			c.JSON(http.StatusOK, gin.H{"status": "already_sent", "recipient": recipient})
			return
		}
	}

	handle, err := s.artifacts.Get(c.Request.Context(), id, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	pdf, err := s.artifacts.Read(handle.Ref)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subject := fmt.Sprintf("%s from %s", doc.DisplayNumber, s.cfg.Supplier.Name)
	body := fmt.Sprintf("<p>Please find document %s attached.</p>", doc.DisplayNumber)
	attachment := emailAttachment(doc.DisplayNumber, pdf)

	if err := s.mailer.Send(c.Request.Context(), []string{recipient}, subject, body, attachment); err != nil {
		s.log.Error("email dispatch failed",
			zap.String("document_id", id),
			zap.String("recipient", recipient),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	if err := s.documents.MarkNotified(c.Request.Context(), id, recipient); err != nil {
		AbortWithError(c, err)
		return
	}
	s.metrics.EmailSent()

	c.JSON(http.StatusOK, gin.H{"status": "sent", "recipient": recipient})
}

func documentID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := snowflake.ParseString(id); err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return "", false
	}
	return id, true
}

func emailAttachment(number string, data []byte) email.Attachment {
	return email.Attachment{
		Filename:    number + ".pdf",
		ContentType: "application/pdf",
		Data:        data,
	}
}

func cacheHeader(fromCache bool) string {
	if fromCache {
		return "hit"
	}
	return "miss"
}
