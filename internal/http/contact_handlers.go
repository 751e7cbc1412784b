package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"contacts-api/internal/domain"
)

type contactRequest struct {
	FirstName      string `json:"first_name" binding:"required"`
	LastName       string `json:"last_name" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Phone          string `json:"phone" binding:"required"`
	Birthday       string `json:"birthday" binding:"required"` // YYYY-MM-DD
	AdditionalInfo string `json:"additional_info"`
}

type contactResponse struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Birthday       string `json:"birthday"`
	AdditionalInfo string `json:"additional_info,omitempty"`
}

func (r contactRequest) toDomain(userID, contactID int64) (*domain.Contact, error) {
	birthday, err := time.Parse("2006-01-02", r.Birthday)
	if err != nil {
		return nil, err
	}
	return &domain.Contact{
		ID:             contactID,
		UserID:         userID,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Phone:          r.Phone,
		Birthday:       birthday,
		AdditionalInfo: r.AdditionalInfo,
	}, nil
}

func contactToResponse(c domain.Contact) contactResponse {
	return contactResponse{
		ID:             c.ID,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		Phone:          c.Phone,
		Birthday:       c.Birthday.Format("2006-01-02"),
		AdditionalInfo: c.AdditionalInfo,
	}
}

func contactsToResponse(contacts []domain.Contact) []contactResponse {
	resp := make([]contactResponse, len(contacts))
	for i := range contacts {
		resp[i] = contactToResponse(contacts[i])
	}
	return resp
}

func (h *Handler) createContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := req.toDomain(currentUser(c).ID, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid birthday, expected YYYY-MM-DD"})
		return
	}

	created, err := h.contacts.Create(c.Request.Context(), contact)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, contactToResponse(*created))
}

func (h *Handler) listContacts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	contacts, err := h.contacts.List(c.Request.Context(), currentUser(c).ID, limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contactsToResponse(contacts))
}

func (h *Handler) getContact(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	contact, err := h.contacts.Get(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contactToResponse(*contact))
}

func (h *Handler) updateContact(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := req.toDomain(currentUser(c).ID, id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid birthday, expected YYYY-MM-DD"})
		return
	}

	updated, err := h.contacts.Update(c.Request.Context(), contact)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contactToResponse(*updated))
}

func (h *Handler) deleteContact(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	if err := h.contacts.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) searchContacts(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	contacts, err := h.contacts.Search(c.Request.Context(), currentUser(c).ID, query)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contactsToResponse(contacts))
}

func (h *Handler) upcomingBirthdays(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days parameter"})
		return
	}

	contacts, err := h.contacts.UpcomingBirthdays(c.Request.Context(), currentUser(c).ID, days)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contactsToResponse(contacts))
}

func contactID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
		return 0, false
	}
	return id, true
}
