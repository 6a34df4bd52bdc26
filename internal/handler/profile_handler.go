package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gvn-booking-api/internal/models"
	appErrors "github.com/noah-isme/gvn-booking-api/pkg/errors"
	"github.com/noah-isme/gvn-booking-api/pkg/response"
)

const (
	avatarField           = "image"
	cccdFrontField        = "cccd_front_image"
	cccdBackField         = "cccd_back_image"
	healthCertsField      = "health_certificates"
	maxHealthCertificates = 10
)

type profileService interface {
	GetProfile(ctx context.Context, userID string) (*models.UserSummary, error)
	UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.UserSummary, error)
	UpdateAvatar(ctx context.Context, userID string, file models.UploadedFile) (*models.UserSummary, error)
	DeleteAvatar(ctx context.Context, userID string) (*models.UserSummary, error)
	ChangePassword(ctx context.Context, principal *models.Principal, req models.ChangePasswordRequest, client models.ClientInfo) error
	RegisterPartner(ctx context.Context, userID string, form models.PartnerApplication, docs models.PartnerDocuments) (*models.UserSummary, error)
	UpdatePartnerProfile(ctx context.Context, userID string, form models.PartnerApplication, docs models.PartnerDocuments) (*models.UserSummary, error)
	PartnerDocuments(ctx context.Context, userID string) ([]models.DocumentLink, error)
}

type accountDeleter interface {
	DeleteAccount(ctx context.Context, principal *models.Principal, client models.ClientInfo) error
}

// ProfileHandler serves the signed-in user's profile and partner application.
type ProfileHandler struct {
	service     profileService
	accounts    accountDeleter
	maxFileSize int64
}

// NewProfileHandler constructs the handler. maxFileSize bounds each upload.
func NewProfileHandler(svc profileService, accounts accountDeleter, maxFileSize int64) *ProfileHandler {
	return &ProfileHandler{service: svc, accounts: accounts, maxFileSize: maxFileSize}
}

// Get godoc
// @Summary Get profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /user/profile [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	profile, err := h.service.GetProfile(c.Request.Context(), principal.User.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile, "")
}

// Update godoc
// @Summary Update profile
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /user/profile [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}

	profile, err := h.service.UpdateProfile(c.Request.Context(), principal.User.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile, "profile updated")
}

// Delete godoc
// @Summary Delete account
// @Description Delete the account, its sessions and partner profile. Stored files are removed in the background.
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /user/profile [delete]
func (h *ProfileHandler) Delete(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.accounts.DeleteAccount(c.Request.Context(), principal, clientInfo(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil, "account deleted")
}

// UpdateAvatar godoc
// @Summary Upload avatar
// @Tags Profile
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Avatar image"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /user/profile/avatar [put]
func (h *ProfileHandler) UpdateAvatar(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	header, err := c.FormFile(avatarField)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "image is required"))
		return
	}
	upload, err := readUpload(header, h.maxFileSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	profile, err := h.service.UpdateAvatar(c.Request.Context(), principal.User.ID, *upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile, "avatar updated")
}

// DeleteAvatar godoc
// @Summary Remove avatar
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /user/profile/avatar [delete]
func (h *ProfileHandler) DeleteAvatar(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	profile, err := h.service.DeleteAvatar(c.Request.Context(), principal.User.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile, "avatar removed")
}

// ChangePassword godoc
// @Summary Change password
// @Description Other sessions of the account are signed out; the current one stays active.
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ChangePasswordRequest true "Passwords"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /user/profile/change-password [post]
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid password payload"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), principal, req, clientInfo(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil, "password changed")
}

// RegisterPartner godoc
// @Summary Apply as partner
// @Tags Profile
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param full_name formData string true "Full name"
// @Param gender formData string false "Gender"
// @Param birthday formData string true "Birthday (yyyy/MM/dd)"
// @Param address formData string false "Address"
// @Param cccd formData string true "Citizen ID number"
// @Param years_of_experience formData int false "Years of experience"
// @Param cccd_front_image formData file true "Citizen ID front"
// @Param cccd_back_image formData file true "Citizen ID back"
// @Param health_certificates formData file false "Health certificates"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /user/applicant-register [post]
func (h *ProfileHandler) RegisterPartner(c *gin.Context) {
	principal, form, docs, ok := h.bindPartnerForm(c)
	if !ok {
		return
	}

	profile, err := h.service.RegisterPartner(c.Request.Context(), principal.User.ID, form, docs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, profile, "partner application submitted")
}

// UpdatePartnerProfile godoc
// @Summary Update partner application
// @Description Documents not provided are kept. The application returns to pending review.
// @Tags Profile
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param full_name formData string true "Full name"
// @Param gender formData string false "Gender"
// @Param birthday formData string true "Birthday (yyyy/MM/dd)"
// @Param address formData string false "Address"
// @Param cccd formData string true "Citizen ID number"
// @Param years_of_experience formData int false "Years of experience"
// @Param cccd_front_image formData file false "Citizen ID front"
// @Param cccd_back_image formData file false "Citizen ID back"
// @Param health_certificates formData file false "Health certificates"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /user/partner-profile [put]
func (h *ProfileHandler) UpdatePartnerProfile(c *gin.Context) {
	principal, form, docs, ok := h.bindPartnerForm(c)
	if !ok {
		return
	}

	profile, err := h.service.UpdatePartnerProfile(c.Request.Context(), principal.User.ID, form, docs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile, "partner profile updated")
}

// PartnerDocuments godoc
// @Summary Partner document links
// @Description Short-lived signed download links for the caller's identity and health documents.
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /user/partner-profile/documents [get]
func (h *ProfileHandler) PartnerDocuments(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	links, err := h.service.PartnerDocuments(c.Request.Context(), principal.User.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, links, "")
}

func (h *ProfileHandler) bindPartnerForm(c *gin.Context) (*models.Principal, models.PartnerApplication, models.PartnerDocuments, bool) {
	var (
		form models.PartnerApplication
		docs models.PartnerDocuments
	)

	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return nil, form, docs, false
	}

	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid partner form"))
		return nil, form, docs, false
	}

	multipartForm, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart form expected"))
		return nil, form, docs, false
	}

	if docs.CCCDFront, err = readUpload(formFile(multipartForm, cccdFrontField), h.maxFileSize); err != nil {
		response.Error(c, err)
		return nil, form, docs, false
	}
	if docs.CCCDBack, err = readUpload(formFile(multipartForm, cccdBackField), h.maxFileSize); err != nil {
		response.Error(c, err)
		return nil, form, docs, false
	}

	certificates := multipartForm.File[healthCertsField]
	if len(certificates) > maxHealthCertificates {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "too many health certificates"))
		return nil, form, docs, false
	}
	for _, header := range certificates {
		upload, err := readUpload(header, h.maxFileSize)
		if err != nil {
			response.Error(c, err)
			return nil, form, docs, false
		}
		docs.HealthCertificates = append(docs.HealthCertificates, *upload)
	}

	return principal, form, docs, true
}
