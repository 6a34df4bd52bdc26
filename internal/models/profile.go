package models

// UpdateProfileRequest carries the editable profile fields. Nil fields are
// left unchanged.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=255"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Gender   *string `json:"gender" validate:"omitempty,max=20"`
	Birthday *string `json:"birthday" validate:"omitempty"`
	Address  *string `json:"address" validate:"omitempty,max=1000"`
}

// UploadedFile is an in-memory upload handed to the file store.
type UploadedFile struct {
	Name string
	Data []byte
}

// PartnerApplication is the form submitted to register or update a
// partner profile.
type PartnerApplication struct {
	FullName          string `form:"full_name" validate:"required,max=255"`
	Gender            string `form:"gender" validate:"omitempty,max=20"`
	Birthday          string `form:"birthday" validate:"required"`
	Address           string `form:"address" validate:"omitempty,max=1000"`
	CCCD              string `form:"cccd" validate:"required,numeric,min=9,max=12"`
	YearsOfExperience int    `form:"years_of_experience" validate:"gte=0,lte=80"`
}

// PartnerDocuments are the uploaded identity and health documents.
type PartnerDocuments struct {
	CCCDFront          *UploadedFile
	CCCDBack           *UploadedFile
	HealthCertificates []UploadedFile
}
