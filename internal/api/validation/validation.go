package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	maxTitleLength = 255
	maxCodeLength  = 255
	// MaxCodesPerRequest bounds find-or-create and bulk payloads.
	MaxCodesPerRequest = 5000
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func requireTitle(errs []FieldError, field, value string, max int) []FieldError {
	v := strings.TrimSpace(value)
	if v == "" {
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	}
	if utf8.RuneCountInString(v) > max {
		return append(errs, FieldError{Field: field, Message: fmt.Sprintf("%s must be at most %d characters", field, max)})
	}
	return errs
}

// ProvisionRequest mirrors the fields needed for tenant provisioning.
type ProvisionRequest struct {
	TenantTitle string
	OwnerEmail  string
	OwnerName   string
	ShopTitle   string
}

// ValidateProvisionRequest validates a POST /tenants body.
func ValidateProvisionRequest(req ProvisionRequest) []FieldError {
	var errs []FieldError

	errs = requireTitle(errs, "title", req.TenantTitle, maxTitleLength)

	email := strings.TrimSpace(req.OwnerEmail)
	if email == "" {
		errs = append(errs, FieldError{Field: "ownerEmail", Message: "ownerEmail is required"})
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		errs = append(errs, FieldError{Field: "ownerEmail", Message: "ownerEmail must be a valid email address"})
	}

	if utf8.RuneCountInString(req.OwnerName) > maxTitleLength {
		errs = append(errs, FieldError{Field: "ownerName", Message: "ownerName must be at most 255 characters"})
	}
	if utf8.RuneCountInString(req.ShopTitle) > maxTitleLength {
		errs = append(errs, FieldError{Field: "shopTitle", Message: "shopTitle must be at most 255 characters"})
	}

	return errs
}

// ValidateCreateShopRequest validates a POST /shops body.
func ValidateCreateShopRequest(title string) []FieldError {
	return requireTitle(nil, "title", title, maxTitleLength)
}

// AssignmentRequest mirrors the fields needed for creating a role assignment.
type AssignmentRequest struct {
	UserID   int64
	Role     string
	TenantID int64
	ShopID   *int64
}

// ValidateAssignmentRequest validates a POST /role-assignments body.
// systemAdmin cannot be granted through the API.
func ValidateAssignmentRequest(req AssignmentRequest) []FieldError {
	var errs []FieldError

	if req.UserID <= 0 {
		errs = append(errs, FieldError{Field: "userId", Message: "userId is required"})
	}

	switch req.Role {
	case "":
		errs = append(errs, FieldError{Field: "role", Message: "role is required"})
	case "tenantAdmin", "editor", "viewer":
	default:
		errs = append(errs, FieldError{Field: "role", Message: `role must be "tenantAdmin", "editor" or "viewer"`})
	}

	if req.TenantID <= 0 {
		errs = append(errs, FieldError{Field: "tenantId", Message: "tenantId is required"})
	}
	if req.ShopID != nil && *req.ShopID <= 0 {
		errs = append(errs, FieldError{Field: "shopId", Message: "shopId must be a positive integer"})
	}
	if req.ShopID == nil && (req.Role == "editor" || req.Role == "viewer") {
		errs = append(errs, FieldError{Field: "shopId", Message: "shopId is required for shop roles"})
	}

	return errs
}

// CatalogItem mirrors the fields of a create or bulk item. Code is the
// normalized code.
type CatalogItem struct {
	RawCode string
	Code    string
	Title   string
}

// ValidateCatalogItem validates one catalog item. prefix is prepended to
// field names in bulk payloads, e.g. "items[3].".
func ValidateCatalogItem(prefix string, item CatalogItem) []FieldError {
	var errs []FieldError

	switch {
	case strings.TrimSpace(item.RawCode) == "":
		errs = append(errs, FieldError{Field: prefix + "code", Message: "code is required"})
	case item.Code == "":
		errs = append(errs, FieldError{Field: prefix + "code", Message: "code must contain at least one letter or digit"})
	case utf8.RuneCountInString(item.Code) > maxCodeLength:
		errs = append(errs, FieldError{Field: prefix + "code", Message: "code must be at most 255 characters"})
	}

	if utf8.RuneCountInString(item.Title) > 1024 {
		errs = append(errs, FieldError{Field: prefix + "title", Message: "title must be at most 1024 characters"})
	}

	return errs
}

// ValidateUpdateTitle validates a PATCH /catalog/{entity}/{id} body.
func ValidateUpdateTitle(title *string) []FieldError {
	if title == nil {
		return []FieldError{{Field: "title", Message: "title is required"}}
	}
	return requireTitle(nil, "title", *title, 1024)
}

// ValidateCodes validates a find-or-create code list.
func ValidateCodes(codeList []string) []FieldError {
	var errs []FieldError

	if len(codeList) == 0 {
		return append(errs, FieldError{Field: "codes", Message: "codes must contain at least one code"})
	}
	if len(codeList) > MaxCodesPerRequest {
		return append(errs, FieldError{Field: "codes", Message: fmt.Sprintf("codes must contain at most %d entries", MaxCodesPerRequest)})
	}
	for i, c := range codeList {
		if strings.TrimSpace(c) == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("codes[%d]", i), Message: "code must not be empty"})
		}
	}

	return errs
}
