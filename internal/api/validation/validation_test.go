package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/internal/api/validation"
)

func ptr(v int64) *int64 { return &v }

func TestValidateProvisionRequest(t *testing.T) {
	tests := []struct {
		name       string
		req        validation.ProvisionRequest
		wantFields []string
	}{
		{
			name: "valid",
			req:  validation.ProvisionRequest{TenantTitle: "Mavyko", OwnerEmail: "owner@mavyko.test"},
		},
		{
			name:       "missing everything",
			req:        validation.ProvisionRequest{},
			wantFields: []string{"title", "ownerEmail"},
		},
		{
			name:       "bad email",
			req:        validation.ProvisionRequest{TenantTitle: "Mavyko", OwnerEmail: "Owner <owner@mavyko.test>"},
			wantFields: []string{"ownerEmail"},
		},
		{
			name:       "long shop title",
			req:        validation.ProvisionRequest{TenantTitle: "Mavyko", OwnerEmail: "owner@mavyko.test", ShopTitle: strings.Repeat("x", 256)},
			wantFields: []string{"shopTitle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validation.ValidateProvisionRequest(tt.req)

			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestValidateCreateShopRequest(t *testing.T) {
	assert.Empty(t, validation.ValidateCreateShopRequest("Ozon store"))

	errs := validation.ValidateCreateShopRequest("   ")
	require.Len(t, errs, 1)
	assert.Equal(t, "title is required", errs[0].Message)
}

func TestValidateAssignmentRequest(t *testing.T) {
	tests := []struct {
		name       string
		req        validation.AssignmentRequest
		wantFields []string
	}{
		{name: "tenant admin", req: validation.AssignmentRequest{UserID: 1, Role: "tenantAdmin", TenantID: 1}},
		{name: "shop editor", req: validation.AssignmentRequest{UserID: 1, Role: "editor", TenantID: 1, ShopID: ptr(2)}},
		{name: "system admin rejected", req: validation.AssignmentRequest{UserID: 1, Role: "systemAdmin", TenantID: 1}, wantFields: []string{"role"}},
		{name: "viewer without shop", req: validation.AssignmentRequest{UserID: 1, Role: "viewer", TenantID: 1}, wantFields: []string{"shopId"}},
		{name: "empty", req: validation.AssignmentRequest{}, wantFields: []string{"userId", "role", "tenantId"}},
		{name: "bad shop", req: validation.AssignmentRequest{UserID: 1, Role: "tenantAdmin", TenantID: 1, ShopID: ptr(0)}, wantFields: []string{"shopId"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validation.ValidateAssignmentRequest(tt.req)

			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestValidateCatalogItem(t *testing.T) {
	assert.Empty(t, validation.ValidateCatalogItem("", validation.CatalogItem{RawCode: "Mavyko", Code: "mavyko", Title: "Mavyko"}))

	errs := validation.ValidateCatalogItem("items[2].", validation.CatalogItem{RawCode: "---", Code: ""})
	require.Len(t, errs, 1)
	assert.Equal(t, "items[2].code", errs[0].Field)
	assert.Equal(t, "code must contain at least one letter or digit", errs[0].Message)

	errs = validation.ValidateCatalogItem("", validation.CatalogItem{})
	require.Len(t, errs, 1)
	assert.Equal(t, "code is required", errs[0].Message)
}

func TestValidateUpdateTitle(t *testing.T) {
	title := "New title"
	assert.Empty(t, validation.ValidateUpdateTitle(&title))
	assert.Len(t, validation.ValidateUpdateTitle(nil), 1)

	empty := ""
	assert.Len(t, validation.ValidateUpdateTitle(&empty), 1)
}

func TestValidateCodes(t *testing.T) {
	assert.Empty(t, validation.ValidateCodes([]string{"a", "b"}))
	assert.Len(t, validation.ValidateCodes(nil), 1)

	errs := validation.ValidateCodes([]string{"a", " "})
	require.Len(t, errs, 1)
	assert.Equal(t, "codes[1]", errs[0].Field)
}
