package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type patchDTO struct {
	CompanyName *string         `json:"company_name"`
	DatabaseURL *string         `json:"database_url"`
	Ignored     *string         `json:"-"`
	Metadata    *map[string]any `json:"metadata"`
}

func strPtr(s string) *string { return &s }

func TestUpdatesFromPtrDTO(t *testing.T) {
	t.Run("only non-nil fields land in the map", func(t *testing.T) {
		updates := UpdatesFromPtrDTO(&patchDTO{CompanyName: strPtr("Acme GmbH")}, nil)
		assert.Equal(t, map[string]any{"company_name": "Acme GmbH"}, updates)
	})

	t.Run("dash tags are skipped", func(t *testing.T) {
		updates := UpdatesFromPtrDTO(&patchDTO{Ignored: strPtr("x")}, nil)
		assert.Empty(t, updates)
	})

	t.Run("renames translate json names to columns", func(t *testing.T) {
		updates := UpdatesFromPtrDTO(&patchDTO{DatabaseURL: strPtr("postgres://x")},
			map[string]string{"database_url": "encrypted_database_url"})
		assert.Equal(t, map[string]any{"encrypted_database_url": "postgres://x"}, updates)
	})

	t.Run("non-struct input yields nothing", func(t *testing.T) {
		assert.Empty(t, UpdatesFromPtrDTO("nope", nil))
	})
}

func TestNormalize(t *testing.T) {
	t.Run("pointer DTO trims only set fields", func(t *testing.T) {
		dto := &patchDTO{CompanyName: strPtr("  Acme  ")}
		NormalizePtrDTO(dto)
		assert.Equal(t, "Acme", *dto.CompanyName)
		assert.Nil(t, dto.DatabaseURL)
	})

	t.Run("value DTO trims all string fields", func(t *testing.T) {
		dto := &struct {
			Subdomain   string
			CompanyName string
		}{"  acme ", " Acme GmbH "}
		NormalizeDTO(dto)
		assert.Equal(t, "acme", dto.Subdomain)
		assert.Equal(t, "Acme GmbH", dto.CompanyName)
	})
}
