package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxActivityLen = 200
	maxCategoryLen = 100
)

type (
	// Expense is a single spending record. Category is the label used for
	// aggregation; CategoryID optionally references the CategoryBudget the
	// label was resolved from.
	Expense struct {
		ID         string    `json:"id"`
		OwnerID    string    `json:"userId"`
		Activity   string    `json:"activity"`
		Amount     Money     `json:"amount"`
		Category   string    `json:"category"`
		CategoryID string    `json:"categoryId,omitempty"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	// CategoryBudget is a monthly spending ceiling for one category label.
	CategoryBudget struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"userId"`
		Category  string    `json:"category"`
		Budget    Money     `json:"budget"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// Income is a declared monthly earning.
	Income struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"userId"`
		Amount    Money     `json:"amount"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	User struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		Email      string    `json:"email"`
		SecretHash string    `json:"-"`
		CreatedAt  time.Time `json:"createdAt"`
	}
)

func validateCommon(ve *ValidationErrors, owner string, createdAt time.Time) {
	if strings.TrimSpace(owner) == "" {
		ve.Add(ErrMissingOwner)
	}
	if createdAt.IsZero() {
		ve.Add(ErrMissingTime)
	}
}

func validateCategory(ve *ValidationErrors, label string) {
	if strings.TrimSpace(label) == "" {
		ve.Add(ErrEmptyCategory)
	} else if utf8.RuneCountInString(label) > maxCategoryLen {
		ve.Add(ErrCategoryTooLong)
	}
}

func (e Expense) Validate() error {
	var ve ValidationErrors
	validateCommon(&ve, e.OwnerID, e.CreatedAt)
	if strings.TrimSpace(e.Activity) == "" {
		ve.Add(ErrEmptyActivity)
	} else if utf8.RuneCountInString(e.Activity) > maxActivityLen {
		ve.Add(ErrActivityTooLong)
	}
	ve.Add(e.Amount.Validate())
	validateCategory(&ve, e.Category)
	return ve.Err()
}

func (b CategoryBudget) Validate() error {
	var ve ValidationErrors
	validateCommon(&ve, b.OwnerID, b.CreatedAt)
	validateCategory(&ve, b.Category)
	if err := b.Budget.Validate(); err != nil {
		ve.Add(NewValidationError("budget", "must be a non-negative decimal"))
	}
	return ve.Err()
}

func (i Income) Validate() error {
	var ve ValidationErrors
	validateCommon(&ve, i.OwnerID, i.CreatedAt)
	ve.Add(i.Amount.Validate())
	return ve.Err()
}

// NormalizeEmail trims and lowercases an email used as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeSecret strips surrounding whitespace and case from a shared secret
// before it is hashed or compared.
func NormalizeSecret(secret string) string {
	return strings.ToLower(strings.TrimSpace(secret))
}
