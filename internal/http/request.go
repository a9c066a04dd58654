package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"time"

	"budget/internal/core"
	"budget/internal/services"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var (
	validate  = newValidator()
	nonSpace  = regexp.MustCompile(`\S`)
	errNoBody = core.NewValidationError("body", "request body is required")
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("yearmonth", func(fl validator.FieldLevel) bool {
		_, err := core.ParseMonth(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return nonSpace.MatchString(fl.Field().String())
	})
	return v
}

type (
	// expenseRequest is shared by create and update; on update nil fields
	// keep their stored value.
	expenseRequest struct {
		UserID     string      `json:"userId"`
		Activity   *string     `json:"activity" validate:"omitempty,notblank,max=200"`
		Amount     *core.Money `json:"amount"`
		Category   *string     `json:"category" validate:"omitempty,max=100"`
		CategoryID *string     `json:"categoryId" validate:"omitempty,max=64"`
		CreatedAt  *time.Time  `json:"createdAt"`
	}

	budgetRequest struct {
		UserID    string      `json:"userId"`
		Category  *string     `json:"category" validate:"omitempty,notblank,max=100"`
		Budget    *core.Money `json:"budget"`
		CreatedAt *time.Time  `json:"createdAt"`
	}

	incomeRequest struct {
		UserID    string      `json:"userId"`
		Amount    *core.Money `json:"amount"`
		CreatedAt *time.Time  `json:"createdAt"`
	}

	registerRequest struct {
		Name   string `json:"name" validate:"required,notblank,max=100"`
		Email  string `json:"email" validate:"required,email,max=254"`
		Secret string `json:"secret" validate:"required,notblank"`
	}

	credentialsRequest struct {
		Email  string `json:"email" validate:"required,notblank"`
		Secret string `json:"secret" validate:"required,notblank"`
	}

	monthQuery struct {
		Month  string `json:"month" validate:"omitempty,yearmonth"`
		UserID string `json:"userId"`
	}
)

func (r expenseRequest) input() services.ExpenseInput {
	return services.ExpenseInput{
		Activity:   r.Activity,
		Amount:     r.Amount,
		Category:   r.Category,
		CategoryID: r.CategoryID,
		CreatedAt:  r.CreatedAt,
	}
}

func (r budgetRequest) input() services.BudgetInput {
	return services.BudgetInput{Category: r.Category, Budget: r.Budget, CreatedAt: r.CreatedAt}
}

func (r incomeRequest) input() services.IncomeInput {
	return services.IncomeInput{Amount: r.Amount, CreatedAt: r.CreatedAt}
}

// decodeJSON reads a bounded JSON body into dst and runs struct validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errNoBody
		case errors.As(err, &maxErr):
			return core.NewValidationError("body", fmt.Sprintf("must not exceed %d bytes", maxErr.Limit))
		case core.IsValidationError(err):
			return err
		default:
			return core.NewValidationError("body", "malformed JSON")
		}
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	var ve core.ValidationErrors
	for _, fe := range fieldErrs {
		ve.Add(core.NewValidationError(fe.Field(), fieldErrorMessage(fe)))
	}
	return ve.Err()
}

func fieldErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "yearmonth":
		return "must be in YYYY-MM format"
	case "notblank":
		return "must not be blank"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	default:
		return "is invalid"
	}
}

// parseMonthQuery reads ?month=YYYY-MM, defaulting to the current month.
func (s *Server) parseMonthQuery(r *http.Request) (core.Month, string, error) {
	q := monthQuery{
		Month:  strings.TrimSpace(r.URL.Query().Get("month")),
		UserID: strings.TrimSpace(r.URL.Query().Get("userId")),
	}
	if err := validateStruct(q); err != nil {
		return core.Month{}, "", err
	}
	if q.Month == "" {
		return core.CurrentMonth(s.now()), q.UserID, nil
	}
	m, err := core.ParseMonth(q.Month)
	return m, q.UserID, err
}

type userIDKey struct{}

func withUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// userID returns the token subject stored by requireAuth.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// requireAuth resolves the bearer token and stores its subject in the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="budget"`)
			writeError(w, r, errMissingToken)
			return
		}
		sub, err := s.tokens.ParseToken(strings.TrimSpace(token))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="budget", error="invalid_token"`)
			writeError(w, r, err)
			return
		}
		next(w, r.WithContext(withUserID(r.Context(), sub)))
	}
}

// owner returns the authenticated user, rejecting an explicit userId that
// names someone else.
func owner(r *http.Request, claimed string) (string, error) {
	sub := userID(r.Context())
	if claimed != "" && claimed != sub {
		return "", errUserMismatch
	}
	return sub, nil
}
