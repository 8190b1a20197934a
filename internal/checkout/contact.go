package checkout

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/session"
)

// Contact is the buyer data a guest enters at checkout.
type Contact struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Validate checks that every field is present and well formed.
func (c Contact) Validate() error {
	if strings.TrimSpace(c.FirstName) == "" {
		return &entity.ValidationError{Field: "firstName", Reason: "is required"}
	}
	if strings.TrimSpace(c.LastName) == "" {
		return &entity.ValidationError{Field: "lastName", Reason: "is required"}
	}
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return &entity.ValidationError{Field: "email", Reason: "is required"}
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return &entity.ValidationError{Field: "email", Reason: "is not a valid address"}
	}
	return validatePhone(c.Phone)
}

func validatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return &entity.ValidationError{Field: "phone", Reason: "is required"}
	}
	digits := 0
	for i, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return &entity.ValidationError{Field: "phone", Reason: "contains invalid characters"}
		}
	}
	if digits < 6 {
		return &entity.ValidationError{Field: "phone", Reason: "is too short"}
	}
	return nil
}

// buyer picks the order contact: the logged-in profile, or the guest form.
func buyer(s *session.Session, c Contact) (entity.Buyer, error) {
	if s.Authenticated() {
		return entity.Buyer{
			FirstName: s.User.FirstName,
			LastName:  s.User.LastName,
			Email:     s.User.Email,
			Phone:     s.User.Phone,
		}, nil
	}
	if err := c.Validate(); err != nil {
		return entity.Buyer{}, err
	}
	return entity.Buyer{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Email:     strings.TrimSpace(c.Email),
		Phone:     strings.TrimSpace(c.Phone),
	}, nil
}
