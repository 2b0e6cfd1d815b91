package jwttoken

import (
	"careflow/internal/platform/middleware"
)

// ValidatorAdapter lets the gate middleware consume the token service without
// depending on JWT claim types.
type ValidatorAdapter struct {
	service *Service
}

func NewValidatorAdapter(service *Service) *ValidatorAdapter {
	return &ValidatorAdapter{service: service}
}

func (a *ValidatorAdapter) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := a.service.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.TokenClaims{
		Subject: claims.Subject,
		Email:   claims.Email,
	}, nil
}
