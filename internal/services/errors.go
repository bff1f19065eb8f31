package services

import (
	"errors"

	"claim-service/internal/repository"
)

var (
	ErrNotFound             = repository.ErrNotFound
	ErrValidation           = errors.New("validation failed")
	ErrPolicyNotActive      = errors.New("policy is not active")
	ErrPolicyFarmerMismatch = errors.New("policy does not belong to farmer")
	ErrSettlementInProgress = errors.New("settlement already in progress for claim")
	ErrClaimNotSettleable   = errors.New("claim is not awaiting settlement")
)
