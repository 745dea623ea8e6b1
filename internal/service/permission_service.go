package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"dealdocs/internal/domain"
)

// Capability определяет тип операции, требующей проверки прав
type Capability string

const (
	CapabilityView        Capability = "view"
	CapabilityUpload      Capability = "upload"
	CapabilityAddVersions Capability = "add_versions"
	CapabilityDelete      Capability = "delete"
	CapabilityShare       Capability = "share"
	CapabilityAnalyze     Capability = "analyze"
	CapabilityAnnotate    Capability = "annotate"
)

// EvaluatePermissions вычисляет набор прав по роли, участию в сделке и ее статусу.
// Чистая функция, единственное место, где определяются правила доступа.
func EvaluatePermissions(role domain.ParticipantRole, isParticipant bool, status domain.DealStatus) domain.PermissionSet {
	set := domain.PermissionSet{
		CanAnalyze:  true,
		UploadsOpen: status.AcceptsUploads(),
	}
	if !isParticipant {
		return set
	}

	set.CanUpload = true
	set.CanAddVersions = set.CanUpload
	set.CanShare = set.CanUpload

	switch role {
	case domain.RoleAdmin, domain.RoleSeller, domain.RoleLawyer:
		set.CanDelete = true
	}
	return set
}

// PermissionService загружает сделку и участника при каждой проверке, без кеширования
type PermissionService struct {
	deals DealStore
}

func NewPermissionService(deals DealStore) *PermissionService {
	return &PermissionService{deals: deals}
}

// Permissions возвращает набор прав пользователя в сделке
func (s *PermissionService) Permissions(ctx context.Context, userID string, dealID uuid.UUID) (domain.PermissionSet, error) {
	set, _, err := s.evaluate(ctx, userID, dealID)
	return set, err
}

// Authorize проверяет право на операцию до любых изменений данных
func (s *PermissionService) Authorize(ctx context.Context, userID string, dealID uuid.UUID, capability Capability) error {
	const op = "Authorize"

	if userID == "" {
		return domain.PermissionDenied(op, "authentication required")
	}

	set, isParticipant, err := s.evaluate(ctx, userID, dealID)
	if err != nil {
		return err
	}

	if capability == CapabilityAnalyze {
		if set.CanAnalyze {
			return nil
		}
		return domain.PermissionDenied(op, "analysis is not allowed")
	}

	if !isParticipant {
		return domain.PermissionDenied(op, "user is not a participant of this deal")
	}

	var allowed bool
	switch capability {
	case CapabilityView, CapabilityAnnotate:
		allowed = true
	case CapabilityUpload:
		allowed = set.CanUpload
	case CapabilityAddVersions:
		allowed = set.CanAddVersions
	case CapabilityDelete:
		allowed = set.CanDelete
	case CapabilityShare:
		allowed = set.CanShare
	default:
		return domain.PermissionDenied(op, fmt.Sprintf("unknown capability %q", capability))
	}
	if !allowed {
		return domain.PermissionDenied(op, fmt.Sprintf("role does not allow %s", capability))
	}

	if (capability == CapabilityUpload || capability == CapabilityAddVersions) && !set.UploadsOpen {
		return domain.PermissionDenied(op, "deal status does not accept uploads")
	}
	return nil
}

func (s *PermissionService) evaluate(ctx context.Context, userID string, dealID uuid.UUID) (domain.PermissionSet, bool, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return domain.PermissionSet{}, false, domain.MetadataFailure("GetDeal", err)
	}

	participant, err := s.deals.GetParticipant(ctx, dealID, userID)
	if err != nil {
		return domain.PermissionSet{}, false, domain.MetadataFailure("GetParticipant", err)
	}

	var role domain.ParticipantRole
	if participant != nil {
		role = participant.Role
	}
	return EvaluatePermissions(role, participant != nil, deal.Status), participant != nil, nil
}
