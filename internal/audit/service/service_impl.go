package service

import (
	"context"
	"strings"
	"time"

	auditdomain "github.com/baytretail/core/internal/audit/domain"
	"github.com/baytretail/core/internal/audit/masking"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, actorType auditdomain.ActorType, actorID *string, action, entityType string, entityID *string, details map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	entityType = strings.TrimSpace(entityType)
	if entityType == "" {
		entityType = "unknown"
	}
	if tx == nil {
		tx = s.db
	}

	masked := masking.MaskJSON(details)

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		CompanyID:  &companyID,
		ActorType:  string(actorType),
		ActorID:    normalizePointer(actorID),
		Action:     action,
		EntityType: entityType,
		EntityID:   normalizePointer(entityID),
		Details:    datatypes.JSONMap(masked),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, tx, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, companyID snowflake.ID, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if companyID == 0 {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidCompany
	}
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		CompanyID:  companyID,
		Action:     req.Action,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		ActorType:  req.ActorType,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Limit:      int(pageSize),
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	return auditdomain.ListAuditLogResponse{AuditLogs: logs}, nil
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
