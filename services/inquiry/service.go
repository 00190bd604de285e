package inquiry

import (
	"context"
	"strings"

	"rewards-controlplane/pkg/db/option"
	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	node *snowflake.Node
	repo repository.Repository[Inquiry]
}

func NewService(db *gorm.DB, node *snowflake.Node) *Service {
	return &Service{node: node, repo: repository.ProvideStore[Inquiry](db)}
}

func (s *Service) Submit(ctx context.Context, req Request) (*Inquiry, error) {
	in := &Inquiry{
		ID:      s.node.Generate().String(),
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Company: strings.TrimSpace(req.Company),
		Message: strings.TrimSpace(req.Message),
	}
	if in.Name == "" || in.Message == "" {
		return nil, errutil.ValidationFailed("name and message are required", nil)
	}
	if err := s.repo.Create(ctx, in); err != nil {
		logger.FromContext(ctx).Error("failed to store contact inquiry", zap.Error(err))
		return nil, errutil.Internal("failed to submit inquiry", err)
	}
	logger.FromContext(ctx).Info("contact inquiry received", zap.String("inquiry_id", in.ID), zap.String("company", in.Company))
	return in, nil
}

func (s *Service) List(ctx context.Context, page pagination.Pagination) ([]*Inquiry, *pagination.PageInfo, error) {
	rows, err := s.repo.Find(ctx, nil,
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.ApplyPagination(page),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list contact inquiries", zap.Error(err))
		return nil, nil, errutil.Internal("failed to list inquiries", err)
	}
	out, info := pagination.Trim(rows, page.Limit, func(in *Inquiry) pagination.Cursor {
		return pagination.CursorFrom(in.CreatedAt, in.ID)
	})
	return out, info, nil
}
