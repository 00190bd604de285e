package account

import (
	"context"

	"rewards-controlplane/pkg/db/option"
	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/security"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// assignable lists the roles each actor may hand out.
var assignable = map[Role]map[Role]bool{
	RoleAdmin:      {RoleEmployee: true, RoleEmployer: true},
	RoleSuperAdmin: {RoleEmployee: true, RoleEmployer: true, RoleAdmin: true},
}

func (s *Service) ListRoles(ctx context.Context, status ApprovalStatus, page pagination.Pagination) ([]*UserRole, *pagination.PageInfo, error) {
	query := &UserRole{}
	if status != "" {
		query.ApprovalStatus = status
	}

	roles, err := s.roles.Find(ctx, query,
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.ApplyPagination(page),
	)
	if err != nil {
		return nil, nil, errutil.Internal("failed to list roles", err)
	}
	out, info := pagination.Trim(roles, page.Limit, func(r *UserRole) pagination.Cursor {
		return pagination.CursorFrom(r.CreatedAt, r.ID)
	})
	return out, info, nil
}

// Decide approves or rejects a pending role.
func (s *Service) Decide(ctx context.Context, approverID, userID string, approve bool) (*UserRole, error) {
	role, err := s.roles.FindOne(ctx, &UserRole{UserID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to load role", err)
	}
	if role == nil {
		return nil, errutil.NotFound("role not found", nil)
	}
	if role.ApprovalStatus != Pending {
		return nil, errutil.Conflict("role already decided", nil)
	}

	status := Rejected
	if approve {
		status = Approved
	}
	if err := s.roles.Update(ctx, role.ID, map[string]any{
		"approval_status": status,
		"approved_by":     approverID,
	}); err != nil {
		return nil, errutil.Internal("failed to update role", err)
	}

	s.endSessions(ctx, userID)
	logger.FromContext(ctx).Info("role decided",
		zap.String("user_id", userID), zap.String("status", string(status)), zap.String("approver_id", approverID))

	role.ApprovalStatus = status
	role.ApprovedBy = approverID
	return role, nil
}

// Assign sets userID's role, approved. actor is the caller's own role.
func (s *Service) Assign(ctx context.Context, actor Role, actorID, userID string, req AssignRoleRequest) (*UserRole, error) {
	if !req.Role.Valid() {
		return nil, errutil.ValidationFailed("unknown role", nil,
			errutil.WithDetails(errutil.Detail{Field: "role", Message: "must be employee, employer, admin or super_admin"}))
	}
	if !assignable[actor][req.Role] {
		return nil, errutil.Forbidden("role cannot be assigned by "+string(actor), nil)
	}

	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	companyID := req.CompanyID
	if companyID == "" {
		companyID = profile.CompanyID
	}
	if companyID != "" {
		if _, err := s.companies.Get(ctx, companyID); err != nil {
			return nil, err
		}
	}

	var out *UserRole
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roles := s.roles.WithTrx(tx)
		existing, err := roles.FindOne(ctx, &UserRole{UserID: userID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}

		if existing != nil {
			if !assignable[actor][existing.Role] {
				return errutil.Forbidden("cannot change the role of a "+string(existing.Role), nil)
			}
			if err := roles.Update(ctx, existing.ID, map[string]any{
				"role":            req.Role,
				"company_id":      companyID,
				"approval_status": Approved,
				"approved_by":     actorID,
			}); err != nil {
				return err
			}
			existing.Role, existing.CompanyID, existing.ApprovalStatus, existing.ApprovedBy = req.Role, companyID, Approved, actorID
			out = existing
		} else {
			out = &UserRole{
				ID:             s.node.Generate().String(),
				UserID:         userID,
				Role:           req.Role,
				CompanyID:      companyID,
				ApprovalStatus: Approved,
				ApprovedBy:     actorID,
			}
			if err := roles.Create(ctx, out); err != nil {
				return err
			}
		}

		if companyID != "" && profile.CompanyID != companyID {
			return s.profiles.WithTrx(tx).Update(ctx, userID, map[string]any{"company_id": companyID})
		}
		return nil
	})
	if err != nil {
		if errutil.StatusOf(err) != errutil.StatusInternal {
			return nil, err
		}
		return nil, errutil.Internal("failed to assign role", err)
	}

	s.endSessions(ctx, userID)
	logger.FromContext(ctx).Info("role assigned",
		zap.String("user_id", userID), zap.String("role", string(req.Role)), zap.String("actor_id", actorID))
	return out, nil
}

// EnsureUser creates an approved account when email is not registered yet.
// It is used to seed the platform super admin.
func (s *Service) EnsureUser(ctx context.Context, name, email, password string, role Role, companyID string) (*Profile, bool, error) {
	email = normalizeEmail(email)
	exist, err := s.profiles.FindOne(ctx, &Profile{Email: email})
	if err != nil {
		return nil, false, err
	}
	if exist != nil {
		return exist, false, nil
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, false, err
	}

	profile := &Profile{
		ID:           s.node.Generate().String(),
		Name:         name,
		Email:        email,
		CompanyID:    companyID,
		PasswordHash: hash,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.profiles.WithTrx(tx).Create(ctx, profile); err != nil {
			return err
		}
		return s.roles.WithTrx(tx).Create(ctx, &UserRole{
			ID:             s.node.Generate().String(),
			UserID:         profile.ID,
			Role:           role,
			CompanyID:      companyID,
			ApprovalStatus: Approved,
		})
	})
	if err != nil {
		return nil, false, err
	}
	return profile, true, nil
}
