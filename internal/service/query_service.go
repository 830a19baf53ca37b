package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/repository"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

// QueryService answers read-side questions about work units and items.
type QueryService struct {
	core
}

// NewQueryService creates the service.
func NewQueryService(deps Dependencies) *QueryService {
	return &QueryService{core: newCore(deps)}
}

// GetWorkItem returns the item with its derived status and full history.
// It never changes state.
func (s *QueryService) GetWorkItem(ctx context.Context, itemID string) (*domain.WorkItemView, error) {
	epoch := s.cache.Epoch()
	view, err := loadView(ctx, s.store.Repositories(), itemID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(itemID, view.Status, epoch)
	return view, nil
}

// ViewWorkItem is GetWorkItem for a user opening the item. The first view of
// a new item moves it to in_progress.
func (s *QueryService) ViewWorkItem(ctx context.Context, itemID string, viewer *domain.Member) (*domain.WorkItemView, error) {
	view, err := s.GetWorkItem(ctx, itemID)
	if err != nil || viewer == nil || view.Status != domain.WorkItemNew {
		return view, err
	}

	opened := false
	err = s.run(ctx, func(ctx context.Context, repos repository.Repositories, fx *effects) error {
		_, item, err := lockItem(ctx, repos, itemID)
		if err != nil {
			return err
		}
		status, err := currentStatus(ctx, repos, item.ID)
		if err != nil || status != domain.WorkItemNew {
			return err
		}
		opened = true
		return s.appendStatus(ctx, repos, fx, item, domain.WorkItemInProgress)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if opened {
		s.logger.Info("work item opened",
			zap.String("work_item_id", itemID),
			zap.String("viewer_id", viewer.ID))
	}
	return s.GetWorkItem(ctx, itemID)
}

// ListOpenForUser returns every non-terminal item held by userID.
func (s *QueryService) ListOpenForUser(ctx context.Context, userID string) ([]domain.WorkItemView, error) {
	repos := s.store.Repositories()
	epoch := s.cache.Epoch()
	items, err := repos.WorkItems.ListOpenByAssignee(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	statuses := make(map[string]domain.WorkItemStatus, len(items))
	var misses []string
	for _, item := range items {
		if status, ok := s.cache.Get(item.ID); ok {
			statuses[item.ID] = status
			continue
		}
		misses = append(misses, item.ID)
	}
	if len(misses) > 0 {
		fresh, err := repos.Ledger.LatestStatuses(ctx, misses)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		for id, status := range fresh {
			statuses[id] = status
			s.cache.Set(id, status, epoch)
		}
	}

	views := make([]domain.WorkItemView, 0, len(items))
	for _, item := range items {
		views = append(views, domain.WorkItemView{Item: item, Status: statuses[item.ID]})
	}
	return views, nil
}

// GetWorkUnit returns the unit with every item and its current status.
func (s *QueryService) GetWorkUnit(ctx context.Context, unitID string) (*WorkUnitDetail, error) {
	detail, err := loadDetail(ctx, s.store.Repositories(), unitID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return detail, nil
}
