package service

import (
	"context"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/logging"
	"github.com/user/miroku/internal/metrics"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/repository"
)

// MergeService 合并代表同一真实人物的两条人物记录
type MergeService struct {
	repos *repository.Repositories
}

func NewMergeService(repos *repository.Repositories) *MergeService {
	return &MergeService{repos: repos}
}

// MergeResult 合并结果
type MergeResult struct {
	SourceID    int `json:"source_id"`
	TargetID    int `json:"target_id"`
	Transferred int `json:"transferred"` // 改指向目标的关联数
	Dropped     int `json:"dropped"`     // 与目标冲突而删除的关联数
}

type creditKey struct {
	movieID int
	role    model.Role
}

// PartitionCredits 按目标已占用的 (movie, role) 把源关联分为冲突与可转移两类
func PartitionCredits(source, target []model.Credit) (colliding, transferable []model.Credit) {
	occupied := make(map[creditKey]bool, len(target))
	for _, c := range target {
		occupied[creditKey{c.MovieID, c.Role}] = true
	}
	for _, c := range source {
		if occupied[creditKey{c.MovieID, c.Role}] {
			colliding = append(colliding, c)
		} else {
			transferable = append(transferable, c)
		}
	}
	return colliding, transferable
}

// Merge 把 source 的关联迁移到 target 后将 source 标记为墓碑，整个过程在一个事务内完成
// 冲突的关联直接删除，不做字段级合并（目标原有 cast_order 保持不变）
func (s *MergeService) Merge(ctx context.Context, ownerID, sourceID, targetID int) (*MergeResult, error) {
	if sourceID == targetID {
		return nil, apperr.InvalidArgument("不能把人物合并到自身")
	}

	result := &MergeResult{SourceID: sourceID, TargetID: targetID}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		source, err := tx.Person.Get(ctx, ownerID, sourceID)
		if err != nil {
			return err
		}
		target, err := tx.Person.Get(ctx, ownerID, targetID)
		if err != nil {
			return err
		}
		if source.IsTombstone() {
			return apperr.InvalidArgument("人物 %d 已被合并", sourceID)
		}
		if target.IsTombstone() {
			return apperr.InvalidArgument("人物 %d 已被合并，不能作为合并目标", targetID)
		}

		sourceCredits, err := tx.Credit.ListByPerson(ctx, sourceID)
		if err != nil {
			return err
		}
		targetCredits, err := tx.Credit.ListByPerson(ctx, targetID)
		if err != nil {
			return err
		}

		colliding, transferable := PartitionCredits(sourceCredits, targetCredits)

		ids := make([]int, 0, len(colliding))
		for _, c := range colliding {
			ids = append(ids, c.ID)
		}
		if err := tx.Credit.DeleteByIDs(ctx, ids); err != nil {
			return err
		}
		for _, c := range transferable {
			if err := tx.Credit.UpdatePerson(ctx, c.ID, targetID); err != nil {
				return err
			}
		}
		if err := tx.Person.SetMergedInto(ctx, ownerID, sourceID, targetID); err != nil {
			return err
		}

		result.Transferred = len(transferable)
		result.Dropped = len(colliding)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Merges.Inc()
	logging.Info().Int("owner_id", ownerID).Int("source", sourceID).Int("target", targetID).
		Int("transferred", result.Transferred).Int("dropped", result.Dropped).
		Msg("[Merge] 人物合并完成")
	return result, nil
}

// Unmerge 只清除墓碑标记；已删除或已改指向的关联不会恢复
func (s *MergeService) Unmerge(ctx context.Context, ownerID, personID int) error {
	return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		person, err := tx.Person.Get(ctx, ownerID, personID)
		if err != nil {
			return err
		}
		if !person.IsTombstone() {
			return apperr.InvalidArgument("人物 %d 未被合并", personID)
		}
		return tx.Person.ClearMergedInto(ctx, ownerID, personID)
	})
}
