package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/capitolwatch/backend/src/model"
	"github.com/username/capitolwatch/backend/src/models"
)

const (
	ckMembers              = "members_%s_%s"
	ckCommittee            = "committee_%s_%s"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// storeDirectory serves member and committee lookups to the validator from
// the store, caching results until the reconciler changes the entities.
type storeDirectory struct {
	db    *sql.DB
	cache *cache.Cache
}

func newStoreDirectory(db *sql.DB) *storeDirectory {
	return &storeDirectory{db: db, cache: cache.New(DefaultCacheExpiration, CacheCleanupInterval)}
}

func (d *storeDirectory) Members(ctx context.Context, chamber models.Chamber, state string) ([]models.Member, error) {
	cacheKey := fmt.Sprintf(ckMembers, chamber, state)
	if cached, found := d.cache.Get(cacheKey); found {
		return cached.([]models.Member), nil
	}
	members, err := model.ListMembers(ctx, d.db, chamber, state)
	if err != nil {
		return nil, err
	}
	d.cache.SetDefault(cacheKey, members)
	return members, nil
}

func (d *storeDirectory) Committee(ctx context.Context, code string, chamber models.Chamber) (*models.Committee, error) {
	cacheKey := fmt.Sprintf(ckCommittee, chamber, code)
	if cached, found := d.cache.Get(cacheKey); found {
		return cached.(*models.Committee), nil
	}
	c, err := model.GetCommitteeByCode(ctx, d.db, code, chamber)
	if errors.Is(err, sql.ErrNoRows) {
		// Misses are not cached; the committee may be inserted later in the run.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.cache.SetDefault(cacheKey, c)
	return c, nil
}

// invalidate drops cached lookups after members or committees change.
func (d *storeDirectory) invalidate(kind models.RecordKind) {
	switch kind {
	case models.RecordMember, models.RecordCommittee:
		d.cache.Flush()
	}
}
