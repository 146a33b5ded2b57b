package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/repository"
	"nko-map-backend/shared/utils/query"
)

// ListFilter narrows the public listing. Empty fields do not constrain.
type ListFilter struct {
	City       string
	Categories []string
	Search     string
	Page       query.Page
}

// Listing is one page of NPOs together with the total match count.
type Listing struct {
	Items []models.NPO `json:"items"`
	Total int64        `json:"total"`
	Page  query.Page   `json:"page"`
}

// Directory answers read queries over NPOs.
type Directory struct {
	npos   repository.NPORepository
	users  repository.UserRepository
	policy *Policy
	cache  ListingCache
	logger *zap.Logger
}

func NewDirectory(npos repository.NPORepository, users repository.UserRepository, policy *Policy, cache ListingCache, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{npos: npos, users: users, policy: policy, cache: cache, logger: logger}
}

// List returns approved NPOs only, newest first, whatever the filter says.
func (d *Directory) List(ctx context.Context, filter ListFilter) (*Listing, error) {
	filter = normalizeFilter(filter)
	key := listingKey(filter)

	// the generation is read before postgres so a fill racing an approval
	// lands in a generation nobody reads anymore
	cache, generation := d.cache, int64(0)
	if cache != nil {
		gen, err := cache.ListingGeneration(ctx)
		if err != nil {
			d.logger.Warn("listing cache generation read failed", zap.Error(err))
			cache = nil
		}
		generation = gen
	}

	if cache != nil {
		var cached Listing
		hit, err := cache.GetListing(ctx, generation, key, &cached)
		if err != nil {
			d.logger.Warn("listing cache read failed", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	items, total, err := d.npos.List(ctx, repository.NPOFilter{
		Statuses:   []models.NPOStatus{models.StatusApproved},
		City:       filter.City,
		Categories: filter.Categories,
		Search:     filter.Search,
		Page:       filter.Page,
	})
	if err != nil {
		return nil, err
	}
	if err := d.attachCreators(ctx, items); err != nil {
		return nil, err
	}

	listing := newListing(items, total, filter.Page)
	if cache != nil {
		if err := cache.SetListing(ctx, generation, key, listing); err != nil {
			d.logger.Warn("listing cache write failed", zap.Error(err))
		}
	}
	return listing, nil
}

// Get returns one NPO. Unapproved records are visible to their creator and
// to moderators only; everyone else gets NotFound.
func (d *Directory) Get(ctx context.Context, id uuid.UUID, viewer *models.User) (*models.NPO, error) {
	npo, err := d.npos.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if npo.Status != models.StatusApproved {
		visible := viewer != nil && (viewer.ID == npo.CreatedBy || d.policy.CanSeeUnpublished(viewer.Role))
		if !visible {
			return nil, apperr.NotFound("Организация не найдена")
		}
	}

	items := []models.NPO{*npo}
	if err := d.attachCreators(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// Queue lists NPOs for moderators, oldest first. An empty status means pending.
func (d *Directory) Queue(ctx context.Context, status models.NPOStatus, page query.Page) (*Listing, error) {
	if status == "" {
		status = models.StatusPending
	}
	if !status.Valid() {
		return nil, apperr.ValidationFields("Неизвестный статус", map[string]string{"status": string(status)})
	}

	page = page.Normalize()
	items, total, err := d.npos.List(ctx, repository.NPOFilter{
		Statuses:    []models.NPOStatus{status},
		OldestFirst: true,
		Page:        page,
	})
	if err != nil {
		return nil, err
	}
	if err := d.attachCreators(ctx, items); err != nil {
		return nil, err
	}
	return newListing(items, total, page), nil
}

// AdminGet returns an NPO in any status.
func (d *Directory) AdminGet(ctx context.Context, id uuid.UUID) (*models.NPO, error) {
	npo, err := d.npos.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items := []models.NPO{*npo}
	if err := d.attachCreators(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// OwnedBy lists every NPO created by userID in any status.
func (d *Directory) OwnedBy(ctx context.Context, userID uuid.UUID) ([]models.NPO, error) {
	items, _, err := d.npos.List(ctx, repository.NPOFilter{
		CreatedBy: &userID,
		Page:      query.Page{Page: 1, Limit: query.MaxLimit},
	})
	return items, err
}

func (d *Directory) attachCreators(ctx context.Context, items []models.NPO) error {
	if len(items) == 0 {
		return nil
	}

	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, npo := range items {
		if _, ok := seen[npo.CreatedBy]; !ok {
			seen[npo.CreatedBy] = struct{}{}
			ids = append(ids, npo.CreatedBy)
		}
	}

	creators, err := d.users.Creators(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		if creator, ok := creators[items[i].CreatedBy]; ok {
			c := creator
			items[i].Creator = &c
		}
	}
	return nil
}

func normalizeFilter(filter ListFilter) ListFilter {
	filter.City = strings.TrimSpace(filter.City)
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page = filter.Page.Normalize()

	categories := make([]string, 0, len(filter.Categories))
	for _, c := range filter.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}
	sort.Strings(categories)
	filter.Categories = categories
	return filter
}

func listingKey(filter ListFilter) string {
	canonical := strings.Join([]string{
		filter.City,
		strings.Join(filter.Categories, ","),
		strings.ToLower(filter.Search),
		strconv.Itoa(filter.Page.Page),
		strconv.Itoa(filter.Page.Limit),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// newListing never carries a nil slice so that empty pages encode as [].
func newListing(items []models.NPO, total int64, page query.Page) *Listing {
	if items == nil {
		items = []models.NPO{}
	}
	return &Listing{Items: items, Total: total, Page: page}
}
