// Постраничный поиск шаблонов с подгрузкой следующих страниц ("load more").
//
// Accumulator накапливает результаты запроса и перестает предлагать подгрузку, когда
// накоплено не меньше total записей. Одновременные подгрузки одной и той же страницы
// не объединяются: каждая добавляет свой результат.
package search

import (
	"context"
	"sync"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
)

const (
	DefaultLimit = 8
	MaxLimit     = 100
)

// Fetcher выполняет запрос одной страницы поиска
type Fetcher interface {
	SearchTemplates(ctx context.Context, query string, page, limit int) (*dto.SearchResult, error)
}

type Accumulator struct {
	fetcher Fetcher
	limit   int

	mu         sync.Mutex
	query      string
	generation int
	page       int
	loaded     bool
	items      []dto.TemplateLight
	total      int64
}

func NewAccumulator(f Fetcher, limit int) *Accumulator {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Accumulator{fetcher: f, limit: limit}
}

// Search начинает новый поиск с первой страницы. Результаты предыдущего запроса отбрасываются.
func (a *Accumulator) Search(ctx context.Context, query string) error {
	a.mu.Lock()
	a.generation++
	gen := a.generation
	a.query = query
	a.page = 0
	a.loaded = false
	a.items = nil
	a.total = 0
	a.mu.Unlock()

	_, err := a.fetch(ctx, gen, query, 1)
	return err
}

// LoadMore подгружает следующую страницу и возвращает количество добавленных записей.
// Если все записи уже загружены, ничего не запрашивает.
func (a *Accumulator) LoadMore(ctx context.Context) (int, error) {
	a.mu.Lock()
	if a.loaded && int64(len(a.items)) >= a.total {
		a.mu.Unlock()
		return 0, nil
	}
	gen, query, page := a.generation, a.query, a.page+1
	a.mu.Unlock()

	return a.fetch(ctx, gen, query, page)
}

func (a *Accumulator) fetch(ctx context.Context, gen int, query string, page int) (int, error) {
	res, err := a.fetcher.SearchTemplates(ctx, query, page, a.limit)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	// stale response for a replaced query
	if gen != a.generation {
		return 0, nil
	}
	a.items = append(a.items, res.Templates...)
	a.total = res.Total
	a.loaded = true
	if page > a.page {
		a.page = page
	}
	return len(res.Templates), nil
}

// HasMore - можно показать кнопку "load more"
func (a *Accumulator) HasMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.loaded || int64(len(a.items)) < a.total
}

func (a *Accumulator) Items() []dto.TemplateLight {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]dto.TemplateLight(nil), a.items...)
}

func (a *Accumulator) Total() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

func (a *Accumulator) Query() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.query
}

// NormalizeLimit приводит размер страницы к допустимому: по умолчанию 8, не больше MaxLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}
