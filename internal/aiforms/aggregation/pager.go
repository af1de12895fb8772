package aggregation

import (
	"github.com/aisa-it/aiforms/internal/aiforms/utils"
)

// Pager текущая страница таблицы ответов
type Pager struct {
	Page     int
	PageSize int
	Total    int64
}

func NewPager(total int64, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{Page: 1, PageSize: pageSize, Total: total}
}

func (p *Pager) TotalPages() int {
	return utils.TotalPages(p.Total, p.PageSize)
}

// GoTo переходит на страницу page. Страница вне [1, TotalPages] игнорируется, возвращается false.
func (p *Pager) GoTo(page int) bool {
	if page < 1 || page > p.TotalPages() || page == p.Page {
		return false
	}
	p.Page = page
	return true
}

func (p *Pager) Next() bool { return p.GoTo(p.Page + 1) }

func (p *Pager) Prev() bool { return p.GoTo(p.Page - 1) }

// SetTotal обновляет количество записей и возвращает страницу в допустимый диапазон.
func (p *Pager) SetTotal(total int64) {
	p.Total = total
	if p.Page > p.TotalPages() {
		p.Page = p.TotalPages()
	}
}

// Offset смещение первой записи текущей страницы
func (p *Pager) Offset() int {
	return (p.Page - 1) * p.PageSize
}
