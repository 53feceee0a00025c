package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/courtsift/statscrape/fetch"
	"github.com/courtsift/statscrape/models"
	"github.com/courtsift/statscrape/parser"
)

// paginator walks every page of one work item's table through a live
// session, parsing as it goes.
type paginator struct {
	session  fetch.PageSession
	desc     *models.CategoryDescriptor
	maxPages int
	log      *slog.Logger
	metrics  *Metrics
}

// collect fetches the first page and follows the next-page control until it
// disappears, goes inactive, or the page ceiling is hit. It returns every row
// parsed and the number of pages fetched. A missing dataset is not an error:
// collect returns no rows and a nil error. When pagination breaks after at
// least one page was parsed, the rows gathered so far are returned alongside
// the error so the caller can decide whether a partial result is worth
// keeping.
func (p *paginator) collect(ctx context.Context, url string) ([]models.RawRow, int, error) {
	table, err := p.session.Fetch(ctx, url)
	if errors.Is(err, fetch.ErrNoData) {
		p.log.Info("no dataset behind work item",
			slog.String("category", p.desc.Name),
			slog.String("url", url))
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var all []models.RawRow
	pages := 0
	for {
		pages++
		rows, perr := parser.ParseTable(table, p.desc)
		if perr != nil {
			err := fmt.Errorf("page %d: %w", pages, perr)
			if len(all) > 0 {
				return all, pages, err
			}
			return nil, pages, err
		}
		if len(rows) == 0 {
			p.log.Warn("table present but no rows parsed",
				slog.String("category", p.desc.Name),
				slog.String("url", table.URL),
				slog.Int("page", pages))
		}
		for i := range rows {
			rows[i].Category = p.desc.Name
			rows[i].SourceURL = table.URL
			rows[i].PageNumber = pages
		}
		all = append(all, rows...)
		p.metrics.IncPages(1)
		p.metrics.IncRowsParsed(len(rows))

		if pages >= p.maxPages {
			p.log.Warn("page ceiling reached, stopping pagination",
				slog.String("category", p.desc.Name),
				slog.String("url", url),
				slog.Int("max_pages", p.maxPages))
			break
		}

		next, ok, nerr := p.session.NextPage(ctx)
		if nerr != nil {
			err := fmt.Errorf("advance past page %d: %w", pages, nerr)
			if len(all) > 0 {
				return all, pages, err
			}
			return nil, pages, err
		}
		if !ok {
			break
		}
		table = next
	}

	p.log.Debug("pagination complete",
		slog.String("category", p.desc.Name),
		slog.String("url", url),
		slog.Int("pages", pages),
		slog.Int("rows", len(all)))
	return all, pages, nil
}
