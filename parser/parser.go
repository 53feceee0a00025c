// Package parser turns one rendered stat table into raw rows.
package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/courtsift/statscrape/fetch"
	"github.com/courtsift/statscrape/models"
)

// ParseTable reads the header and body of a rendered table in document order.
// Column names are the header texts as scraped; rows keep the source's order
// because it reflects the site's default sort. A cell that wraps a hyperlink
// contributes the link's visible text, and an href containing the category's
// entity path segment additionally yields the row's EntityID. Rows with zero
// extracted cells are dropped, not errored.
func ParseTable(table *fetch.Table, desc *models.CategoryDescriptor) ([]models.RawRow, error) {
	if table == nil {
		return nil, fmt.Errorf("parse: nil table")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(table.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse table html: %w", err)
	}

	headers := make([]string, 0, 32)
	doc.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})
	if len(headers) == 0 {
		return nil, fmt.Errorf("parse: table has no header row")
	}

	var rows []models.RawRow
	doc.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		row := parseRow(tr, headers, desc.EntityPathSegment)
		if len(row.Cells) == 0 {
			return
		}
		rows = append(rows, row)
	})
	return rows, nil
}

func parseRow(tr *goquery.Selection, headers []string, entitySegment string) models.RawRow {
	var row models.RawRow
	tr.Find("td").Each(func(i int, td *goquery.Selection) {
		text := strings.TrimSpace(td.Text())

		if link := td.Find("a").First(); link.Length() > 0 {
			text = strings.TrimSpace(link.Text())
			if row.EntityID == "" && entitySegment != "" {
				if href, ok := link.Attr("href"); ok {
					row.EntityID = entityID(href, entitySegment)
				}
			}
		}
		if text == "" {
			return
		}

		column := fmt.Sprintf("col_%d", i)
		if i < len(headers) && headers[i] != "" {
			column = headers[i]
		}
		row.Cells = append(row.Cells, models.Cell{Column: column, Text: text})
	})
	return row
}

// entityID extracts the path component following the entity segment of an
// href, e.g. "/game/0022300161/box-score" with segment "/game/" yields
// "0022300161".
func entityID(href, segment string) string {
	idx := strings.Index(href, segment)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimPrefix(href[idx+len(segment):], "/")
	if cut := strings.IndexAny(rest, "/?#"); cut >= 0 {
		rest = rest[:cut]
	}
	return rest
}
