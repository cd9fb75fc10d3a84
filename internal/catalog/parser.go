package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var ErrProductNotFound = errors.New("product not found")

type ProductInfo struct {
	Name              string `json:"name"`
	CompatibilityLink string `json:"compatibilityLink,omitempty"`
	ImageURL          string `json:"imageUrl"`
}

type CompatibilityRow struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Modification string `json:"modification"`
}

// ParseProductInfo reads the product card of a site search result page.
// Links are returned as written in the page.
func ParseProductInfo(html string) (*ProductInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	info := doc.Find(".pcard-info").First()
	img := doc.Find(".pcard-images img").First()
	if info.Length() == 0 || img.Length() == 0 {
		return nil, ErrProductNotFound
	}

	product := &ProductInfo{
		Name:     cleanText(info.Text()),
		ImageURL: strings.TrimSpace(img.AttrOr("src", "")),
	}
	if href, ok := doc.Find(".btn-compatibility").First().Attr("href"); ok {
		product.CompatibilityLink = strings.TrimSpace(href)
	}

	return product, nil
}

// ParseCompatibility reads the rows of the compatibility table. Header rows
// without data cells are skipped.
func ParseCompatibility(html string) ([]CompatibilityRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	rows := []CompatibilityRow{}
	doc.Find(".compatibility-table tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		cell := func(i int) string {
			return cleanText(cells.Eq(i).Text())
		}
		rows = append(rows, CompatibilityRow{
			Manufacturer: cell(0),
			Model:        cell(1),
			Modification: cell(2),
		})
	})

	return rows, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
