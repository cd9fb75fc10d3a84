package ozon

import (
	"fmt"
	"strings"

	"github.com/maltedev/applicability-scraper/internal/applicability"
)

const noBrand = "Нет бренда"

// ListingDefaults are the shop-level values stamped on every listing.
type ListingDefaults struct {
	Brand        string
	Price        string
	OldPrice     string
	Barcode      string
	CategoryID   int64
	TypeValue    string
	TypeDictID   int64
	Vat          string
	CurrencyCode string
	Depth        int
	Height       int
	Width        int
	Weight       int
	ImageBaseURL string
}

type Transformer struct {
	defaults ListingDefaults
}

func NewTransformer(defaults ListingDefaults) *Transformer {
	if defaults.Brand == "" {
		defaults.Brand = noBrand
	}
	if defaults.CurrencyCode == "" {
		defaults.CurrencyCode = "RUB"
	}
	defaults.ImageBaseURL = strings.TrimRight(defaults.ImageBaseURL, "/")
	return &Transformer{defaults: defaults}
}

// Transform produces one listing per model of every record, in dataset order.
// The offer id suffix is the model's position within its record.
func (t *Transformer) Transform(dataset applicability.Dataset) []Listing {
	listings := make([]Listing, 0, len(dataset))
	for _, rec := range dataset {
		for i, model := range rec.Models {
			if strings.TrimSpace(model) == "" {
				continue
			}
			listings = append(listings, t.listing(rec, i, model))
		}
	}
	return listings
}

func (t *Transformer) listing(rec applicability.Record, index int, model string) Listing {
	d := t.defaults
	image := fmt.Sprintf("%s/%s.jpg", d.ImageBaseURL, rec.Article)

	return Listing{
		Attributes: []Attribute{
			attr(AttrBrand, d.Brand, 0),
			attr(AttrPartNumber, rec.Article, 0),
			attr(AttrType, d.TypeValue, d.TypeDictID),
			attr(AttrCode, rec.Article, 0),
			attr(AttrModel, model, 0),
		},
		Barcode:               d.Barcode,
		DescriptionCategoryID: d.CategoryID,
		ComplexAttributes:     []Attribute{},
		CurrencyCode:          d.CurrencyCode,
		Depth:                 d.Depth,
		DimensionUnit:         "mm",
		Height:                d.Height,
		Images:                []string{image},
		Images360:             []string{},
		Name:                  strings.TrimSpace(rec.Manufacturer + " " + model),
		OfferID:               fmt.Sprintf("%s_%d", rec.Article, index),
		OldPrice:              d.OldPrice,
		Price:                 d.Price,
		PrimaryImage:          image,
		Vat:                   d.Vat,
		Weight:                d.Weight,
		WeightUnit:            "g",
		Width:                 d.Width,
	}
}

func attr(id int64, value string, dictID int64) Attribute {
	return Attribute{
		ID:     id,
		Values: []AttributeValue{{Value: value, DictionaryID: dictID}},
	}
}
